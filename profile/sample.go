package profile

// SampleResponses is a complete demo assessment: Responsibility answered
// 5,5,5, Competition 1,1,1 and every other theme 3,3,4. Used by the chat
// REPL when no stored assessment exists.
func SampleResponses() []Response {
	out := make([]Response, 0, len(questions))
	for _, q := range questions {
		t := themeByID[q.ThemeID]
		a := 3
		switch {
		case t.Name == "Responsibility":
			a = 5
		case t.Name == "Competition":
			a = 1
		case q.Position == QuestionsPerTheme:
			a = 4
		}
		out = append(out, Response{QuestionID: q.ID, Answer: a})
	}
	return out
}
