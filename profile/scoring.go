package profile

import (
	"errors"
	"fmt"
	"sort"
)

// Strength levels, highest first.
const (
	LevelStrong     = "Strong strength"
	LevelModerate   = "Moderate strength"
	LevelDeveloping = "Developing strength"
	LevelPotential  = "Potential for growth"
)

// Theme score bounds.
const (
	MinThemeScore = QuestionsPerTheme * MinAnswer
	MaxThemeScore = QuestionsPerTheme * MaxAnswer
)

var (
	// ErrIncompleteResponses is returned when a question has no answer.
	ErrIncompleteResponses = errors.New("profile: incomplete responses")
	// ErrInvalidResponse is returned for unknown questions, duplicates and
	// answers outside 1..5.
	ErrInvalidResponse = errors.New("profile: invalid response")
)

// Response is one answered statement.
type Response struct {
	QuestionID int `json:"question_id"`
	Answer     int `json:"answer"`
}

// ThemeScore is the derived score for one theme.
type ThemeScore struct {
	ThemeID int    `json:"theme_id"`
	Theme   string `json:"theme"`
	Domain  Domain `json:"domain"`
	Score   int    `json:"score"`
	Level   string `json:"level"`
}

// StrengthLevel buckets a theme score.
func StrengthLevel(score int) string {
	switch {
	case score >= 13:
		return LevelStrong
	case score >= 10:
		return LevelModerate
	case score >= 7:
		return LevelDeveloping
	default:
		return LevelPotential
	}
}

// ScoreThemes sums the answers of each theme. Every question must be answered
// exactly once. The result is ordered by theme id.
func ScoreThemes(responses []Response) ([]ThemeScore, error) {
	answers := make(map[int]int, len(responses))
	for _, r := range responses {
		if _, ok := questionByID[r.QuestionID]; !ok {
			return nil, fmt.Errorf("%w: unknown question %d", ErrInvalidResponse, r.QuestionID)
		}
		if r.Answer < MinAnswer || r.Answer > MaxAnswer {
			return nil, fmt.Errorf("%w: answer %d to question %d out of range", ErrInvalidResponse, r.Answer, r.QuestionID)
		}
		if _, dup := answers[r.QuestionID]; dup {
			return nil, fmt.Errorf("%w: question %d answered twice", ErrInvalidResponse, r.QuestionID)
		}
		answers[r.QuestionID] = r.Answer
	}
	if len(answers) != len(questions) {
		return nil, fmt.Errorf("%w: %d of %d answered", ErrIncompleteResponses, len(answers), len(questions))
	}

	sums := make(map[int]int, len(themes))
	for id, a := range answers {
		sums[questionByID[id].ThemeID] += a
	}
	out := make([]ThemeScore, 0, len(themes))
	for _, t := range themes {
		s := sums[t.ID]
		out = append(out, ThemeScore{ThemeID: t.ID, Theme: t.Name, Domain: t.Domain, Score: s, Level: StrengthLevel(s)})
	}
	return out, nil
}

// rank orders scores by score descending, ties by theme id.
func rank(scores []ThemeScore) []ThemeScore {
	out := append([]ThemeScore(nil), scores...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ThemeID < out[j].ThemeID
	})
	return out
}

// TopThemes returns the n highest scoring themes.
func TopThemes(scores []ThemeScore, n int) []ThemeScore {
	r := rank(scores)
	if n < len(r) {
		r = r[:n]
	}
	return r
}

// BottomThemes returns the n lowest scoring themes, lowest first.
func BottomThemes(scores []ThemeScore, n int) []ThemeScore {
	r := rank(scores)
	out := make([]ThemeScore, 0, n)
	for i := len(r) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, r[i])
	}
	return out
}

// ScoreOf finds a theme by name.
func ScoreOf(scores []ThemeScore, theme string) (ThemeScore, bool) {
	for _, s := range scores {
		if s.Theme == theme {
			return s, true
		}
	}
	return ThemeScore{}, false
}
