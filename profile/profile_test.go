package profile

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BaSui01/sunyadvisor/llm"
	"github.com/BaSui01/sunyadvisor/testutil/fixtures"
	"github.com/BaSui01/sunyadvisor/testutil/mocks"
	"github.com/BaSui01/sunyadvisor/types"

	"github.com/glebarez/sqlite"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func uniformResponses(answer int) []Response {
	out := make([]Response, 0, len(questions))
	for _, q := range Questions() {
		out = append(out, Response{QuestionID: q.ID, Answer: answer})
	}
	return out
}

func setTheme(responses []Response, theme string, answers ...int) {
	for i := range responses {
		q, _ := QuestionByID(responses[i].QuestionID)
		if themeByID[q.ThemeID].Name == theme {
			responses[i].Answer = answers[q.Position-1]
		}
	}
}

func TestCatalogue(t *testing.T) {
	ts := Themes()
	qs := Questions()
	require.Len(t, ts, 34)
	require.Len(t, qs, 34*QuestionsPerTheme)

	perDomain := map[Domain]int{}
	names := map[string]bool{}
	for i, th := range ts {
		assert.Equal(t, i+1, th.ID)
		assert.False(t, names[th.Name], "duplicate theme %s", th.Name)
		names[th.Name] = true
		perDomain[th.Domain]++
	}
	assert.Equal(t, map[Domain]int{
		DomainExecuting:            9,
		DomainInfluencing:          8,
		DomainRelationshipBuilding: 9,
		DomainStrategicThinking:    8,
	}, perDomain)

	for i, q := range qs {
		assert.Equal(t, i+1, q.ID)
		assert.Equal(t, (q.ID-1)/QuestionsPerTheme+1, q.ThemeID)
		assert.NotEmpty(t, q.Text)
	}
}

func TestStrengthLevel(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{15, LevelStrong},
		{13, LevelStrong},
		{12, LevelModerate},
		{10, LevelModerate},
		{9, LevelDeveloping},
		{7, LevelDeveloping},
		{6, LevelPotential},
		{3, LevelPotential},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StrengthLevel(tt.score), "score %d", tt.score)
	}
}

func TestScoreThemes_Achiever(t *testing.T) {
	responses := uniformResponses(3)
	setTheme(responses, "Achiever", 5, 5, 5)
	scores, err := ScoreThemes(responses)
	require.NoError(t, err)
	s, ok := ScoreOf(scores, "Achiever")
	require.True(t, ok)
	assert.Equal(t, 15, s.Score)
	assert.Equal(t, LevelStrong, s.Level)

	setTheme(responses, "Achiever", 1, 1, 1)
	scores, err = ScoreThemes(responses)
	require.NoError(t, err)
	s, _ = ScoreOf(scores, "Achiever")
	assert.Equal(t, 3, s.Score)
	assert.Equal(t, LevelPotential, s.Level)
}

func TestScoreThemes_Validation(t *testing.T) {
	_, err := ScoreThemes(uniformResponses(3)[:10])
	assert.ErrorIs(t, err, ErrIncompleteResponses)

	bad := uniformResponses(3)
	bad[4].Answer = 6
	_, err = ScoreThemes(bad)
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = ScoreThemes(append(uniformResponses(3), Response{QuestionID: 999, Answer: 3}))
	assert.ErrorIs(t, err, ErrInvalidResponse)

	_, err = ScoreThemes(append(uniformResponses(3), Response{QuestionID: 1, Answer: 3}))
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestProperty_ScoringIsPure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("replaying responses yields the same buckets", prop.ForAll(
		func(answers []int) bool {
			responses := make([]Response, len(answers))
			for i, a := range answers {
				responses[i] = Response{QuestionID: i + 1, Answer: a}
			}
			first, err := ScoreThemes(responses)
			if err != nil {
				return false
			}
			// Order of submission must not matter.
			reversed := make([]Response, len(responses))
			for i, r := range responses {
				reversed[len(responses)-1-i] = r
			}
			second, err := ScoreThemes(reversed)
			if err != nil || len(first) != len(second) {
				return false
			}
			for i := range first {
				if first[i] != second[i] {
					return false
				}
				if first[i].Score < MinThemeScore || first[i].Score > MaxThemeScore {
					return false
				}
				if first[i].Level != StrengthLevel(first[i].Score) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(len(questions), gen.IntRange(MinAnswer, MaxAnswer)),
	))

	properties.TestingRun(t)
}

func TestTopAndBottomThemes(t *testing.T) {
	scores, err := ScoreThemes(SampleResponses())
	require.NoError(t, err)

	top := TopThemes(scores, 5)
	require.Len(t, top, 5)
	assert.Equal(t, "Responsibility", top[0].Theme)

	bottom := BottomThemes(scores, 5)
	require.Len(t, bottom, 5)
	assert.Equal(t, "Competition", bottom[0].Theme)
	assert.Equal(t, 3, bottom[0].Score)

	assert.Len(t, TopThemes(scores[:2], 5), 2)
}

func TestRender_ProfileInjection(t *testing.T) {
	scores, err := ScoreThemes(SampleResponses())
	require.NoError(t, err)
	p := &StudentProfile{
		UserID:        "u1",
		FirstName:     "Sam",
		GradeLevel:    "11",
		IntendedMajor: "Economics",
		Scores:        scores,
		Analysis:      "Sam follows through on commitments.",
	}
	out := Render(p)

	assert.Contains(t, out, "- **Responsibility** (Executing): score 15/15 — Strong strength")
	assert.Contains(t, out, "- **Competition** (Influencing): score 3/15 — Potential for growth")
	assert.Contains(t, out, "- Intended major: Economics")
	assert.Contains(t, out, "- Budget: unknown")
	assert.Contains(t, out, "### Top 5 Strengths")
	assert.Contains(t, out, "Sam follows through on commitments.")
	assert.Less(t, strings.Index(out, "Top 5"), strings.Index(out, "Bottom 5"))
}

func TestRender_NoAssessment(t *testing.T) {
	out := Render(&StudentProfile{UserID: "u1"})
	assert.Contains(t, out, "has not completed the strengths assessment")
	assert.NotContains(t, out, "Top 5")
}

func TestApplyPatch(t *testing.T) {
	p := &StudentProfile{UserID: "u1", IntendedMajor: "Biology"}
	changed := p.ApplyPatch(map[string]any{
		"intended_major": "Economics",
		"gpa":            3.75,
		"interests":      []any{"debate", "chess"},
		"budget":         nil,
		"first_name":     "Mallory",
		"user_id":        "other",
		"career_goals":   "  ",
	})
	assert.Equal(t, []string{"gpa", "intended_major", "interests"}, changed)
	assert.Equal(t, "Economics", p.IntendedMajor)
	assert.Equal(t, "3.75", p.GPA)
	assert.Equal(t, "debate, chess", p.Interests)
	assert.Equal(t, "u1", p.UserID)
	assert.Empty(t, p.FirstName)
	assert.Empty(t, p.Budget)

	assert.Empty(t, p.ApplyPatch(map[string]any{"intended_major": "Economics"}))
}

func TestAnalyzer(t *testing.T) {
	provider := mocks.NewScriptedProvider().Then(fixtures.SimpleResponse("A dependable student."))
	a := NewAnalyzer(provider, LLMConfig{Model: "gpt-4o-mini", Temperature: 0.3}, nil)

	responses := SampleResponses()
	scores, err := ScoreThemes(responses)
	require.NoError(t, err)

	text, err := a.Analyze(context.Background(), responses, scores)
	require.NoError(t, err)
	assert.Equal(t, "A dependable student.", text)

	calls := provider.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "gpt-4o-mini", calls[0].Model)
	assert.Equal(t, llm.ResponseFormatText, calls[0].ResponseFormat)
	require.Len(t, calls[0].Messages, 2)
	assert.Contains(t, calls[0].Messages[1].Content, "Responsibility (Executing): 15, Strong strength")

	provider.ThenError(types.NewError(types.ErrUpstreamTimeout, "timeout"))
	_, err = a.Analyze(context.Background(), responses, scores)
	assert.Equal(t, types.ErrUpstreamTimeout, types.GetErrorCode(err))
}

func TestRefresher(t *testing.T) {
	provider := mocks.NewScriptedProvider().
		Then(fixtures.SimpleResponse("```json\n{\"intended_major\": \"Economics\", \"gpa\": 3.8, \"favorite_color\": \"blue\", \"budget\": null}\n```"))
	r := NewRefresher(provider, LLMConfig{Model: "gpt-4o-mini"}, nil)

	transcript := []types.Message{
		types.NewUserMessage("I want to study economics, my GPA is 3.8").Between(types.PartyStudent, types.PartyCounselor),
		types.NewAssistantMessage(types.Envelope{Phase: "explore", Recipient: types.PartyStudent, Message: "Great choice!"}.Marshal()),
		types.NewAssistantMessage(types.Envelope{Phase: "explore", Recipient: types.PartySuny, Message: "internal"}.Marshal()),
	}
	p := &StudentProfile{UserID: "u1"}
	changed, err := r.Refresh(context.Background(), p, transcript)
	require.NoError(t, err)
	assert.Equal(t, []string{"gpa", "intended_major"}, changed)
	assert.Equal(t, "3.8", p.GPA)

	calls := provider.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, llm.ResponseFormatJSON, calls[0].ResponseFormat)
	input := calls[0].Messages[1].Content
	assert.Contains(t, input, "Student: I want to study economics")
	assert.Contains(t, input, "Counselor: Great choice!")
	assert.NotContains(t, input, "internal")
}

func TestRefresher_GarbageIsIgnored(t *testing.T) {
	provider := mocks.NewScriptedProvider().Then(fixtures.SimpleResponse("nothing to report"))
	r := NewRefresher(provider, LLMConfig{Model: "m"}, nil)
	p := &StudentProfile{UserID: "u1", GPA: "3.1"}
	changed, err := r.Refresh(context.Background(), p, nil)
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.Equal(t, "3.1", p.GPA)

	_, err = NewRefresher(nil, LLMConfig{}, nil).Refresh(context.Background(), p, nil)
	assert.Error(t, err)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(Models()...))
	return db
}

func TestRepository_SeedIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Seed(ctx))
	require.NoError(t, repo.Seed(ctx))

	var n int64
	require.NoError(t, db.Model(&DomainRecord{}).Count(&n).Error)
	assert.EqualValues(t, 4, n)
	require.NoError(t, db.Model(&ThemeRecord{}).Count(&n).Error)
	assert.EqualValues(t, 34, n)
	require.NoError(t, db.Model(&QuestionRecord{}).Count(&n).Error)
	assert.EqualValues(t, 102, n)
}

func TestService_SubmitAndLoad(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Seed(ctx))

	provider := mocks.NewScriptedProvider().
		Then(fixtures.SimpleResponse("Strong sense of ownership.")).
		ThenError(errors.New("provider down"))
	svc := NewService(repo, NewAnalyzer(provider, LLMConfig{Model: "m"}, nil), nil)

	require.NoError(t, svc.SaveStudent(ctx, &StudentProfile{UserID: "u1", FirstName: "Sam", GradeLevel: "12"}))

	p, err := svc.Submit(ctx, "u1", SampleResponses())
	require.NoError(t, err)
	assert.Equal(t, "Sam", p.FirstName)
	assert.Equal(t, "Strong sense of ownership.", p.Analysis)
	require.Len(t, p.Scores, 34)
	s, _ := ScoreOf(p.Scores, "Responsibility")
	assert.Equal(t, 15, s.Score)
	assert.Contains(t, Render(p), "- **Responsibility** (Executing): score 15/15 — Strong strength")

	stored, err := repo.Responses(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, stored, 102)

	// A resubmission replaces rows; a failed analysis clears the old one.
	again := SampleResponses()
	setTheme(again, "Responsibility", 3, 3, 3)
	p, err = svc.Submit(ctx, "u1", again)
	require.NoError(t, err)
	s, _ = ScoreOf(p.Scores, "Responsibility")
	assert.Equal(t, 9, s.Score)
	assert.Empty(t, p.Analysis)

	var n int64
	require.NoError(t, db.Model(&ThemeResult{}).Where("user_id = ?", "u1").Count(&n).Error)
	assert.EqualValues(t, 34, n)

	_, err = svc.Submit(ctx, "u1", again[:3])
	assert.ErrorIs(t, err, ErrIncompleteResponses)
}

func TestRepository_SaveStudentUpserts(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	empty, err := repo.LoadProfile(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, "nobody", empty.UserID)
	assert.False(t, empty.HasAssessment())

	p := &StudentProfile{UserID: "u2", IntendedMajor: "Nursing"}
	require.NoError(t, repo.SaveStudent(ctx, p))
	p.ApplyPatch(map[string]any{"intended_major": "Economics", "budget": "$20k"})
	require.NoError(t, repo.SaveStudent(ctx, p))

	loaded, err := repo.LoadProfile(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "Economics", loaded.IntendedMajor)
	assert.Equal(t, "$20k", loaded.Budget)

	assert.Error(t, repo.SaveStudent(ctx, &StudentProfile{}))
}
