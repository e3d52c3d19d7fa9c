package profile

import (
	"fmt"
	"strings"
)

// HighlightCount is how many top and bottom themes are rendered.
const HighlightCount = 5

var demographicLabels = []struct {
	key   string
	label string
}{
	{KeyGradeLevel, "Grade level"},
	{KeyGPA, "GPA"},
	{KeyIntendedMajor, "Intended major"},
	{KeyInterests, "Interests"},
	{KeyCareerGoals, "Career goals"},
	{KeyExtracurriculars, "Extracurriculars"},
	{KeyPreferredLocation, "Preferred location"},
	{KeyPreferredCampusSetting, "Preferred campus setting"},
	{KeyBudget, "Budget"},
}

// FormatScore renders one theme bullet.
func FormatScore(s ThemeScore) string {
	return fmt.Sprintf("- **%s** (%s): score %d/%d — %s", s.Theme, s.Domain, s.Score, MaxThemeScore, s.Level)
}

// Render formats p as the markdown snippet embedded in the counselor prompt.
// Unknown fields and a missing assessment are stated explicitly so the model
// knows to ask.
func Render(p *StudentProfile) string {
	var b strings.Builder
	b.WriteString("## Student Profile\n\n")

	if name := strings.TrimSpace(p.FirstName + " " + p.LastName); name != "" {
		fmt.Fprintf(&b, "- Name: %s\n", name)
	}
	fields := p.Fields()
	for _, d := range demographicLabels {
		v := fields[d.key]
		if v == "" {
			v = "unknown"
		}
		fmt.Fprintf(&b, "- %s: %s\n", d.label, v)
	}

	if !p.HasAssessment() {
		b.WriteString("\n_The student has not completed the strengths assessment._\n")
		return b.String()
	}

	b.WriteString("\n### Top 5 Strengths\n\n")
	for _, s := range TopThemes(p.Scores, HighlightCount) {
		b.WriteString(FormatScore(s))
		b.WriteByte('\n')
	}
	b.WriteString("\n### Bottom 5 Themes\n\n")
	for _, s := range BottomThemes(p.Scores, HighlightCount) {
		b.WriteString(FormatScore(s))
		b.WriteByte('\n')
	}
	if a := strings.TrimSpace(p.Analysis); a != "" {
		b.WriteString("\n### Strengths Analysis\n\n")
		b.WriteString(a)
		b.WriteByte('\n')
	}
	return b.String()
}
