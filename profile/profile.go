package profile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Patchable profile keys. Anything else in a refresh patch is ignored.
const (
	KeyIntendedMajor          = "intended_major"
	KeyPreferredLocation      = "preferred_location"
	KeyPreferredCampusSetting = "preferred_campus_setting"
	KeyBudget                 = "budget"
	KeyCareerGoals            = "career_goals"
	KeyExtracurriculars       = "extracurriculars"
	KeyGPA                    = "gpa"
	KeyGradeLevel             = "grade_level"
	KeyInterests              = "interests"
)

// PatchableKeys lists the keys ApplyPatch accepts, sorted.
var PatchableKeys = []string{
	KeyBudget,
	KeyCareerGoals,
	KeyExtracurriculars,
	KeyGPA,
	KeyGradeLevel,
	KeyIntendedMajor,
	KeyInterests,
	KeyPreferredCampusSetting,
	KeyPreferredLocation,
}

// StudentProfile is what the counselor knows about a student.
type StudentProfile struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`

	GradeLevel             string `json:"grade_level,omitempty"`
	GPA                    string `json:"gpa,omitempty"`
	IntendedMajor          string `json:"intended_major,omitempty"`
	PreferredLocation      string `json:"preferred_location,omitempty"`
	PreferredCampusSetting string `json:"preferred_campus_setting,omitempty"`
	Budget                 string `json:"budget,omitempty"`
	CareerGoals            string `json:"career_goals,omitempty"`
	Extracurriculars       string `json:"extracurriculars,omitempty"`
	Interests              string `json:"interests,omitempty"`

	Scores   []ThemeScore `json:"scores,omitempty"`
	Analysis string       `json:"analysis,omitempty"`
}

func (p *StudentProfile) field(key string) *string {
	switch key {
	case KeyIntendedMajor:
		return &p.IntendedMajor
	case KeyPreferredLocation:
		return &p.PreferredLocation
	case KeyPreferredCampusSetting:
		return &p.PreferredCampusSetting
	case KeyBudget:
		return &p.Budget
	case KeyCareerGoals:
		return &p.CareerGoals
	case KeyExtracurriculars:
		return &p.Extracurriculars
	case KeyGPA:
		return &p.GPA
	case KeyGradeLevel:
		return &p.GradeLevel
	case KeyInterests:
		return &p.Interests
	}
	return nil
}

// Fields returns the patchable fields keyed by name.
func (p *StudentProfile) Fields() map[string]string {
	out := make(map[string]string, len(PatchableKeys))
	for _, k := range PatchableKeys {
		out[k] = *p.field(k)
	}
	return out
}

// ApplyPatch sets whitelisted fields from patch and returns the keys that
// changed, sorted. Null and empty values are ignored; lists are joined with
// ", "; numbers are formatted without trailing zeros.
func (p *StudentProfile) ApplyPatch(patch map[string]any) []string {
	var changed []string
	for key, raw := range patch {
		dst := p.field(key)
		if dst == nil {
			continue
		}
		v, ok := patchValue(raw)
		if !ok || v == *dst {
			continue
		}
		*dst = v
		changed = append(changed, key)
	}
	sort.Strings(changed)
	return changed
}

func patchValue(raw any) (string, bool) {
	var s string
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case bool:
		s = strconv.FormatBool(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := patchValue(item); ok {
				parts = append(parts, str)
			}
		}
		s = strings.Join(parts, ", ")
	case []string:
		s = strings.Join(v, ", ")
	default:
		s = fmt.Sprint(v)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// HasAssessment reports whether theme scores are present.
func (p *StudentProfile) HasAssessment() bool { return len(p.Scores) > 0 }
