// Copyright (c) SunyAdvisor Authors.
// Licensed under the MIT License.

/*
Package profile scores the strengths assessment and maintains the student
profile rendered into the counselor's system prompt.

The catalogue holds 34 themes in four domains with three Likert statements
each. ScoreThemes sums the answers per theme (3 to 15) and StrengthLevel
buckets the result. Render turns a StudentProfile into markdown with the
top and bottom five themes.

Analyzer produces a free-text reading of a finished assessment and Refresher
proposes updates to the demographic fields from recent conversation. Only
the keys in PatchableKeys are ever applied. Repository persists everything
through gorm.
*/
package profile
