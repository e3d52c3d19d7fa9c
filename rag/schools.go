package rag

import (
	"sort"
	"strings"
	"unicode"
)

// schoolFiller are words that do not tell campuses apart.
var schoolFiller = map[string]bool{
	"suny": true, "state": true, "university": true, "college": true,
	"of": true, "at": true, "the": true, "campus": true,
	"new": true, "york": true, "ny": true,
}

// schoolWords lowercases name and splits it on anything that is not a
// letter or digit.
func schoolWords(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// schoolKey joins the distinguishing words of name.
func schoolKey(name string) string {
	var sb strings.Builder
	for _, w := range schoolWords(name) {
		if !schoolFiller[w] {
			sb.WriteString(w)
		}
	}
	return sb.String()
}

// NewSchoolResolver returns a resolver that maps free-form campus names to
// one of tags, the university tags present in the index. Aliases map a
// lowercased full name (for example "university at buffalo") to a tag.
//
// A name resolves by alias, then by exact key, then by the longest tag
// whose key contains or is contained in the name's key. Keys shorter than
// three letters only match exactly. Names that match nothing resolve to ""
// so the search runs across every campus.
func NewSchoolResolver(tags []string, aliases map[string]string) SchoolResolver {
	known := make(map[string]string, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			known[schoolKey(t)] = t
		}
	}
	alias := make(map[string]string, len(aliases))
	for name, tag := range aliases {
		alias[strings.Join(schoolWords(name), " ")] = tag
	}

	keys := make([]string, 0, len(known))
	for k := range known {
		if k != "" {
			keys = append(keys, k)
		}
	}
	// Longest first so "stonybrook" wins over "stony" style prefixes.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	return func(name string) string {
		if tag, ok := alias[strings.Join(schoolWords(name), " ")]; ok {
			return tag
		}
		key := schoolKey(name)
		if key == "" {
			return ""
		}
		if tag, ok := known[key]; ok {
			return tag
		}
		for _, k := range keys {
			if len(k) < 3 || len(key) < 3 {
				continue
			}
			if strings.Contains(key, k) || strings.Contains(k, key) {
				return known[k]
			}
		}
		return ""
	}
}
