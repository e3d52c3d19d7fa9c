package embedding

import (
	"fmt"
	"strings"
)

// ModelSpec describes a known embedding model.
type ModelSpec struct {
	Name       string
	Dimensions int
	MaxTokens  int
	// QueryPrefix and DocumentPrefix are prepended for models trained with
	// task instructions (nomic).
	QueryPrefix    string
	DocumentPrefix string
}

const (
	ModelMiniLM = "all-MiniLM-L6-v2"
	ModelNomic  = "nomic-embed-text-v1.5"
)

var knownModels = map[string]ModelSpec{
	ModelMiniLM: {Name: ModelMiniLM, Dimensions: 384, MaxTokens: 512},
	ModelNomic: {
		Name:           ModelNomic,
		Dimensions:     768,
		MaxTokens:      8192,
		QueryPrefix:    "search_query: ",
		DocumentPrefix: "search_document: ",
	},
}

// aliases map common hub names onto the canonical key.
var aliases = map[string]string{
	"sentence-transformers/all-minilm-l6-v2": ModelMiniLM,
	"all-minilm":                             ModelMiniLM,
	"nomic-ai/nomic-embed-text-v1.5":         ModelNomic,
	"nomic-embed-text":                       ModelNomic,
}

// LookupModel returns the spec of a known model. Lookup is case-insensitive
// and tolerates hub prefixes and ":tag" suffixes (ollama style).
func LookupModel(name string) (ModelSpec, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if i := strings.IndexByte(key, ':'); i >= 0 {
		key = key[:i]
	}
	if canonical, ok := aliases[key]; ok {
		return knownModels[canonical], true
	}
	for k, spec := range knownModels {
		if strings.ToLower(k) == key {
			return spec, true
		}
	}
	return ModelSpec{}, false
}

// ResolveModel returns the spec for name, letting explicit dims/maxTokens
// override or complete it. Unknown models must supply both.
func ResolveModel(name string, dims, maxTokens int) (ModelSpec, error) {
	spec, ok := LookupModel(name)
	if !ok {
		if dims <= 0 || maxTokens <= 0 {
			return ModelSpec{}, fmt.Errorf("unknown embedding model %q: dimensions and max_tokens must be configured", name)
		}
		return ModelSpec{Name: name, Dimensions: dims, MaxTokens: maxTokens}, nil
	}
	if dims > 0 {
		spec.Dimensions = dims
	}
	if maxTokens > 0 {
		spec.MaxTokens = maxTokens
	}
	return spec, nil
}
