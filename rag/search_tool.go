package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/sunyadvisor/llm/tools"
	"github.com/BaSui01/sunyadvisor/types"
)

// SearchToolName is the name the model calls retrieval by.
const SearchToolName = "rag_search"

// NoResultsText is returned to the model when nothing matched.
const NoResultsText = "No relevant documents were found for this query."

// SearchArgs are the arguments of rag_search.
type SearchArgs struct {
	Query      string `json:"query"`
	SchoolName string `json:"school_name,omitempty"`
	DocType    string `json:"doc_type,omitempty"`
}

// SchoolResolver maps a school name as written by the model to the
// university tag used in payloads. An empty result disables the filter.
type SchoolResolver func(name string) string

// NormalizeSchool lowercases and trims a school name and uses it as the tag
// verbatim. NewSchoolResolver is preferred when the tags are known.
func NormalizeSchool(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SearchToolSchema describes rag_search to the model.
func SearchToolSchema() types.ToolSchema {
	params := types.NewObjectSchema().
		AddProperty("query", types.NewStringSchema().
			WithDescription("What to look up in SUNY campus documents, phrased as a search query.")).
		AddProperty("school_name", types.NewStringSchema().
			WithDescription("Restrict the search to one SUNY campus. Omit to search every campus.")).
		AddProperty("doc_type", types.NewEnumSchema(string(DocTypeHTML), string(DocTypePDF)).
			WithDescription("Restrict to web pages (html) or catalogues and handbooks (pdf).")).
		AddRequired("query")

	return types.ToolSchema{
		Name:        SearchToolName,
		Description: "Search SUNY admissions, program, cost and campus-life documents and return the relevant passages with their sources.",
		Parameters:  params.MustJSON(),
	}
}

// NewSearchTool returns the rag_search function and its metadata.
func NewSearchTool(engine *Engine, resolve SchoolResolver) (tools.ToolFunc, tools.ToolMetadata) {
	if resolve == nil {
		resolve = NormalizeSchool
	}

	fn := func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		var args SearchArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("invalid rag_search arguments: %w", err)
		}
		if strings.TrimSpace(args.Query) == "" {
			return nil, fmt.Errorf("query must not be empty")
		}
		docType, err := ParseDocType(args.DocType)
		if err != nil {
			return nil, err
		}

		opts := RetrieveOptions{Type: docType}
		if args.SchoolName != "" {
			opts.University = resolve(args.SchoolName)
		}

		res, err := engine.Retrieve(ctx, args.Query, opts)
		if err != nil {
			return nil, err
		}
		if res.Context == "" {
			return json.Marshal(NoResultsText)
		}
		return json.Marshal(res.Context)
	}

	return fn, tools.ToolMetadata{
		Schema:  SearchToolSchema(),
		Timeout: 60 * time.Second,
	}
}

// RegisterSearchTool registers rag_search on reg.
func RegisterSearchTool(reg tools.ToolRegistry, engine *Engine, resolve SchoolResolver) error {
	fn, meta := NewSearchTool(engine, resolve)
	return reg.Register(SearchToolName, fn, meta)
}
