package rerank

import (
	"context"
	"time"
)

// RerankRequest is a request to rerank documents against a query.
type RerankRequest struct {
	Query     string     `json:"query"`
	Documents []Document `json:"documents"`
	Model     string     `json:"model,omitempty"`
	TopN      int        `json:"top_n,omitempty"` // 0 returns every document
}

// Document is a candidate to be scored.
type Document struct {
	Text string `json:"text"`
	ID   string `json:"id,omitempty"`
}

// RerankResponse is the response of a rerank request.
type RerankResponse struct {
	Provider  string         `json:"provider"`
	Model     string         `json:"model"`
	Results   []RerankResult `json:"results"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
}

// RerankResult is a single scored document. Results are sorted by
// RelevanceScore descending.
type RerankResult struct {
	Index          int      `json:"index"` // original index in the input
	RelevanceScore float64  `json:"relevance_score"`
	Document       Document `json:"document,omitempty"`
}

// Provider is the unified reranker interface.
type Provider interface {
	// Rerank scores documents by relevance to the query.
	Rerank(ctx context.Context, req *RerankRequest) (*RerankResponse, error)

	// RerankSimple is a convenience wrapper over plain strings.
	RerankSimple(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)

	// Name returns the provider name.
	Name() string

	// MaxDocuments returns the largest batch the server accepts.
	MaxDocuments() int
}
