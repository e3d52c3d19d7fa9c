package rag

import (
	"context"

	"github.com/BaSui01/sunyadvisor/llm/rerank"
)

// EmbeddingProvider is the part of embedding.Embedder retrieval needs.
type EmbeddingProvider interface {
	EmbedQuery(ctx context.Context, query string) ([]float64, error)
	EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error)
	Name() string
}

// RerankProvider is the part of rerank.Provider retrieval needs.
type RerankProvider interface {
	RerankSimple(ctx context.Context, query string, documents []string, topN int) ([]rerank.RerankResult, error)
	Name() string
}
