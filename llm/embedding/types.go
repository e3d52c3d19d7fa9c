package embedding

import (
	"context"
	"time"
)

// EmbeddingRequest is a request to embed one or more texts.
type EmbeddingRequest struct {
	Input          []string  `json:"input"`
	Model          string    `json:"model,omitempty"`
	Dimensions     int       `json:"dimensions,omitempty"`
	EncodingFormat string    `json:"encoding_format,omitempty"`
	InputType      InputType `json:"input_type,omitempty"`
}

// InputType tells asymmetric models whether the text is a query or a passage.
type InputType string

const (
	InputTypeQuery    InputType = "query"
	InputTypeDocument InputType = "document"
)

// EmbeddingResponse is the response of an embedding request.
type EmbeddingResponse struct {
	Provider   string          `json:"provider"`
	Model      string          `json:"model"`
	Embeddings []EmbeddingData `json:"embeddings"`
	Usage      EmbeddingUsage  `json:"usage"`
	CreatedAt  time.Time       `json:"created_at,omitempty"`
}

// EmbeddingData is a single embedding result.
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
	Object    string    `json:"object,omitempty"`
}

// EmbeddingUsage is token usage of an embedding request.
type EmbeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Provider is the unified embedding provider interface.
type Provider interface {
	// Embed generates embeddings for the given input.
	Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)

	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, query string) ([]float64, error)

	// EmbedDocuments embeds multiple passages.
	EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error)

	// Name returns the provider name.
	Name() string

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// MaxBatchSize returns the largest supported batch.
	MaxBatchSize() int
}
