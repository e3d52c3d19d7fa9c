package rerank

import "time"

// Wire selects the request/response shape of the rerank server.
type Wire string

const (
	// WireTEI is Hugging Face text-embeddings-inference: POST /rerank {query, texts}.
	WireTEI Wire = "tei"
	// WireJina is the Jina/Cohere style: POST /v1/rerank {query, documents, top_n}.
	WireJina Wire = "jina"
)

// HTTPConfig configures the HTTP cross-encoder reranker.
type HTTPConfig struct {
	Name         string        `json:"name,omitempty" yaml:"name,omitempty"`
	Wire         Wire          `json:"wire,omitempty" yaml:"wire,omitempty"`
	APIKey       string        `json:"api_key" yaml:"api_key"`
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	Model        string        `json:"model,omitempty" yaml:"model,omitempty"`
	MaxDocuments int           `json:"max_documents,omitempty" yaml:"max_documents,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultHTTPConfig returns defaults for a local TEI server hosting
// cross-encoder/ms-marco-MiniLM-L-6-v2.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Name:         "cross-encoder",
		Wire:         WireTEI,
		BaseURL:      "http://localhost:8082",
		Model:        "cross-encoder/ms-marco-MiniLM-L-6-v2",
		MaxDocuments: 128,
		Timeout:      30 * time.Second,
	}
}
