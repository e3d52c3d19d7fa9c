package embedding

import "time"

// HTTPConfig configures an OpenAI-compatible embedding endpoint
// (OpenAI, text-embeddings-inference, Ollama, vLLM, LM Studio).
type HTTPConfig struct {
	Name       string        `json:"name,omitempty" yaml:"name,omitempty"`
	APIKey     string        `json:"api_key" yaml:"api_key"`
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	Endpoint   string        `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Model      string        `json:"model,omitempty" yaml:"model,omitempty"`
	Dimensions int           `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	MaxTokens  int           `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	MaxBatch   int           `json:"max_batch,omitempty" yaml:"max_batch,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultHTTPConfig returns defaults for a local text-embeddings-inference server.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Name:     "tei",
		BaseURL:  "http://localhost:8081",
		Endpoint: "/v1/embeddings",
		Model:    ModelNomic,
		MaxBatch: 32,
		Timeout:  60 * time.Second,
	}
}
