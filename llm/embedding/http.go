package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/sunyadvisor/internal/tlsutil"
	"github.com/BaSui01/sunyadvisor/llm/providers"
	"github.com/BaSui01/sunyadvisor/types"
)

// HTTPProvider embeds text through an OpenAI-compatible /v1/embeddings API,
// as served by text-embeddings-inference, Ollama or vLLM. Asymmetric models
// such as nomic get their query and document task prefixes added here.
type HTTPProvider struct {
	cfg    HTTPConfig
	spec   ModelSpec
	url    string
	client *http.Client
}

// NewHTTPProvider fails when the model is unknown and cfg does not carry
// its dimensions and token limit.
func NewHTTPProvider(cfg HTTPConfig) (*HTTPProvider, error) {
	def := DefaultHTTPConfig()
	cfg.Name = or(cfg.Name, def.Name)
	cfg.BaseURL = or(cfg.BaseURL, def.BaseURL)
	cfg.Endpoint = or(cfg.Endpoint, def.Endpoint)
	cfg.Model = or(cfg.Model, def.Model)
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = def.MaxBatch
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	spec, err := ResolveModel(cfg.Model, cfg.Dimensions, cfg.MaxTokens)
	if err != nil {
		return nil, err
	}
	return &HTTPProvider{
		cfg:    cfg,
		spec:   spec,
		url:    strings.TrimRight(cfg.BaseURL, "/") + cfg.Endpoint,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
	}, nil
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func (p *HTTPProvider) Name() string      { return p.cfg.Name }
func (p *HTTPProvider) Dimensions() int   { return p.spec.Dimensions }
func (p *HTTPProvider) MaxBatchSize() int { return p.cfg.MaxBatch }

// Spec returns the resolved model spec.
func (p *HTTPProvider) Spec() ModelSpec { return p.spec }

type httpEmbedRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type httpEmbedResponse struct {
	Model string `json:"model"`
	Data  []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage EmbeddingUsage `json:"usage"`
}

func (p *HTTPProvider) prefixed(in []string, t InputType) []string {
	prefix := ""
	switch t {
	case InputTypeQuery:
		prefix = p.spec.QueryPrefix
	case InputTypeDocument:
		prefix = p.spec.DocumentPrefix
	}
	if prefix == "" {
		return in
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = prefix + s
	}
	return out
}

// Embed sends one request. Every returned vector is checked against the
// model dimension.
func (p *HTTPProvider) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	if len(req.Input) == 0 {
		return nil, types.NewError(types.ErrInvalidRequest, "embedding input is empty").WithProvider(p.Name())
	}
	body, err := json.Marshal(httpEmbedRequest{
		Input:          p.prefixed(req.Input, req.InputType),
		Model:          or(req.Model, p.cfg.Model),
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, fmt.Errorf("encode embedding request: %w", err)
	}

	raw, err := p.post(ctx, body)
	if err != nil {
		return nil, err
	}
	var wire httpEmbedResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, p.upstream("decode embedding response", err)
	}

	out := &EmbeddingResponse{
		Provider:   p.Name(),
		Model:      wire.Model,
		Embeddings: make([]EmbeddingData, len(wire.Data)),
		Usage:      wire.Usage,
		CreatedAt:  time.Now(),
	}
	for i, d := range wire.Data {
		if len(d.Embedding) != p.spec.Dimensions {
			return nil, p.upstream(fmt.Sprintf("embedding has %d dimensions, model %s expects %d",
				len(d.Embedding), p.spec.Name, p.spec.Dimensions), nil)
		}
		out.Embeddings[i] = EmbeddingData{Index: d.Index, Embedding: d.Embedding, Object: d.Object}
	}
	return out, nil
}

func (p *HTTPProvider) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	providers.BearerTokenHeaders(req, p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, providers.TransportError(err, p.Name())
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), p.Name())
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, p.upstream("read embedding response", err).WithRetryable(true)
	}
	return raw, nil
}

func (p *HTTPProvider) upstream(msg string, cause error) *types.Error {
	e := types.NewError(types.ErrUpstreamError, msg).WithProvider(p.Name())
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}

// EmbedQuery embeds one search query with the query prefix.
func (p *HTTPProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	resp, err := p.Embed(ctx, &EmbeddingRequest{Input: []string{query}, InputType: InputTypeQuery})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, p.upstream("no embedding returned", nil)
	}
	return resp.Embeddings[0].Embedding, nil
}

// EmbedDocuments embeds passages in requests of at most MaxBatchSize,
// placing each vector by the index the server reports.
func (p *HTTPProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	out := make([][]float64, len(documents))
	for start := 0; start < len(documents); start += p.cfg.MaxBatch {
		batch := documents[start:min(start+p.cfg.MaxBatch, len(documents))]
		resp, err := p.Embed(ctx, &EmbeddingRequest{Input: batch, InputType: InputTypeDocument})
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, p.upstream(fmt.Sprintf("expected %d embeddings, got %d", len(batch), len(resp.Embeddings)), nil)
		}
		for _, e := range resp.Embeddings {
			if e.Index < 0 || e.Index >= len(batch) || out[start+e.Index] != nil {
				return nil, p.upstream(fmt.Sprintf("embedding index %d out of range", e.Index), nil)
			}
			out[start+e.Index] = e.Embedding
		}
	}
	return out, nil
}
