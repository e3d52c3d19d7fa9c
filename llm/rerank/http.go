package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/BaSui01/sunyadvisor/internal/tlsutil"
	"github.com/BaSui01/sunyadvisor/llm/providers"
	"github.com/BaSui01/sunyadvisor/types"
)

// HTTPProvider scores (query, document) pairs with a remote cross-encoder.
type HTTPProvider struct {
	cfg    HTTPConfig
	client *http.Client
}

// NewHTTPProvider creates a new HTTP reranker.
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	def := DefaultHTTPConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Wire == "" {
		cfg.Wire = def.Wire
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxDocuments <= 0 {
		cfg.MaxDocuments = def.MaxDocuments
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = def.Timeout
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
	}
}

func (p *HTTPProvider) Name() string      { return p.cfg.Name }
func (p *HTTPProvider) MaxDocuments() int { return p.cfg.MaxDocuments }

type teiRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
	Truncate  bool     `json:"truncate"`
}

type teiResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

type jinaRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
	TopN      int      `json:"top_n,omitempty"`
}

type jinaResponse struct {
	Model   string `json:"model"`
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank scores req.Documents and returns them sorted by relevance.
func (p *HTTPProvider) Rerank(ctx context.Context, req *RerankRequest) (*RerankResponse, error) {
	if len(req.Documents) == 0 {
		return &RerankResponse{Provider: p.Name(), Model: p.cfg.Model, CreatedAt: time.Now()}, nil
	}
	if len(req.Documents) > p.cfg.MaxDocuments {
		return nil, types.NewError(types.ErrInvalidRequest,
			fmt.Sprintf("rerank batch of %d exceeds limit %d", len(req.Documents), p.cfg.MaxDocuments)).
			WithProvider(p.Name())
	}
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	texts := make([]string, len(req.Documents))
	for i, d := range req.Documents {
		texts[i] = d.Text
	}

	var (
		path string
		body any
	)
	switch p.cfg.Wire {
	case WireJina:
		path = "/v1/rerank"
		body = jinaRequest{Query: req.Query, Documents: texts, Model: model, TopN: req.TopN}
	default:
		path = "/rerank"
		body = teiRequest{Query: req.Query, Texts: texts, Truncate: true}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.BaseURL, "/")+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	providers.BearerTokenHeaders(httpReq, p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, providers.TransportError(err, p.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), p.Name())
	}

	var results []RerankResult
	switch p.cfg.Wire {
	case WireJina:
		var jr jinaResponse
		if err := json.NewDecoder(resp.Body).Decode(&jr); err != nil {
			return nil, decodeError(err, p.Name())
		}
		for _, r := range jr.Results {
			results = append(results, RerankResult{Index: r.Index, RelevanceScore: r.RelevanceScore})
		}
	default:
		var tr []teiResult
		if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
			return nil, decodeError(err, p.Name())
		}
		for _, r := range tr {
			results = append(results, RerankResult{Index: r.Index, RelevanceScore: r.Score})
		}
	}

	for i := range results {
		idx := results[i].Index
		if idx < 0 || idx >= len(req.Documents) {
			return nil, types.NewError(types.ErrUpstreamError,
				fmt.Sprintf("rerank result index %d out of range", idx)).WithProvider(p.Name())
		}
		results[i].Document = req.Documents[idx]
	}
	SortResults(results)
	if req.TopN > 0 && len(results) > req.TopN {
		results = results[:req.TopN]
	}

	return &RerankResponse{
		Provider:  p.Name(),
		Model:     model,
		Results:   results,
		CreatedAt: time.Now(),
	}, nil
}

// RerankSimple is a convenience method for plain strings.
func (p *HTTPProvider) RerankSimple(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	docs := make([]Document, len(documents))
	for i, d := range documents {
		docs[i] = Document{Text: d}
	}

	resp, err := p.Rerank(ctx, &RerankRequest{
		Query:     query,
		Documents: docs,
		TopN:      topN,
	})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// SortResults orders results by score descending; ties keep input order.
func SortResults(results []RerankResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RelevanceScore != results[j].RelevanceScore {
			return results[i].RelevanceScore > results[j].RelevanceScore
		}
		return results[i].Index < results[j].Index
	})
}

func decodeError(err error, provider string) error {
	return types.NewError(types.ErrUpstreamError, "decode rerank response").
		WithCause(err).WithRetryable(true).WithProvider(provider)
}
