package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/sunyadvisor/internal/tlsutil"
	"github.com/BaSui01/sunyadvisor/types"
	"go.uber.org/zap"
)

// QdrantConfig configures the Qdrant VectorStore implementation.
//
// Point IDs must be UUIDs; see ParentPointID and ChunkPointID.
type QdrantConfig struct {
	Host    string        `json:"host" yaml:"host"`
	Port    int           `json:"port" yaml:"port"`
	BaseURL string        `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey  string        `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Payload fields that get a keyword index on collection creation.
	IndexedFields []string `json:"indexed_fields,omitempty" yaml:"indexed_fields,omitempty"`
}

// QdrantStore implements VectorStore using Qdrant's REST API.
type QdrantStore struct {
	cfg     QdrantConfig
	baseURL string
	client  *http.Client
	logger  *zap.Logger

	mu      sync.Mutex
	ensured map[string]bool
}

// NewQdrantStore creates a Qdrant-backed VectorStore.
func NewQdrantStore(cfg QdrantConfig, logger *zap.Logger) *QdrantStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6333
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.IndexedFields == nil {
		cfg.IndexedFields = []string{"doc_id", "university", "type"}
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	}

	return &QdrantStore{
		cfg:     cfg,
		baseURL: baseURL,
		client:  tlsutil.SecureHTTPClient(cfg.Timeout),
		logger:  logger.With(zap.String("component", "qdrant_store")),
		ensured: make(map[string]bool),
	}
}

type qdrantStatusError struct {
	status int
	body   string
}

func (e *qdrantStatusError) Error() string {
	return fmt.Sprintf("qdrant status=%d body=%s", e.status, e.body)
}

func isNotFound(err error) bool {
	var se *qdrantStatusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

func (s *QdrantStore) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(s.cfg.APIKey) != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
}

func (s *QdrantStore) doJSON(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	s.applyHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return types.NewError(types.ErrServiceUnavailable, "qdrant unreachable").
			WithCause(err).WithRetryable(true).WithProvider("qdrant")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		se := &qdrantStatusError{status: resp.StatusCode, body: string(raw)}
		return types.NewError(types.ErrUpstreamError, fmt.Sprintf("qdrant %s %s failed", method, path)).
			WithCause(se).
			WithHTTPStatus(resp.StatusCode).
			WithRetryable(resp.StatusCode >= 500).
			WithProvider("qdrant")
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func collectionPath(collection string, suffix string) string {
	return "/collections/" + url.PathEscape(collection) + suffix
}

// CreateIfMissing creates the collection and its payload indexes unless it
// already exists.
func (s *QdrantStore) CreateIfMissing(ctx context.Context, collection string, dim int, metric Metric) error {
	if strings.TrimSpace(collection) == "" {
		return fmt.Errorf("qdrant collection is required")
	}
	if dim <= 0 {
		return fmt.Errorf("qdrant vector size must be > 0")
	}
	if metric == "" {
		metric = MetricCosine
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[collection] {
		return nil
	}

	err := s.doJSON(ctx, http.MethodGet, collectionPath(collection, ""), nil, nil)
	switch {
	case err == nil:
		s.ensured[collection] = true
		return nil
	case !isNotFound(err):
		return err
	}

	body := map[string]any{
		"vectors": map[string]any{"size": dim, "distance": string(metric)},
	}
	if err := s.doJSON(ctx, http.MethodPut, collectionPath(collection, ""), body, nil); err != nil {
		return err
	}
	for _, field := range s.cfg.IndexedFields {
		idx := map[string]any{"field_name": field, "field_schema": "keyword"}
		if err := s.doJSON(ctx, http.MethodPut, collectionPath(collection, "/index?wait=true"), idx, nil); err != nil {
			return fmt.Errorf("create payload index %s: %w", field, err)
		}
	}

	s.ensured[collection] = true
	s.logger.Info("collection created",
		zap.String("collection", collection),
		zap.Int("dim", dim),
		zap.String("metric", string(metric)))
	return nil
}

// UpsertBatch writes points and waits for the operation to be applied.
func (s *QdrantStore) UpsertBatch(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	for i, p := range points {
		if p.ID == "" {
			return fmt.Errorf("point[%d] has empty id", i)
		}
		if len(p.Vector) == 0 {
			return fmt.Errorf("point[%d] has no vector", i)
		}
	}

	req := struct {
		Points []Point `json:"points"`
	}{Points: points}

	if err := s.doJSON(ctx, http.MethodPut, collectionPath(collection, "/points?wait=true"), req, nil); err != nil {
		return err
	}
	s.logger.Debug("qdrant upsert completed", zap.Int("count", len(points)))
	return nil
}

type qdrantCondition struct {
	Key     string         `json:"key,omitempty"`
	Match   map[string]any `json:"match,omitempty"`
	IsEmpty map[string]any `json:"is_empty,omitempty"`
}

type qdrantFilter struct {
	Must    []qdrantCondition `json:"must,omitempty"`
	MustNot []qdrantCondition `json:"must_not,omitempty"`
}

func toQdrantFilter(f Filter) *qdrantFilter {
	var qf qdrantFilter
	eq := func(key, value string) {
		if value != "" {
			qf.Must = append(qf.Must, qdrantCondition{Key: key, Match: map[string]any{"value": value}})
		}
	}
	eq("university", f.University)
	eq("type", string(f.Type))
	eq("doc_id", f.DocID)

	noChunk := qdrantCondition{IsEmpty: map[string]any{"key": "chunk_id"}}
	if f.ChunksOnly {
		qf.MustNot = append(qf.MustNot, noChunk)
	}
	if f.ParentsOnly {
		qf.Must = append(qf.Must, noChunk)
	}
	if len(qf.Must) == 0 && len(qf.MustNot) == 0 {
		return nil
	}
	return &qf
}

// PointExists reports whether any point carries doc_id.
func (s *QdrantStore) PointExists(ctx context.Context, collection, docID string) (bool, error) {
	n, err := s.count(ctx, collection, toQdrantFilter(Filter{DocID: docID}))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type qdrantPoint struct {
	ID      any       `json:"id"`
	Score   float64   `json:"score"`
	Payload Payload   `json:"payload"`
	Vector  []float64 `json:"vector,omitempty"`
}

func (p qdrantPoint) point() Point {
	return Point{ID: fmt.Sprint(p.ID), Vector: p.Vector, Payload: p.Payload}
}

// Query runs a filtered nearest-neighbour search.
func (s *QdrantStore) Query(ctx context.Context, collection string, vector []float64, filter Filter, limit int) ([]ScoredPoint, error) {
	if limit <= 0 {
		return []ScoredPoint{}, nil
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is required")
	}

	req := struct {
		Vector      []float64     `json:"vector"`
		Filter      *qdrantFilter `json:"filter,omitempty"`
		Limit       int           `json:"limit"`
		WithPayload bool          `json:"with_payload"`
	}{
		Vector:      vector,
		Filter:      toQdrantFilter(filter),
		Limit:       limit,
		WithPayload: true,
	}

	var resp struct {
		Result []qdrantPoint `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodPost, collectionPath(collection, "/points/search"), req, &resp); err != nil {
		return nil, err
	}

	out := make([]ScoredPoint, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, ScoredPoint{Point: r.point(), Score: r.Score})
	}
	return out, nil
}

// Retrieve fetches points by id; missing ids are skipped.
func (s *QdrantStore) Retrieve(ctx context.Context, collection string, ids []string) ([]Point, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	req := struct {
		IDs         []string `json:"ids"`
		WithPayload bool     `json:"with_payload"`
	}{IDs: ids, WithPayload: true}

	var resp struct {
		Result []qdrantPoint `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodPost, collectionPath(collection, "/points"), req, &resp); err != nil {
		return nil, err
	}
	out := make([]Point, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, r.point())
	}
	return out, nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context, collection string) (int, error) {
	return s.count(ctx, collection, nil)
}

func (s *QdrantStore) count(ctx context.Context, collection string, filter *qdrantFilter) (int, error) {
	req := struct {
		Filter *qdrantFilter `json:"filter,omitempty"`
		Exact  bool          `json:"exact"`
	}{Filter: filter, Exact: true}

	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodPost, collectionPath(collection, "/points/count"), req, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}
