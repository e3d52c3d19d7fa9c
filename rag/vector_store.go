package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/BaSui01/sunyadvisor/types"
	"go.uber.org/zap"
)

// Metric is the vector distance of a collection.
type Metric string

const (
	MetricCosine    Metric = "Cosine"
	MetricDot       Metric = "Dot"
	MetricEuclidean Metric = "Euclid"
)

// Filter restricts a query by payload equality. Empty fields are ignored.
type Filter struct {
	University  string
	Type        DocType
	DocID       string
	ChunksOnly  bool // only points carrying chunk_id
	ParentsOnly bool // only document points
}

// Match reports whether p satisfies the filter.
func (f Filter) Match(p Payload) bool {
	if f.University != "" && p.University != f.University {
		return false
	}
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if f.DocID != "" && p.DocID != f.DocID {
		return false
	}
	if f.ChunksOnly && !p.IsChunk() {
		return false
	}
	if f.ParentsOnly && p.IsChunk() {
		return false
	}
	return true
}

// VectorStore is a collection-scoped vector database. Upserts are atomic per
// point and visible to later queries from the same client.
type VectorStore interface {
	CreateIfMissing(ctx context.Context, collection string, dim int, metric Metric) error
	UpsertBatch(ctx context.Context, collection string, points []Point) error
	PointExists(ctx context.Context, collection, docID string) (bool, error)
	Query(ctx context.Context, collection string, vector []float64, filter Filter, limit int) ([]ScoredPoint, error)
	Retrieve(ctx context.Context, collection string, ids []string) ([]Point, error)
	Count(ctx context.Context, collection string) (int, error)
}

// ErrCollectionNotFound is returned when a collection has not been created.
var ErrCollectionNotFound = types.NewError(types.ErrInvalidRequest, "collection not found")

// ====== In-memory store (tests and small corpora) ======

type memCollection struct {
	dim    int
	metric Metric
	points map[string]Point
	order  []string // insertion order, for stable ties
}

// InMemoryVectorStore keeps points in process memory.
type InMemoryVectorStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	logger      *zap.Logger
}

// NewInMemoryVectorStore creates an empty store.
func NewInMemoryVectorStore(logger *zap.Logger) *InMemoryVectorStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryVectorStore{
		collections: make(map[string]*memCollection),
		logger:      logger.With(zap.String("component", "memory_store")),
	}
}

func (s *InMemoryVectorStore) CreateIfMissing(ctx context.Context, collection string, dim int, metric Metric) error {
	if dim <= 0 {
		return fmt.Errorf("vector size must be > 0")
	}
	if metric == "" {
		metric = MetricCosine
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection]; ok {
		return nil
	}
	s.collections[collection] = &memCollection{dim: dim, metric: metric, points: make(map[string]Point)}
	s.logger.Info("collection created", zap.String("collection", collection), zap.Int("dim", dim))
	return nil
}

func (s *InMemoryVectorStore) get(collection string) (*memCollection, error) {
	c, ok := s.collections[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	return c, nil
}

func (s *InMemoryVectorStore) UpsertBatch(ctx context.Context, collection string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.get(collection)
	if err != nil {
		return err
	}
	for i, p := range points {
		if p.ID == "" {
			return fmt.Errorf("point[%d] has empty id", i)
		}
		if len(p.Vector) != c.dim {
			return fmt.Errorf("point[%d] dimension mismatch: got=%d want=%d", i, len(p.Vector), c.dim)
		}
	}
	for _, p := range points {
		if _, exists := c.points[p.ID]; !exists {
			c.order = append(c.order, p.ID)
		}
		c.points[p.ID] = p
	}
	return nil
}

func (s *InMemoryVectorStore) PointExists(ctx context.Context, collection, docID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.get(collection)
	if err != nil {
		return false, err
	}
	for _, p := range c.points {
		if p.Payload.DocID == docID {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryVectorStore) Query(ctx context.Context, collection string, vector []float64, filter Filter, limit int) ([]ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []ScoredPoint{}, nil
	}
	if len(vector) != c.dim {
		return nil, fmt.Errorf("query dimension mismatch: got=%d want=%d", len(vector), c.dim)
	}

	results := make([]ScoredPoint, 0, len(c.points))
	for _, id := range c.order {
		p := c.points[id]
		if !filter.Match(p.Payload) {
			continue
		}
		results = append(results, ScoredPoint{Point: p, Score: score(c.metric, vector, p.Vector)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if limit < len(results) {
		results = results[:limit]
	}
	return results, nil
}

func (s *InMemoryVectorStore) Retrieve(ctx context.Context, collection string, ids []string) ([]Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	out := make([]Point, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.points[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *InMemoryVectorStore) Count(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.get(collection)
	if err != nil {
		return 0, err
	}
	return len(c.points), nil
}

// score returns a similarity where larger is closer.
func score(metric Metric, a, b []float64) float64 {
	switch metric {
	case MetricDot:
		var dot float64
		for i := range a {
			dot += a[i] * b[i]
		}
		return dot
	case MetricEuclidean:
		var sum float64
		for i := range a {
			d := a[i] - b[i]
			sum += d * d
		}
		return -math.Sqrt(sum)
	default:
		return cosineSimilarity(a, b)
	}
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
