package cache

import (
	"context"

	"github.com/BaSui01/sunyadvisor/rag"
	"go.uber.org/zap"
)

// CacheTypeQueryEmbedding labels query embedding hits and misses.
const CacheTypeQueryEmbedding = "query_embedding"

// Recorder counts cache outcomes.
type Recorder interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// QueryEmbeddings memoizes EmbedQuery results. Students ask the same
// questions often and the embedding server is the slowest hop before the
// vector search. Document embedding passes straight through.
type QueryEmbeddings struct {
	rag.EmbeddingProvider
	cache    *Manager
	recorder Recorder
	logger   *zap.Logger
}

var _ rag.EmbeddingProvider = (*QueryEmbeddings)(nil)

// NewQueryEmbeddings wraps next. recorder may be nil.
func NewQueryEmbeddings(next rag.EmbeddingProvider, cache *Manager, recorder Recorder, logger *zap.Logger) *QueryEmbeddings {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryEmbeddings{EmbeddingProvider: next, cache: cache, recorder: recorder, logger: logger}
}

// EmbedQuery returns the cached vector for query or computes and stores it.
// Cache failures degrade to the uncached path.
func (q *QueryEmbeddings) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	key := "qemb:" + HashKey(q.Name(), query)

	var vec []float64
	err := q.cache.GetJSON(ctx, key, &vec)
	switch {
	case err == nil && len(vec) > 0:
		q.record(true)
		return vec, nil
	case err != nil && !IsCacheMiss(err):
		q.logger.Warn("query embedding cache read failed", zap.Error(err))
	}
	q.record(false)

	vec, err = q.EmbeddingProvider.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := q.cache.SetJSON(ctx, key, vec, 0); err != nil {
		q.logger.Warn("query embedding cache write failed", zap.Error(err))
	}
	return vec, nil
}

func (q *QueryEmbeddings) record(hit bool) {
	if q.recorder == nil {
		return
	}
	if hit {
		q.recorder.RecordCacheHit(CacheTypeQueryEmbedding)
	} else {
		q.recorder.RecordCacheMiss(CacheTypeQueryEmbedding)
	}
}
