package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)
	m, err := NewManager(Config{Addr: mr.Addr(), KeyPrefix: "test:", DefaultTTL: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return mr, m
}

func TestNewManager_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewManager(Config{Addr: addr}, zap.NewNop())
	assert.Error(t, err)
}

func TestManager_SetGetDelete(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	_, err := m.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))

	require.NoError(t, m.Set(ctx, "k", "v", 0))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	// keys are namespaced and get the default TTL
	assert.True(t, mr.Exists("test:k"))
	assert.Equal(t, time.Minute, mr.TTL("test:k"))

	mr.FastForward(2 * time.Minute)
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, m.Set(ctx, "k", "v", time.Hour))
	require.NoError(t, m.Delete(ctx, "k"))
	assert.False(t, mr.Exists("test:k"))
}

func TestManager_JSON(t *testing.T) {
	_, m := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, m.SetJSON(ctx, "vec", []float64{0.1, 0.2}, 0))
	var vec []float64
	require.NoError(t, m.GetJSON(ctx, "vec", &vec))
	assert.Equal(t, []float64{0.1, 0.2}, vec)
}

func TestManager_Closed(t *testing.T) {
	_, m := setupTestRedis(t)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err := m.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Ping(context.Background()), ErrClosed)
}

func TestHashKey(t *testing.T) {
	assert.Equal(t, HashKey("a", "b"), HashKey("a", "b"))
	assert.NotEqual(t, HashKey("ab", ""), HashKey("a", "b"))
	assert.Len(t, HashKey("x"), 64)
}

type countingEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *countingEmbedder) EmbedQuery(ctx context.Context, q string) ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float64{float64(len(q)), 1}, nil
}

func (e *countingEmbedder) EmbedDocuments(ctx context.Context, docs []string) ([][]float64, error) {
	out := make([][]float64, len(docs))
	for i := range docs {
		out[i] = []float64{float64(i)}
	}
	return out, nil
}

func (e *countingEmbedder) Name() string { return "test-embedder" }

type recorder struct{ hits, misses int }

func (r *recorder) RecordCacheHit(string)  { r.hits++ }
func (r *recorder) RecordCacheMiss(string) { r.misses++ }

func TestQueryEmbeddings(t *testing.T) {
	_, m := setupTestRedis(t)
	inner := &countingEmbedder{}
	rec := &recorder{}
	q := NewQueryEmbeddings(inner, m, rec, zap.NewNop())
	ctx := context.Background()

	first, err := q.EmbedQuery(ctx, "nursing at alfred")
	require.NoError(t, err)
	second, err := q.EmbedQuery(ctx, "nursing at alfred")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)

	docs, err := q.EmbedDocuments(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, "test-embedder", q.Name())
}

func TestQueryEmbeddings_DegradesWhenRedisFails(t *testing.T) {
	mr, m := setupTestRedis(t)
	inner := &countingEmbedder{}
	q := NewQueryEmbeddings(inner, m, nil, nil)

	mr.SetError("LOADING")
	vec, err := q.EmbedQuery(context.Background(), "tuition")
	require.NoError(t, err)
	assert.NotEmpty(t, vec)

	inner.err = errors.New("embedding server down")
	_, err = q.EmbedQuery(context.Background(), "tuition")
	assert.Error(t, err)
}
