package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/BaSui01/sunyadvisor/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test helpers
// =============================================================================

// spaceTokenizer counts and splits on single spaces.
type spaceTokenizer struct{}

func (spaceTokenizer) CountTokens(text string) (int, error) { return len(strings.Fields(text)), nil }
func (spaceTokenizer) CountMessages(m []types.Message) (int, error) {
	return 0, nil
}
func (spaceTokenizer) Encode(string) ([]int, error) { return nil, fmt.Errorf("unused") }
func (spaceTokenizer) Decode([]int) (string, error) { return "", fmt.Errorf("unused") }
func (spaceTokenizer) MaxTokens() int               { return 0 }
func (spaceTokenizer) Name() string                 { return "space" }

func (spaceTokenizer) Windows(text string, size, overlap int) ([]string, error) {
	words := strings.Fields(text)
	var out []string
	for start := 0; start < len(words); start += size - overlap {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return out, nil
}

// lengthProvider embeds a text as [len(words), 1, 0, ...].
type lengthProvider struct {
	dims  int
	calls atomic.Int32
	seen  [][]string
}

func (p *lengthProvider) vec(text string) []float64 {
	v := make([]float64, p.dims)
	v[0] = float64(len(strings.Fields(text)))
	v[1] = 1
	return v
}

func (p *lengthProvider) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	p.calls.Add(1)
	p.seen = append(p.seen, req.Input)
	resp := &EmbeddingResponse{}
	for i, in := range req.Input {
		resp.Embeddings = append(resp.Embeddings, EmbeddingData{Index: i, Embedding: p.vec(in)})
	}
	return resp, nil
}

func (p *lengthProvider) EmbedQuery(ctx context.Context, q string) ([]float64, error) {
	p.calls.Add(1)
	return p.vec(q), nil
}

func (p *lengthProvider) EmbedDocuments(ctx context.Context, docs []string) ([][]float64, error) {
	resp, err := p.Embed(ctx, &EmbeddingRequest{Input: docs})
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Embedding
	}
	return out, nil
}

func (p *lengthProvider) Name() string      { return "length" }
func (p *lengthProvider) Dimensions() int   { return p.dims }
func (p *lengthProvider) MaxBatchSize() int { return 100 }

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(w, " ")
}

// =============================================================================
// Model registry
// =============================================================================

func TestLookupModel(t *testing.T) {
	t.Parallel()

	spec, ok := LookupModel("sentence-transformers/all-MiniLM-L6-v2")
	require.True(t, ok)
	assert.Equal(t, 384, spec.Dimensions)
	assert.Equal(t, 512, spec.MaxTokens)

	spec, ok = LookupModel("nomic-embed-text:latest")
	require.True(t, ok)
	assert.Equal(t, 768, spec.Dimensions)
	assert.Equal(t, 8192, spec.MaxTokens)

	_, ok = LookupModel("mystery")
	assert.False(t, ok)
}

func TestResolveModel(t *testing.T) {
	t.Parallel()

	_, err := ResolveModel("mystery", 0, 0)
	assert.Error(t, err)

	spec, err := ResolveModel("mystery", 1024, 2048)
	require.NoError(t, err)
	assert.Equal(t, 1024, spec.Dimensions)

	spec, err = ResolveModel(ModelMiniLM, 0, 256)
	require.NoError(t, err)
	assert.Equal(t, 384, spec.Dimensions)
	assert.Equal(t, 256, spec.MaxTokens)
}

// =============================================================================
// Embedder windowing
// =============================================================================

func TestEmbedder_ShortInputSingleCall(t *testing.T) {
	t.Parallel()

	p := &lengthProvider{dims: 4}
	e, err := NewEmbedder(p, spaceTokenizer{}, ModelSpec{Name: "m", Dimensions: 4, MaxTokens: 50}, nil)
	require.NoError(t, err)

	v, err := e.Embed(context.Background(), words(10))
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 1, 0, 0}, v)
	assert.Equal(t, [][]string{{words(10)}}, p.seen)
}

func TestEmbedder_OverlengthMeanPooled(t *testing.T) {
	t.Parallel()

	p := &lengthProvider{dims: 3}
	// max 50 → windows of 30 tokens stepping by 10.
	e, err := NewEmbedder(p, spaceTokenizer{}, ModelSpec{Name: "m", Dimensions: 3, MaxTokens: 50}, nil)
	require.NoError(t, err)

	v, err := e.Embed(context.Background(), words(60))
	require.NoError(t, err)

	// windows start at 0,10,20,30 → lengths 30,30,30,30
	require.Len(t, p.seen, 1)
	require.Len(t, p.seen[0], 4)
	for _, w := range p.seen[0] {
		assert.LessOrEqual(t, len(strings.Fields(w)), 30)
	}
	assert.Equal(t, []float64{30, 1, 0}, v)
}

func TestEmbedder_BatchesWindowsAcrossDocuments(t *testing.T) {
	t.Parallel()

	p := &lengthProvider{dims: 2}
	// max 45 → windows of 25 tokens stepping by 5.
	e, err := NewEmbedder(p, spaceTokenizer{}, ModelSpec{Name: "m", Dimensions: 2, MaxTokens: 45}, nil)
	require.NoError(t, err)

	vecs, err := e.EmbedDocuments(context.Background(), []string{words(5), words(60), words(7)})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, []float64{5, 1}, vecs[0])
	assert.Equal(t, []float64{7, 1}, vecs[2])
	assert.Equal(t, []float64{25, 1}, vecs[1])
	// starts 0,5,...,35
	assert.Len(t, p.seen[0], 1+8+1)
}

func TestEmbedder_Deterministic(t *testing.T) {
	t.Parallel()

	p := &lengthProvider{dims: 2}
	e, err := NewEmbedder(p, spaceTokenizer{}, ModelSpec{Name: "m", Dimensions: 2, MaxTokens: 41}, nil)
	require.NoError(t, err)

	a, err := e.Embed(context.Background(), words(99))
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), words(99))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEmbedder_DimensionMismatch(t *testing.T) {
	t.Parallel()

	p := &lengthProvider{dims: 3}
	e, err := NewEmbedder(p, spaceTokenizer{}, ModelSpec{Name: "m", Dimensions: 4, MaxTokens: 50}, nil)
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestNewEmbedder_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewEmbedder(nil, nil, ModelSpec{Dimensions: 1, MaxTokens: 100}, nil)
	assert.Error(t, err)
	_, err = NewEmbedder(&lengthProvider{dims: 1}, nil, ModelSpec{Dimensions: 1, MaxTokens: 20}, nil)
	assert.Error(t, err)
}

// =============================================================================
// HTTP provider
// =============================================================================

func TestHTTPProvider_Embed(t *testing.T) {
	var got httpEmbedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		data := make([]map[string]any, len(got.Input))
		for i := range got.Input {
			vec := make([]float64, 768)
			vec[0] = float64(i)
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": vec}
		}
		json.NewEncoder(w).Encode(map[string]any{"model": got.Model, "data": data})
	}))
	t.Cleanup(server.Close)

	p, err := NewHTTPProvider(HTTPConfig{BaseURL: server.URL, Model: "nomic-embed-text"})
	require.NoError(t, err)
	assert.Equal(t, 768, p.Dimensions())

	vecs, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, float64(1), vecs[1][0])
	assert.Equal(t, []string{"search_document: a", "search_document: b"}, got.Input)

	_, err = p.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"search_query: q"}, got.Input)
}

func TestHTTPProvider_WrongDimensions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"index":0,"embedding":[0.1,0.2]}]}`)
	}))
	t.Cleanup(server.Close)

	p, err := NewHTTPProvider(HTTPConfig{BaseURL: server.URL, Model: ModelMiniLM})
	require.NoError(t, err)
	_, err = p.EmbedQuery(context.Background(), "q")
	assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))
}

func TestHTTPProvider_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error":"model loading"}`)
	}))
	t.Cleanup(server.Close)

	p, err := NewHTTPProvider(HTTPConfig{BaseURL: server.URL, Model: ModelMiniLM})
	require.NoError(t, err)
	_, err = p.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, types.IsTransient(err))
}
