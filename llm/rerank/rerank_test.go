package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/sunyadvisor/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPProvider_TEI(t *testing.T) {
	var got teiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `[{"index":1,"score":0.2},{"index":0,"score":0.9},{"index":2,"score":0.5}]`)
	}))
	t.Cleanup(server.Close)

	p := NewHTTPProvider(HTTPConfig{BaseURL: server.URL})
	results, err := p.RerankSimple(context.Background(), "tuition", []string{"a", "b", "c"}, 2)
	require.NoError(t, err)

	assert.Equal(t, "tuition", got.Query)
	assert.Equal(t, []string{"a", "b", "c"}, got.Texts)
	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].Index)
	assert.Equal(t, "a", results[0].Document.Text)
	assert.Equal(t, 2, results[1].Index)
}

func TestHTTPProvider_Jina(t *testing.T) {
	var got jinaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rerank", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"model":"m","results":[{"index":1,"relevance_score":0.7},{"index":0,"relevance_score":0.1}]}`)
	}))
	t.Cleanup(server.Close)

	p := NewHTTPProvider(HTTPConfig{BaseURL: server.URL, Wire: WireJina, APIKey: "k"})
	resp, err := p.Rerank(context.Background(), &RerankRequest{
		Query:     "q",
		Documents: []Document{{Text: "x"}, {Text: "y"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, got.Documents)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "y", resp.Results[0].Document.Text)
}

func TestHTTPProvider_EmptyDocumentsSkipsServer(t *testing.T) {
	p := NewHTTPProvider(HTTPConfig{BaseURL: "http://127.0.0.1:1"})
	results, err := p.RerankSimple(context.Background(), "q", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHTTPProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   types.ErrorCode
	}{
		{"unavailable", http.StatusServiceUnavailable, `{"error":"loading"}`, types.ErrServiceUnavailable},
		{"bad index", http.StatusOK, `[{"index":9,"score":1}]`, types.ErrUpstreamError},
		{"garbage", http.StatusOK, `not json`, types.ErrUpstreamError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			p := NewHTTPProvider(HTTPConfig{BaseURL: server.URL})
			_, err := p.RerankSimple(context.Background(), "q", []string{"a"}, 0)
			require.Error(t, err)
			assert.Equal(t, tt.code, types.GetErrorCode(err))
		})
	}
}

func TestHTTPProvider_TooManyDocuments(t *testing.T) {
	p := NewHTTPProvider(HTTPConfig{BaseURL: "http://127.0.0.1:1", MaxDocuments: 1})
	_, err := p.RerankSimple(context.Background(), "q", []string{"a", "b"}, 0)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
}

func TestSortResults_StableOnTies(t *testing.T) {
	r := []RerankResult{{Index: 2, RelevanceScore: 1}, {Index: 0, RelevanceScore: 1}, {Index: 1, RelevanceScore: 3}}
	SortResults(r)
	assert.Equal(t, []int{1, 0, 2}, []int{r[0].Index, r[1].Index, r[2].Index})
}
