package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/BaSui01/sunyadvisor/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	mu    sync.Mutex
	texts int
	calls int
}

func (e *countingEmbedder) EmbedQuery(_ context.Context, _ string) ([]float64, error) {
	return []float64{1, 0}, nil
}

func (e *countingEmbedder) EmbedDocuments(_ context.Context, docs []string) ([][]float64, error) {
	e.mu.Lock()
	e.calls++
	e.texts += len(docs)
	e.mu.Unlock()
	out := make([][]float64, len(docs))
	for i, d := range docs {
		out[i] = []float64{float64(len(d)), 1}
	}
	return out, nil
}

func (e *countingEmbedder) Name() string { return "counting" }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func buildCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "alfred", "programs", "culinary.html"),
		`<html><head><title>x</title></head><body><h1>Culinary Arts</h1><p>Uniform cost is $250.</p></body></html>`)
	writeFile(t, filepath.Join(root, "alfred", "news", "2024.html"), `<p>Campus news</p>`)
	writeFile(t, filepath.Join(root, "alfred", "catalog.pdf"), "not a pdf")
	writeFile(t, filepath.Join(root, "alfred", "notes.txt"), "ignored")
	writeFile(t, filepath.Join(root, "buffalo", "admissions", "index.html"), `<p>Apply to UB by November 1.</p>`)
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	return root
}

func TestWalker(t *testing.T) {
	root := buildCorpus(t)
	w := NewWalker(nil)

	unis, err := w.Universities(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"alfred", "buffalo"}, unis)

	files, err := w.Walk(context.Background(), root, "alfred")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "alfred/catalog.pdf", files[0].DocID)
	assert.Equal(t, rag.DocTypePDF, files[0].Type)
	assert.Equal(t, "alfred/programs/culinary.html", files[1].DocID)
	assert.Equal(t, "programs/culinary.html", files[1].RelPath())

	all, err := NewWalker([]string{}).Walk(context.Background(), root, "alfred")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.True(t, w.Excluded("alfred/Faculty/smith.html"))
	assert.False(t, w.Excluded("alfred/programs/culinary.html"))
}

func TestEmbeddingCache_FlushAndReload(t *testing.T) {
	path := CachePath(t.TempDir(), "alfred", rag.DocTypePDF)
	assert.Equal(t, PDFCacheFile, filepath.Base(path))

	c, err := OpenCache(path)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
	require.NoError(t, c.Flush(), "flushing an unchanged cache is a no-op")
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	doc := rag.NewSourceDocument("alfred/b.pdf", "alfred", rag.DocTypePDF, "text")
	entry := CacheEntry{Parent: CachedPoint{Vector: []float64{1, 2}, Payload: doc.ParentPayload()}}
	assert.Equal(t, 1, c.Put("alfred/b.pdf", entry))
	assert.Equal(t, 2, c.Put("alfred/a.pdf", entry))
	require.NoError(t, c.Flush())

	reloaded, err := OpenCache(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"alfred/a.pdf", "alfred/b.pdf"}, reloaded.DocIDs())
	got, ok := reloaded.Get("alfred/b.pdf")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2}, got.Parent.Vector)
	assert.Equal(t, doc.ParentPointID, got.Points()[0].ID)

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	assert.Empty(t, matches)
}

func TestOpenCache_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), HTMLCacheFile)
	writeFile(t, path, "{not json")
	_, err := OpenCache(path)
	assert.ErrorContains(t, err, "decode cache")
}

func TestURLResolver_Candidates(t *testing.T) {
	r := NewURLResolver(URLResolverConfig{Hosts: map[string]string{"alfred": "www.alfredstate.edu"}}, nil, nil)

	assert.Equal(t, []string{
		"https://www.alfredstate.edu/programs/culinary/",
		"https://www.alfredstate.edu/programs/culinary",
		"https://www.alfredstate.edu/programs/culinary.html",
		"https://www.alfredstate.edu/programs/culinary/index.html",
		"https://www.alfredstate.edu/programs/culinary/index.php",
		"https://www.alfredstate.edu/programs/culinary.php",
		"https://www.alfredstate.edu/programs/culinary.cfm",
		"https://www.alfredstate.edu/programs/culinary.aspx",
		"https://www.alfredstate.edu/programs/culinary.htm",
	}, r.Candidates("alfred", "programs/culinary.html"))

	assert.Equal(t, []string{
		"https://www.buffalo.edu/",
		"https://www.buffalo.edu",
	}, r.Candidates("buffalo", "www.buffalo.edu/index.html"))

	assert.Equal(t, "https://www.alfredstate.edu/admissions/", r.Candidates("alfred", "admissions/index.html")[0])
	assert.Nil(t, r.Candidates("unknown", "a.html"))
}

func TestURLResolver_Resolve(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.URL.Path)
		mu.Unlock()
		if r.URL.Path == "/programs/culinary.html" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	r := NewURLResolver(URLResolverConfig{
		Hosts:       map[string]string{"alfred": u.Host},
		Scheme:      "http",
		RatePerHost: 1000,
		Burst:       10,
	}, nil, nil)

	got := r.Resolve(context.Background(), "alfred", "programs/culinary.html")
	require.NotNil(t, got)
	assert.Equal(t, srv.URL+"/programs/culinary.html", *got)
	assert.Equal(t, []string{"/programs/culinary/", "/programs/culinary", "/programs/culinary.html"}, seen)

	assert.Nil(t, r.Resolve(context.Background(), "alfred", "missing.html"))
}

type countingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
	points   int
}

func (o *countingObserver) ObserveDocument(_ string, _ rag.DocType, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[outcome]++
}

func (o *countingObserver) ObservePoints(n int) {
	o.mu.Lock()
	o.points += n
	o.mu.Unlock()
}

func TestPipeline_EmbedThenInsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	root := buildCorpus(t)
	emb := &countingEmbedder{}
	store := rag.NewInMemoryVectorStore(nil)
	obs := &countingObserver{}

	chunker, err := rag.NewWordChunker(rag.ChunkingConfig{ChunkSize: 4, ChunkOverlap: 1}, nil)
	require.NoError(t, err)
	p, err := NewPipeline(Config{Root: root, Workers: 2, InsertBatchSize: 3}, chunker, emb, store, nil, WithObserver(obs))
	require.NoError(t, err)

	report, err := p.Embed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Seen)
	assert.Equal(t, 2, report.Embedded)
	assert.Equal(t, 1, report.Failed, "the broken pdf is skipped")
	assert.Equal(t, 2, emb.calls)

	_, err = os.Stat(CachePath(root, "alfred", rag.DocTypeHTML))
	require.NoError(t, err)

	report, err = p.Embed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.SkippedCached)
	assert.Equal(t, 0, report.Embedded)
	assert.Equal(t, 2, emb.calls, "cached documents are not embedded again")

	report, err = p.Insert(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, emb.texts, report.Points)

	count, err := store.Count(ctx, rag.DefaultCollection)
	require.NoError(t, err)
	assert.Equal(t, emb.texts, count)

	exists, err := store.PointExists(ctx, rag.DefaultCollection, "alfred/programs/culinary.html")
	require.NoError(t, err)
	assert.True(t, exists)

	parents, err := store.Retrieve(ctx, rag.DefaultCollection, []string{rag.ParentPointID("alfred/programs/culinary.html")})
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.Contains(t, parents[0].Payload.Content, "Uniform cost is $250.")
	assert.Equal(t, "alfred", parents[0].Payload.University)

	report, err = p.Insert(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Inserted)
	assert.Equal(t, 2, report.SkippedExisting)

	count, err = store.Count(ctx, rag.DefaultCollection)
	require.NoError(t, err)
	assert.Equal(t, emb.texts, count)
	assert.Equal(t, emb.texts, obs.points)
	assert.Equal(t, 2, obs.outcomes[OutcomeAlreadyPresent])
}

func TestPipeline_Validation(t *testing.T) {
	_, err := NewPipeline(Config{}, nil, nil, nil, nil)
	assert.Error(t, err)

	p, err := NewPipeline(Config{Root: t.TempDir()}, nil, nil, nil, nil)
	require.NoError(t, err)
	_, err = p.Embed(context.Background())
	assert.Error(t, err)
	_, err = p.Insert(context.Background())
	assert.Error(t, err)
}
