package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BaSui01/sunyadvisor/rag"
)

// Cache file names inside each university directory.
const (
	HTMLCacheFile = "html_embeddings"
	PDFCacheFile  = "pdf_embeddings"
)

// CachePath returns the cache file of a university for typ.
func CachePath(root, university string, typ rag.DocType) string {
	name := HTMLCacheFile
	if typ == rag.DocTypePDF {
		name = PDFCacheFile
	}
	return filepath.Join(root, university, name)
}

// CachedPoint is a vector with its payload.
type CachedPoint struct {
	Vector  []float64   `json:"vector"`
	Payload rag.Payload `json:"payload"`
}

// CacheEntry holds every point of one document.
type CacheEntry struct {
	Parent CachedPoint   `json:"parent"`
	Chunks []CachedPoint `json:"chunks"`
}

// Points returns the parent followed by its chunks.
func (e CacheEntry) Points() []rag.Point {
	out := make([]rag.Point, 0, 1+len(e.Chunks))
	out = append(out, rag.Point{ID: e.Parent.Payload.PointID, Vector: e.Parent.Vector, Payload: e.Parent.Payload})
	for _, c := range e.Chunks {
		out = append(out, rag.Point{ID: c.Payload.PointID, Vector: c.Vector, Payload: c.Payload})
	}
	return out
}

// EmbeddingCache is an on-disk doc_id → CacheEntry map. It is rewritten
// whole on every Flush through a temp file and rename, so a crash leaves
// either the old or the new file.
type EmbeddingCache struct {
	mu      sync.RWMutex
	path    string
	entries map[string]CacheEntry
	pending int
}

// OpenCache loads path, or starts empty when it does not exist.
func OpenCache(path string) (*EmbeddingCache, error) {
	c := &EmbeddingCache{path: path, entries: make(map[string]CacheEntry)}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("read cache %s: %w", path, err)
	}
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("decode cache %s: %w", path, err)
	}
	return c, nil
}

// Path returns the cache file path.
func (c *EmbeddingCache) Path() string { return c.path }

// Has reports whether docID is cached.
func (c *EmbeddingCache) Has(docID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[docID]
	return ok
}

// Get returns the entry of docID.
func (c *EmbeddingCache) Get(docID string) (CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[docID]
	return e, ok
}

// Put stores an entry and returns the number of entries added since the
// last flush.
func (c *EmbeddingCache) Put(docID string, e CacheEntry) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[docID] = e
	c.pending++
	return c.pending
}

// Len returns the number of cached documents.
func (c *EmbeddingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// DocIDs returns cached ids in sorted order.
func (c *EmbeddingCache) DocIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Range calls fn for each entry in doc id order until fn returns an error.
func (c *EmbeddingCache) Range(fn func(docID string, e CacheEntry) error) error {
	for _, id := range c.DocIDs() {
		e, ok := c.Get(id)
		if !ok {
			continue
		}
		if err := fn(id, e); err != nil {
			return err
		}
	}
	return nil
}

// Flush rewrites the cache file when there are unsaved entries.
func (c *EmbeddingCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == 0 {
		return nil
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := json.NewEncoder(tmp).Encode(c.entries); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		cleanup()
		return fmt.Errorf("replace cache: %w", err)
	}
	c.pending = 0
	return nil
}
