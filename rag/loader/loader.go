package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Extracted is the text of one source file.
type Extracted struct {
	Text string
	// Pages holds per-page text for paged formats and is nil otherwise.
	Pages []string
}

// DocumentLoader extracts the text of one file type.
type DocumentLoader interface {
	Load(ctx context.Context, path string) (*Extracted, error)
	// SupportedTypes lists lowercase extensions with the leading dot.
	SupportedTypes() []string
}

// Registry picks a DocumentLoader by file extension, ignoring case. It is
// read-only after construction and safe for the ingestion workers to
// share.
type Registry struct {
	byExt map[string]DocumentLoader
}

// NewRegistry indexes loaders by extension. Later loaders win on a clash.
// With no arguments it serves the crawl's HTML pages and PDF catalogues.
func NewRegistry(loaders ...DocumentLoader) *Registry {
	if len(loaders) == 0 {
		loaders = []DocumentLoader{NewHTMLLoader(), NewPDFLoader()}
	}
	r := &Registry{byExt: make(map[string]DocumentLoader)}
	for _, l := range loaders {
		for _, ext := range l.SupportedTypes() {
			r.byExt[strings.ToLower(ext)] = l
		}
	}
	return r
}

func (r *Registry) lookup(path string) (DocumentLoader, string) {
	ext := strings.ToLower(filepath.Ext(path))
	return r.byExt[ext], ext
}

// Supports reports whether path has a registered extension.
func (r *Registry) Supports(path string) bool {
	l, _ := r.lookup(path)
	return l != nil
}

func (r *Registry) Load(ctx context.Context, path string) (*Extracted, error) {
	l, ext := r.lookup(path)
	switch {
	case ext == "":
		return nil, fmt.Errorf("loader: %q has no extension", path)
	case l == nil:
		return nil, fmt.Errorf("loader: unsupported file type %q", ext)
	}
	return l.Load(ctx, path)
}

// SupportedTypes returns the registered extensions, sorted.
func (r *Registry) SupportedTypes() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}
