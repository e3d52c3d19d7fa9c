package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BaSui01/sunyadvisor/rag"
)

// DefaultExclude lists path substrings skipped during enumeration.
var DefaultExclude = []string{"faculty", "news", "events"}

// SourceFile is one corpus file queued for ingestion.
type SourceFile struct {
	Path       string // absolute path on disk
	DocID      string // POSIX path relative to the corpus root
	University string
	Type       rag.DocType
}

// RelPath returns the path inside the university subtree.
func (f SourceFile) RelPath() string {
	return strings.TrimPrefix(f.DocID, f.University+"/")
}

// Walker enumerates corpus files.
type Walker struct {
	exclude []string
}

// NewWalker creates a walker. A nil exclude list uses DefaultExclude; an
// empty non-nil list excludes nothing.
func NewWalker(exclude []string) *Walker {
	if exclude == nil {
		exclude = DefaultExclude
	}
	lowered := make([]string, 0, len(exclude))
	for _, e := range exclude {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			lowered = append(lowered, e)
		}
	}
	return &Walker{exclude: lowered}
}

// Universities returns the sorted university directory names under root.
func (w *Walker) Universities(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read corpus root: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Excluded reports whether docID matches an exclusion substring.
func (w *Walker) Excluded(docID string) bool {
	lower := strings.ToLower(docID)
	for _, e := range w.exclude {
		if strings.Contains(lower, e) {
			return true
		}
	}
	return false
}

// DocTypeOf maps a file extension to its document type.
func DocTypeOf(path string) (rag.DocType, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return rag.DocTypeHTML, true
	case ".pdf":
		return rag.DocTypePDF, true
	}
	return "", false
}

// Walk lists the HTML and PDF files of one university, sorted by DocID.
func (w *Walker) Walk(ctx context.Context, root, university string) ([]SourceFile, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	var files []SourceFile
	err = filepath.WalkDir(filepath.Join(absRoot, university), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		typ, ok := DocTypeOf(path)
		if !ok {
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		docID := filepath.ToSlash(rel)
		if w.Excluded(docID) {
			return nil
		}
		files = append(files, SourceFile{Path: path, DocID: docID, University: university, Type: typ})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", university, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].DocID < files[j].DocID })
	return files, nil
}
