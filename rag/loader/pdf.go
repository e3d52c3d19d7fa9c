package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFLoader extracts text page by page.
type PDFLoader struct{}

// NewPDFLoader creates a PDFLoader.
func NewPDFLoader() *PDFLoader {
	return &PDFLoader{}
}

// SupportedTypes returns the extensions handled by PDFLoader.
func (l *PDFLoader) SupportedTypes() []string {
	return []string{".pdf"}
}

// Load extracts every page of a PDF. Pages that fail to decode are kept as
// empty strings so page numbers stay aligned.
func (l *PDFLoader) Load(ctx context.Context, path string) (out *Extracted, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// The PDF library panics on some malformed inputs.
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("pdf loader: %s: malformed pdf: %v", path, p)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pdf loader: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	pages := make([]string, n)
	extracted := 0
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages[i-1] = strings.TrimSpace(text)
		extracted++
	}
	if n > 0 && extracted == 0 {
		return nil, fmt.Errorf("pdf loader: %s: no extractable text", path)
	}

	return &Extracted{Text: strings.Join(pages, "\n"), Pages: pages}, nil
}
