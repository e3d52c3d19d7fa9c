package loader

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLLoader extracts visible text from HTML pages.
type HTMLLoader struct{}

// NewHTMLLoader creates an HTMLLoader.
func NewHTMLLoader() *HTMLLoader {
	return &HTMLLoader{}
}

// SupportedTypes returns the extensions handled by HTMLLoader.
func (l *HTMLLoader) SupportedTypes() []string {
	return []string{".html", ".htm"}
}

// Load reads and extracts an HTML file.
func (l *HTMLLoader) Load(ctx context.Context, path string) (*Extracted, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("html loader: %w", err)
	}
	defer f.Close()

	text, err := ExtractHTML(f)
	if err != nil {
		return nil, fmt.Errorf("html loader: %s: %w", path, err)
	}
	return &Extracted{Text: text}, nil
}

var (
	skipped = map[atom.Atom]bool{
		atom.Script:   true,
		atom.Style:    true,
		atom.Noscript: true,
		atom.Template: true,
		atom.Svg:      true,
		atom.Head:     true,
		atom.Iframe:   true,
	}
	blocks = map[atom.Atom]bool{
		atom.P: true, atom.Div: true, atom.Br: true, atom.Hr: true,
		atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
		atom.Li: true, atom.Tr: true, atom.Td: true, atom.Th: true, atom.Table: true,
		atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
		atom.Nav: true, atom.Blockquote: true, atom.Pre: true, atom.Ul: true, atom.Ol: true,
		atom.Main: true, atom.Aside: true, atom.Dt: true, atom.Dd: true,
	}
	multiSpaces   = regexp.MustCompile(`[ \t\r\f\v\x{00a0}]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// ExtractHTML walks the DOM and returns its visible text. Block elements
// start new lines and runs of three or more newlines collapse to two.
func ExtractHTML(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.CommentNode:
			return
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipped[n.DataAtom] {
				return
			}
			if blocks[n.DataAtom] {
				sb.WriteString("\n")
				defer sb.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	lines := strings.Split(sb.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(multiSpaces.ReplaceAllString(line, " "))
	}
	text := strings.Join(lines, "\n")
	text = multiNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text), nil
}
