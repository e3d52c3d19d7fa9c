package loader

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractHTML(t *testing.T) {
	page := `<!DOCTYPE html>
<html><head><title>Admissions</title><style>body{color:red}</style></head>
<body>
  <script>var x = 1;</script>
  <nav>Home</nav>
  <h1>Apply   to   Buffalo</h1>
  <p>Deadline is <b>Nov 1</b>.</p>



  <div><div><div><p>Tuition &amp; fees</p></div></div></div>
  <noscript>Enable JS</noscript>
  <!-- hidden -->
</body></html>`

	text, err := ExtractHTML(strings.NewReader(page))
	require.NoError(t, err)

	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "color:red")
	assert.NotContains(t, text, "Enable JS")
	assert.NotContains(t, text, "hidden")
	assert.NotContains(t, text, "Admissions")
	assert.NotContains(t, text, "\n\n\n")
	assert.Contains(t, text, "Apply to Buffalo")
	assert.Contains(t, text, "Deadline is Nov 1.")
	assert.Contains(t, text, "Tuition & fees")
	assert.True(t, strings.HasPrefix(text, "Home"))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{".htm", ".html", ".pdf"}, r.SupportedTypes())
	assert.True(t, r.Supports("/a/B.HTML"))
	assert.False(t, r.Supports("/a/b.docx"))

	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>hello</p><p>world</p>"), 0o644))

	out, err := r.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n\nworld", out.Text)
	assert.Nil(t, out.Pages)

	_, err = r.Load(context.Background(), filepath.Join(dir, "README"))
	assert.Error(t, err)
	_, err = r.Load(context.Background(), filepath.Join(dir, "notes.txt"))
	assert.Error(t, err)
}

func TestPDFLoader_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))

	_, err := NewPDFLoader().Load(context.Background(), path)
	assert.Error(t, err)
}
