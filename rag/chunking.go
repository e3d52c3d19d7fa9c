package rag

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ChunkingConfig controls the sliding word window.
type ChunkingConfig struct {
	ChunkSize    int `json:"chunk_size" yaml:"chunk_size"`         // words per window
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"`   // words shared by adjacent windows
	MinChunkSize int `json:"min_chunk_size" yaml:"min_chunk_size"` // trailing windows below this merge backwards
}

// DefaultChunkingConfig returns 256-word windows overlapping by 32 words.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		ChunkSize:    256,
		ChunkOverlap: 32,
		MinChunkSize: 128,
	}
}

// Validate checks the window parameters.
func (c ChunkingConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	return nil
}

// TextChunk is one window carved from a text. Content is the exact byte
// range [StartOffset, EndOffset) of the source, whitespace included.
type TextChunk struct {
	ChunkID     int    `json:"chunk_id"`
	Content     string `json:"content"`
	StartWord   int    `json:"start_word"`
	EndWord     int    `json:"end_word"` // exclusive
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	StartPage   *int   `json:"start_page,omitempty"` // 1-based, paged input only
	EndPage     *int   `json:"end_page,omitempty"`
}

// WordChunker splits text into overlapping word windows.
type WordChunker struct {
	config ChunkingConfig
	logger *zap.Logger
}

// NewWordChunker creates a chunker. Zero fields fall back to the defaults.
func NewWordChunker(config ChunkingConfig, logger *zap.Logger) (*WordChunker, error) {
	def := DefaultChunkingConfig()
	if config.ChunkSize == 0 {
		config.ChunkSize = def.ChunkSize
		if config.ChunkOverlap == 0 {
			config.ChunkOverlap = def.ChunkOverlap
		}
	}
	if config.MinChunkSize == 0 {
		config.MinChunkSize = config.ChunkSize / 2
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WordChunker{config: config, logger: logger}, nil
}

// Config returns the effective configuration.
func (c *WordChunker) Config() ChunkingConfig { return c.config }

// span is a word with the whitespace preceding it: text[start:end] where
// text[start:wordStart] is whitespace.
type span struct {
	start     int
	wordStart int
	end       int
}

// splitWords tokenises text into spans whose concatenation is text. Leading
// whitespace belongs to the first word and trailing whitespace to the last.
func splitWords(text string) []span {
	var spans []span
	i := 0
	for i < len(text) {
		start := i
		for i < len(text) {
			r, size := utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(r) {
				break
			}
			i += size
		}
		if i == len(text) {
			if len(spans) > 0 {
				spans[len(spans)-1].end = len(text)
			}
			break
		}
		wordStart := i
		for i < len(text) {
			r, size := utf8.DecodeRuneInString(text[i:])
			if unicode.IsSpace(r) {
				break
			}
			i += size
		}
		spans = append(spans, span{start: start, wordStart: wordStart, end: i})
	}
	return spans
}

// windows returns [start, end) word ranges after merging a short tail.
func (c *WordChunker) windows(n int) [][2]int {
	if n == 0 {
		return nil
	}
	stride := c.config.ChunkSize - c.config.ChunkOverlap
	var out [][2]int
	for start := 0; ; start += stride {
		end := start + c.config.ChunkSize
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
		if end == n {
			break
		}
	}
	if len(out) > 1 {
		last := out[len(out)-1]
		if last[1]-last[0] < c.config.MinChunkSize {
			out = out[:len(out)-1]
			out[len(out)-1][1] = n
		}
	}
	return out
}

// ChunkText splits flat text. Whitespace-only input yields no chunks.
func (c *WordChunker) ChunkText(text string) []TextChunk {
	spans := splitWords(text)
	wins := c.windows(len(spans))

	chunks := make([]TextChunk, 0, len(wins))
	for i, w := range wins {
		from := spans[w[0]].start
		to := spans[w[1]-1].end
		chunks = append(chunks, TextChunk{
			ChunkID:     i,
			Content:     text[from:to],
			StartWord:   w[0],
			EndWord:     w[1],
			StartOffset: from,
			EndOffset:   to,
		})
	}

	c.logger.Debug("text chunked",
		zap.Int("words", len(spans)),
		zap.Int("chunks", len(chunks)))
	return chunks
}

// ChunkPages splits a paged document. Pages are joined with "\n" and each
// chunk records the 1-based pages its words fall on.
func (c *WordChunker) ChunkPages(pages []string) []TextChunk {
	text := strings.Join(pages, "\n")

	// pageStarts[i] is the byte offset where page i begins in text.
	pageStarts := make([]int, len(pages))
	off := 0
	for i, p := range pages {
		pageStarts[i] = off
		off += len(p) + 1
	}
	pageOf := func(offset int) int {
		return sort.Search(len(pageStarts), func(i int) bool { return pageStarts[i] > offset }) // 1-based
	}

	spans := splitWords(text)
	chunks := c.ChunkText(text)
	for i := range chunks {
		first := pageOf(spans[chunks[i].StartWord].wordStart)
		last := pageOf(spans[chunks[i].EndWord-1].wordStart)
		chunks[i].StartPage = &first
		chunks[i].EndPage = &last
	}
	return chunks
}
