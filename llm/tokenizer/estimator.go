package tokenizer

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/BaSui01/sunyadvisor/types"
)

const (
	// latinRunesPerToken is the usual BPE ratio for English prose.
	latinRunesPerToken = 4.0
	// ideographRunesPerToken covers Han, Hiragana, Katakana and Hangul,
	// where a token rarely spans more than two characters.
	ideographRunesPerToken = 1.5
	// replyPrimer is the framing the model adds before its reply.
	replyPrimer = 3
)

const defaultEstimatorContext = 4096

// EstimatorTokenizer approximates token counts from rune counts. It has no
// vocabulary: Encode yields code points and windows are cut on rune
// boundaries.
type EstimatorTokenizer struct {
	model     string
	maxTokens int
	ratio     float64
}

// NewEstimatorTokenizer returns an estimator with the given context length,
// or 4096 when maxTokens is not positive.
func NewEstimatorTokenizer(model string, maxTokens int) *EstimatorTokenizer {
	if maxTokens <= 0 {
		maxTokens = defaultEstimatorContext
	}
	return &EstimatorTokenizer{model: model, maxTokens: maxTokens, ratio: latinRunesPerToken}
}

// WithCharsPerToken overrides the ratio used for non-ideographic text.
func (e *EstimatorTokenizer) WithCharsPerToken(ratio float64) *EstimatorTokenizer {
	e.ratio = ratio
	return e
}

// CountTokens never returns less than one for non-empty text.
func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	var ideographs, other int
	for _, r := range text {
		if isIdeographic(r) {
			ideographs++
		} else {
			other++
		}
	}
	n := int(float64(ideographs)/ideographRunesPerToken + float64(other)/e.ratio)
	return max(n, 1), nil
}

func (e *EstimatorTokenizer) CountMessages(messages []types.Message) (int, error) {
	total := replyPrimer
	for _, msg := range messages {
		n, _ := e.CountTokens(msg.Content)
		total += types.MessageOverhead + n
		for _, tc := range msg.ToolCalls {
			n, _ = e.CountTokens(tc.Name + string(tc.Arguments))
			total += n
		}
	}
	return total, nil
}

func (e *EstimatorTokenizer) Encode(text string) ([]int, error) {
	ids := make([]int, 0, utf8.RuneCountInString(text))
	for _, r := range text {
		ids = append(ids, int(r))
	}
	return ids, nil
}

func (e *EstimatorTokenizer) Decode(tokens []int) (string, error) {
	runes := make([]rune, len(tokens))
	for i, id := range tokens {
		if id < 0 || id > utf8.MaxRune {
			return "", fmt.Errorf("estimator: invalid code point %d", id)
		}
		runes[i] = rune(id)
	}
	return string(runes), nil
}

// Windows cuts text into runs of size*ratio runes that step back
// overlap*ratio runes from the previous end.
func (e *EstimatorTokenizer) Windows(text string, size, overlap int) ([]string, error) {
	width := int(float64(size) * e.ratio)
	back := int(float64(overlap) * e.ratio)
	if width <= 0 || back >= width {
		return nil, fmt.Errorf("estimator: invalid window %d/%d", size, overlap)
	}
	runes := []rune(text)
	if len(runes) <= width {
		return []string{text}, nil
	}
	var out []string
	for start := 0; ; start += width - back {
		end := min(start+width, len(runes))
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			return out, nil
		}
	}
}

func (e *EstimatorTokenizer) MaxTokens() int { return e.maxTokens }

func (e *EstimatorTokenizer) Name() string { return "estimator" }

func isIdeographic(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) ||
		(r >= 0x3000 && r <= 0x303F) || (r >= 0xFF00 && r <= 0xFFEF)
}
