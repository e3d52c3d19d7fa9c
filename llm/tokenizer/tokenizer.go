package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/BaSui01/sunyadvisor/types"
)

// Tokenizer is the unified token counting interface.
type Tokenizer interface {
	// CountTokens returns the number of tokens in text.
	CountTokens(text string) (int, error)

	// CountMessages returns the total token count of a message list
	// including per-message framing overhead.
	CountMessages(messages []types.Message) (int, error)

	// Encode converts text to token ids.
	Encode(text string) ([]int, error)

	// Decode converts token ids back to text.
	Decode(tokens []int) (string, error)

	// MaxTokens returns the model's context length.
	MaxTokens() int

	// Name returns the tokenizer name.
	Name() string
}

// WindowSplitter is implemented by tokenizers that can cut text into token
// windows without a round trip through Encode/Decode.
type WindowSplitter interface {
	Windows(text string, size, overlap int) ([]string, error)
}

var (
	modelTokenizers   = make(map[string]Tokenizer)
	modelTokenizersMu sync.RWMutex
	builtinsOnce      sync.Once
)

// RegisterTokenizer registers a tokenizer for the given model name.
func RegisterTokenizer(model string, t Tokenizer) {
	modelTokenizersMu.Lock()
	defer modelTokenizersMu.Unlock()
	modelTokenizers[model] = t
}

// GetTokenizer returns the tokenizer registered for model, falling back to
// the longest registered prefix ("gpt-4o" matches "gpt-4o-mini"). The BPE
// tokenizers of the known chat and embedding models are registered on the
// first call.
func GetTokenizer(model string) (Tokenizer, error) {
	builtinsOnce.Do(registerBPEModels)
	modelTokenizersMu.RLock()
	defer modelTokenizersMu.RUnlock()

	if t, ok := modelTokenizers[model]; ok {
		return t, nil
	}

	var best Tokenizer
	bestLen := 0
	for prefix, t := range modelTokenizers {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = t, len(prefix)
		}
	}
	if best != nil {
		return best, nil
	}
	return nil, fmt.Errorf("no tokenizer registered for model: %s", model)
}

// GetTokenizerOrEstimator returns the registered tokenizer for model, or the
// generic estimator when none is registered.
func GetTokenizerOrEstimator(model string) Tokenizer {
	t, err := GetTokenizer(model)
	if err != nil {
		return NewEstimatorTokenizer(model, 0)
	}
	return t
}

// SplitWindows cuts text into windows of at most size tokens where each
// window starts overlap tokens before the previous one ended. Text that fits
// in a single window is returned unchanged.
func SplitWindows(t Tokenizer, text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap %d must be in [0, %d)", overlap, size)
	}
	if ws, ok := t.(WindowSplitter); ok {
		return ws.Windows(text, size, overlap)
	}

	ids, err := t.Encode(text)
	if err != nil {
		return nil, err
	}
	if len(ids) <= size {
		return []string{text}, nil
	}
	var windows []string
	step := size - overlap
	for start := 0; start < len(ids); start += step {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		w, err := t.Decode(ids[start:end])
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
		if end == len(ids) {
			break
		}
	}
	return windows, nil
}

// Counter adapts a Tokenizer to types.TokenCounter. Counting errors fall
// back to the character estimate so budgeting never fails outright.
type Counter struct {
	T Tokenizer
}

// CountTokens implements types.TokenCounter.
func (c Counter) CountTokens(text string) int {
	if c.T != nil {
		if n, err := c.T.CountTokens(text); err == nil {
			return n
		}
	}
	return types.EstimateCounter{}.CountTokens(text)
}
