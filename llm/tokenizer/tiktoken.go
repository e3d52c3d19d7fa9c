package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/BaSui01/sunyadvisor/types"
	"github.com/pkoukk/tiktoken-go"
)

// bpeModel is the vocabulary and context length of a model family. The open
// embedding models ship their own WordPiece vocabularies; cl100k counts stay
// within a few percent of them, which is enough to size input windows.
type bpeModel struct {
	prefix   string
	encoding string
	context  int
}

// bpeModels lists a prefix before any shorter prefix of it, so the first
// match is the most specific.
var bpeModels = []bpeModel{
	{"text-embedding-3-large", "cl100k_base", 8191},
	{"text-embedding-3-small", "cl100k_base", 8191},
	{"nomic-embed-text", "cl100k_base", 8192},
	{"all-MiniLM-L6-v2", "cl100k_base", 512},
	{"bge-small-en", "cl100k_base", 512},
	{"gpt-3.5-turbo", "cl100k_base", 16385},
	{"gpt-4-turbo", "cl100k_base", 128000},
	{"gpt-4o-mini", "o200k_base", 128000},
	{"gpt-4.1", "o200k_base", 1047576},
	{"gpt-4o", "o200k_base", 128000},
	{"gpt-4", "cl100k_base", 8192},
}

var defaultBPE = bpeModel{encoding: "cl100k_base", context: 8192}

func lookupBPE(model string) bpeModel {
	for _, m := range bpeModels {
		if strings.HasPrefix(model, m.prefix) {
			return m
		}
	}
	return defaultBPE
}

// TiktokenTokenizer counts with the model's BPE ranks. The ranks load on
// first use and may be fetched over the network; when that fails every call
// is answered by the character estimator instead, so ingestion keeps going
// on an air-gapped host.
type TiktokenTokenizer struct {
	model bpeModel

	load     sync.Once
	enc      *tiktoken.Tiktoken
	fallback *EstimatorTokenizer
	loadErr  error
}

func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	m := lookupBPE(model)
	return &TiktokenTokenizer{model: m}, nil
}

func (t *TiktokenTokenizer) encoder() *tiktoken.Tiktoken {
	t.load.Do(func() {
		enc, err := tiktoken.GetEncoding(t.model.encoding)
		if err != nil {
			t.loadErr = types.NewError(types.ErrTokenizerError, "load "+t.model.encoding+" ranks").WithCause(err)
			t.fallback = NewEstimatorTokenizer(t.model.prefix, t.model.context)
			return
		}
		t.enc = enc
	})
	return t.enc
}

// Err reports why the BPE ranks could not be loaded, if they could not.
func (t *TiktokenTokenizer) Err() error {
	t.encoder()
	return t.loadErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	enc := t.encoder()
	if enc == nil {
		return t.fallback.CountTokens(text)
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// CountMessages adds the chat framing: a fixed cost per message, the role
// name, each tool call and a closing primer for the reply.
func (t *TiktokenTokenizer) CountMessages(messages []types.Message) (int, error) {
	enc := t.encoder()
	if enc == nil {
		return t.fallback.CountMessages(messages)
	}
	n := replyPrimer
	for _, msg := range messages {
		n += types.MessageOverhead + len(enc.Encode(string(msg.Role)+msg.Content, nil, nil))
		for _, tc := range msg.ToolCalls {
			n += len(enc.Encode(tc.Name+string(tc.Arguments), nil, nil))
		}
	}
	return n, nil
}

func (t *TiktokenTokenizer) Encode(text string) ([]int, error) {
	enc := t.encoder()
	if enc == nil {
		return t.fallback.Encode(text)
	}
	return enc.Encode(text, nil, nil), nil
}

func (t *TiktokenTokenizer) Decode(tokens []int) (string, error) {
	enc := t.encoder()
	if enc == nil {
		return t.fallback.Decode(tokens)
	}
	return enc.Decode(tokens), nil
}

func (t *TiktokenTokenizer) MaxTokens() int { return t.model.context }

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.model.encoding)
}

// registerBPEModels makes every known model family resolvable through
// GetTokenizer. It runs once, on the first lookup.
func registerBPEModels() {
	for _, m := range bpeModels {
		t, _ := NewTiktokenTokenizer(m.prefix)
		RegisterTokenizer(m.prefix, t)
	}
}
