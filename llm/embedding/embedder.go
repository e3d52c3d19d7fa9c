package embedding

import (
	"context"
	"fmt"

	"github.com/BaSui01/sunyadvisor/llm/tokenizer"
	"go.uber.org/zap"
)

// WindowOverlap is the backward token overlap between adjacent windows of
// an overlength input.
const WindowOverlap = 20

// Embedder maps text to a fixed-dimension vector for one model. Inputs longer
// than the model's token limit are split into windows of MaxTokens-20 tokens
// overlapping by 20, each window is embedded and the element-wise mean is
// returned. The split depends only on the token stream, so the result is
// deterministic for a given provider.
type Embedder struct {
	provider  Provider
	tokenizer tokenizer.Tokenizer
	spec      ModelSpec
	logger    *zap.Logger
}

// NewEmbedder wraps provider with overlength handling for spec.
func NewEmbedder(provider Provider, tok tokenizer.Tokenizer, spec ModelSpec, logger *zap.Logger) (*Embedder, error) {
	if provider == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if spec.MaxTokens <= 2*WindowOverlap {
		return nil, fmt.Errorf("model %s max tokens %d too small for windowing", spec.Name, spec.MaxTokens)
	}
	if spec.Dimensions <= 0 {
		return nil, fmt.Errorf("model %s has no dimensions", spec.Name)
	}
	if tok == nil {
		tok = tokenizer.NewEstimatorTokenizer(spec.Name, spec.MaxTokens)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		provider:  provider,
		tokenizer: tok,
		spec:      spec,
		logger:    logger.With(zap.String("component", "embedder"), zap.String("model", spec.Name)),
	}, nil
}

// Name returns the underlying provider name.
func (e *Embedder) Name() string { return e.provider.Name() }

// Dimensions returns the vector dimension of the model.
func (e *Embedder) Dimensions() int { return e.spec.Dimensions }

// Spec returns the model spec.
func (e *Embedder) Spec() ModelSpec { return e.spec }

// Embed embeds a single passage.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vecs, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedQuery embeds a search query.
func (e *Embedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	windows, err := e.windows(query)
	if err != nil {
		return nil, err
	}
	if len(windows) == 1 {
		vec, err := e.provider.EmbedQuery(ctx, windows[0])
		if err != nil {
			return nil, err
		}
		return vec, e.checkDim(vec)
	}
	vecs := make([][]float64, 0, len(windows))
	for _, w := range windows {
		vec, err := e.provider.EmbedQuery(ctx, w)
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, vec)
	}
	return e.mean(vecs)
}

// EmbedDocuments embeds passages, sending every window of every passage
// through the provider in as few batches as possible.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var flat []string
	spans := make([][2]int, len(texts))
	for i, text := range texts {
		windows, err := e.windows(text)
		if err != nil {
			return nil, err
		}
		if len(windows) > 1 {
			e.logger.Debug("splitting overlength input", zap.Int("windows", len(windows)))
		}
		spans[i] = [2]int{len(flat), len(flat) + len(windows)}
		flat = append(flat, windows...)
	}

	vecs, err := e.provider.EmbedDocuments(ctx, flat)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(flat) {
		return nil, fmt.Errorf("provider returned %d vectors for %d inputs", len(vecs), len(flat))
	}

	out := make([][]float64, len(texts))
	for i, span := range spans {
		v, err := e.mean(vecs[span[0]:span[1]])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *Embedder) windows(text string) ([]string, error) {
	n, err := e.tokenizer.CountTokens(text)
	if err != nil {
		return nil, fmt.Errorf("count tokens: %w", err)
	}
	if n <= e.spec.MaxTokens {
		return []string{text}, nil
	}
	return tokenizer.SplitWindows(e.tokenizer, text, e.spec.MaxTokens-WindowOverlap, WindowOverlap)
}

func (e *Embedder) checkDim(v []float64) error {
	if len(v) != e.spec.Dimensions {
		return fmt.Errorf("embedding has %d dimensions, model %s expects %d", len(v), e.spec.Name, e.spec.Dimensions)
	}
	return nil
}

// mean returns the element-wise mean of vecs.
func (e *Embedder) mean(vecs [][]float64) ([]float64, error) {
	if len(vecs) == 0 {
		return nil, fmt.Errorf("no vectors to pool")
	}
	out := make([]float64, e.spec.Dimensions)
	for _, v := range vecs {
		if err := e.checkDim(v); err != nil {
			return nil, err
		}
		for j, x := range v {
			out[j] += x
		}
	}
	n := float64(len(vecs))
	for j := range out {
		out[j] /= n
	}
	return out, nil
}
