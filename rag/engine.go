package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultCollection is the collection every university shares.
const DefaultCollection = "suny"

// EngineConfig configures retrieval fan-out and context size.
type EngineConfig struct {
	Collection string `json:"collection" yaml:"collection"`
	TopN       int    `json:"top_n" yaml:"top_n"` // vector search fan-out
	TopK       int    `json:"top_k" yaml:"top_k"` // blocks kept after rerank
	Separator  string `json:"separator" yaml:"separator"`
}

// DefaultEngineConfig returns the production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Collection: DefaultCollection,
		TopN:       20,
		TopK:       5,
		Separator:  "\n\n---\n\n",
	}
}

// RetrieveOptions narrows a retrieval by payload equality.
type RetrieveOptions struct {
	University string
	Type       DocType
}

// Hit is one reranked candidate and the block it expanded to. Duplicate
// parents keep their Hit but have an empty Block.
type Hit struct {
	Point       ScoredPoint
	RerankScore float64
	Block       string
}

// Result is grounded context ready to hand to a model.
type Result struct {
	Context string
	Sources []string // doc_id of every block, in context order
	Hits    []Hit
}

// RetrievalObserver receives timing for each retrieval.
type RetrievalObserver interface {
	ObserveRetrieval(university string, hits int, duration time.Duration, err error)
}

// Engine embeds a query, searches the store, reranks, expands chunks to
// their parents and formats the context.
type Engine struct {
	embedder EmbeddingProvider
	store    VectorStore
	reranker RerankProvider // optional
	cfg      EngineConfig
	observer RetrievalObserver
	logger   *zap.Logger
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithObserver reports retrieval timing to o.
func WithObserver(o RetrievalObserver) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates a retrieval engine. reranker may be nil, in which case
// vector scores decide the order.
func NewEngine(embedder EmbeddingProvider, store VectorStore, reranker RerankProvider, cfg EngineConfig, logger *zap.Logger, opts ...EngineOption) (*Engine, error) {
	if embedder == nil || store == nil {
		return nil, fmt.Errorf("embedder and store are required")
	}
	def := DefaultEngineConfig()
	if cfg.Collection == "" {
		cfg.Collection = def.Collection
	}
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.TopK > cfg.TopN {
		return nil, fmt.Errorf("top_k %d exceeds top_n %d", cfg.TopK, cfg.TopN)
	}
	if cfg.Separator == "" {
		cfg.Separator = def.Separator
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		embedder: embedder,
		store:    store,
		reranker: reranker,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "rag_engine")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() EngineConfig { return e.cfg }

// Retrieve runs the full retrieval pipeline for query.
func (e *Engine) Retrieve(ctx context.Context, query string, opts RetrieveOptions) (res *Result, err error) {
	start := time.Now()
	defer func() {
		if e.observer != nil {
			n := 0
			if res != nil {
				n = len(res.Sources)
			}
			e.observer.ObserveRetrieval(opts.University, n, time.Since(start), err)
		}
	}()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	vec, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := e.search(ctx, vec, opts)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		e.logger.Info("no candidates", zap.String("university", opts.University))
		return &Result{}, nil
	}

	hits, err := e.rerank(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	res, err = e.expand(ctx, hits)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("retrieval completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("blocks", len(res.Sources)),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

// search prefers chunk points and falls back to any point.
func (e *Engine) search(ctx context.Context, vec []float64, opts RetrieveOptions) ([]ScoredPoint, error) {
	filter := Filter{University: opts.University, Type: opts.Type, ChunksOnly: true}
	hits, err := e.store.Query(ctx, e.cfg.Collection, vec, filter, e.cfg.TopN)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) > 0 {
		return hits, nil
	}
	filter.ChunksOnly = false
	hits, err = e.store.Query(ctx, e.cfg.Collection, vec, filter, e.cfg.TopN)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}

func (e *Engine) rerank(ctx context.Context, query string, candidates []ScoredPoint) ([]Hit, error) {
	if e.reranker == nil {
		n := min(e.cfg.TopK, len(candidates))
		hits := make([]Hit, n)
		for i := 0; i < n; i++ {
			hits[i] = Hit{Point: candidates[i], RerankScore: candidates[i].Score}
		}
		return hits, nil
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Payload.Content
	}
	results, err := e.reranker.RerankSimple(ctx, query, docs, e.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		hits = append(hits, Hit{Point: candidates[r.Index], RerankScore: r.RelevanceScore})
		if len(hits) == e.cfg.TopK {
			break
		}
	}
	return hits, nil
}

// expand replaces each hit by its parent text and formats the blocks.
func (e *Engine) expand(ctx context.Context, hits []Hit) (*Result, error) {
	parents := make(map[string]Payload)
	var missing []string
	for _, h := range hits {
		p := h.Point.Payload
		if !p.IsChunk() {
			parents[h.Point.ID] = p
		}
	}
	for _, h := range hits {
		id := h.Point.Payload.ParentPointID
		if _, ok := parents[id]; !ok && id != "" {
			parents[id] = Payload{} // placeholder to dedupe the fetch list
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		points, err := e.store.Retrieve(ctx, e.cfg.Collection, missing)
		if err != nil {
			return nil, fmt.Errorf("fetch parents: %w", err)
		}
		for _, id := range missing {
			delete(parents, id)
		}
		for _, p := range points {
			parents[p.ID] = p.Payload
		}
	}

	res := &Result{Hits: hits}
	spans := pageSpans(hits)
	seen := make(map[string]bool)
	var blocks []string
	for i, h := range hits {
		src := h.Point.Payload
		parent, hasParent := parents[src.ParentPointID]
		if !src.IsChunk() {
			parent, hasParent = src, true
		}
		if !hasParent {
			e.logger.Warn("parent point missing", zap.String("parent_point_id", src.ParentPointID))
		}

		span, hasSpan := spans[i]
		key, block := e.block(src, parent, hasParent, span, hasSpan)
		if seen[key] {
			continue
		}
		seen[key] = true
		res.Hits[i].Block = block
		blocks = append(blocks, block)
		res.Sources = append(res.Sources, src.DocID)
	}
	res.Context = strings.Join(blocks, e.cfg.Separator)
	return res, nil
}

// pageSpan is an inclusive 1-based page range.
type pageSpan struct{ start, end int }

// pageSpans merges the overlapping or adjacent page ranges of PDF hits that
// share a parent, so a page is printed once per query. The result maps a
// hit index to the merged span covering it.
func pageSpans(hits []Hit) map[int]pageSpan {
	byParent := make(map[string][]int)
	for i, h := range hits {
		p := h.Point.Payload
		if p.Type != DocTypePDF || p.StartPage == nil || p.EndPage == nil || *p.StartPage > *p.EndPage {
			continue
		}
		key := p.ParentPointID
		if key == "" {
			key = p.PointID
		}
		byParent[key] = append(byParent[key], i)
	}

	out := make(map[int]pageSpan)
	for _, idx := range byParent {
		sort.SliceStable(idx, func(a, b int) bool {
			return *hits[idx[a]].Point.Payload.StartPage < *hits[idx[b]].Point.Payload.StartPage
		})
		var (
			cur     pageSpan
			members []int
		)
		for j, i := range idx {
			p := hits[i].Point.Payload
			a, b := *p.StartPage, *p.EndPage
			if j > 0 && a > cur.end+1 {
				for _, m := range members {
					out[m] = cur
				}
				members = members[:0]
			}
			if len(members) == 0 {
				cur = pageSpan{start: a, end: b}
			} else if b > cur.end {
				cur.end = b
			}
			members = append(members, i)
		}
		for _, m := range members {
			out[m] = cur
		}
	}
	return out
}

// block returns the dedupe key and formatted text for a hit. PDF hits use
// their merged page span.
func (e *Engine) block(src, parent Payload, hasParent bool, span pageSpan, hasSpan bool) (string, string) {
	var (
		key   = src.ParentPointID
		text  = src.Content
		url   = src.URL
		pages string
	)
	if key == "" {
		key = src.PointID
	}
	if hasParent && parent.URL != nil {
		url = parent.URL
	}

	switch {
	case hasSpan:
		a, b := span.start, span.end
		pages = fmt.Sprintf("%d-%d", a, b)
		key = fmt.Sprintf("%s#%s", key, pages)
		if hasParent && a >= 1 && b <= len(parent.Pages) && a <= b {
			text = strings.Join(parent.Pages[a-1:b], "\n")
		}
	case hasParent:
		text = parent.Content
	}

	var sb strings.Builder
	if url != nil && *url != "" {
		sb.WriteString("URL: ")
		sb.WriteString(*url)
		sb.WriteString("\n")
	}
	if pages != "" {
		sb.WriteString("Page Number: ")
		sb.WriteString(pages)
		sb.WriteString("\n")
	}
	sb.WriteString(text)
	return key, sb.String()
}
