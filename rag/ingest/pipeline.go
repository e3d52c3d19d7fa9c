package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/sunyadvisor/rag"
	"github.com/BaSui01/sunyadvisor/rag/loader"
	"github.com/BaSui01/sunyadvisor/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config configures the ingestion pipeline.
type Config struct {
	Root            string   `json:"root" yaml:"root"`
	Collection      string   `json:"collection" yaml:"collection"`
	Universities    []string `json:"universities" yaml:"universities"` // empty = every directory
	Exclude         []string `json:"exclude" yaml:"exclude"`
	BatchSize       int      `json:"batch_size" yaml:"batch_size"`               // documents per cache flush
	InsertBatchSize int      `json:"insert_batch_size" yaml:"insert_batch_size"` // points per upsert
	Workers         int      `json:"workers" yaml:"workers"`
	Dimensions      int      `json:"dimensions" yaml:"dimensions"`
	ResolveURLs     bool     `json:"resolve_urls" yaml:"resolve_urls"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Collection:      rag.DefaultCollection,
		Exclude:         DefaultExclude,
		BatchSize:       50,
		InsertBatchSize: 256,
		Workers:         1,
		ResolveURLs:     true,
	}
}

// Observer receives per-document ingestion outcomes.
type Observer interface {
	ObserveDocument(university string, docType rag.DocType, outcome string)
	ObservePoints(n int)
}

// Document outcomes reported to an Observer.
const (
	OutcomeEmbedded       = "embedded"
	OutcomeCached         = "cached"
	OutcomeFailed         = "failed"
	OutcomeInserted       = "inserted"
	OutcomeAlreadyPresent = "already_present"
)

// Report counts what a run did.
type Report struct {
	Seen            int `json:"seen"`
	SkippedCached   int `json:"skipped_cached"`
	Embedded        int `json:"embedded"`
	Failed          int `json:"failed"`
	Inserted        int `json:"inserted"`
	SkippedExisting int `json:"skipped_existing"`
	Points          int `json:"points"`
	URLResolved     int `json:"url_resolved"`
	URLFailed       int `json:"url_failed"`
}

// Merge adds o into r.
func (r *Report) Merge(o *Report) {
	r.Seen += o.Seen
	r.SkippedCached += o.SkippedCached
	r.Embedded += o.Embedded
	r.Failed += o.Failed
	r.Inserted += o.Inserted
	r.SkippedExisting += o.SkippedExisting
	r.Points += o.Points
	r.URLResolved += o.URLResolved
	r.URLFailed += o.URLFailed
}

// Pipeline turns the on-disk corpus into cached embeddings and then into
// vector store points.
type Pipeline struct {
	cfg      Config
	walker   *Walker
	loaders  *loader.Registry
	chunker  *rag.WordChunker
	embedder rag.EmbeddingProvider
	store    rag.VectorStore
	resolver *URLResolver
	observer Observer
	logger   *zap.Logger
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithURLResolver enables canonical URL probing for HTML pages.
func WithURLResolver(r *URLResolver) Option { return func(p *Pipeline) { p.resolver = r } }

// WithObserver reports outcomes to o.
func WithObserver(o Observer) Option { return func(p *Pipeline) { p.observer = o } }

// NewPipeline creates a pipeline. store may be nil when only Embed runs and
// embedder may be nil when only Insert runs.
func NewPipeline(cfg Config, chunker *rag.WordChunker, embedder rag.EmbeddingProvider, store rag.VectorStore, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if strings.TrimSpace(cfg.Root) == "" {
		return nil, fmt.Errorf("ingest root is required")
	}
	def := DefaultConfig()
	if cfg.Collection == "" {
		cfg.Collection = def.Collection
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.InsertBatchSize <= 0 {
		cfg.InsertBatchSize = def.InsertBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if chunker == nil {
		var err error
		if chunker, err = rag.NewWordChunker(rag.DefaultChunkingConfig(), logger); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		cfg:      cfg,
		walker:   NewWalker(cfg.Exclude),
		loaders:  loader.NewRegistry(),
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		logger:   logger.With(zap.String("component", "ingest")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Pipeline) observe(university string, typ rag.DocType, outcome string) {
	if p.observer != nil {
		p.observer.ObserveDocument(university, typ, outcome)
	}
}

func (p *Pipeline) universities() ([]string, error) {
	if len(p.cfg.Universities) > 0 {
		return p.cfg.Universities, nil
	}
	return p.walker.Universities(p.cfg.Root)
}

// Run embeds then inserts.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report, err := p.Embed(ctx)
	if err != nil {
		return report, err
	}
	ins, err := p.Insert(ctx)
	report.Merge(ins)
	return report, err
}

// Embed extracts, chunks and embeds every uncached file. Per-file failures
// are logged and counted; only cancellation or cache write errors abort.
func (p *Pipeline) Embed(ctx context.Context) (*Report, error) {
	if p.embedder == nil {
		return nil, types.NewError(types.ErrIngestionFailed, "embed phase requires an embedder")
	}
	unis, err := p.universities()
	if err != nil {
		return nil, err
	}
	total := &Report{}
	for _, uni := range unis {
		r, err := p.embedUniversity(ctx, uni)
		total.Merge(r)
		if err != nil {
			return total, err
		}
	}
	p.logger.Info("embed phase finished",
		zap.Int("seen", total.Seen),
		zap.Int("embedded", total.Embedded),
		zap.Int("cached", total.SkippedCached),
		zap.Int("failed", total.Failed))
	return total, nil
}

func (p *Pipeline) embedUniversity(ctx context.Context, university string) (*Report, error) {
	report := &Report{}
	files, err := p.walker.Walk(ctx, p.cfg.Root, university)
	if err != nil {
		return report, err
	}

	caches := make(map[rag.DocType]*EmbeddingCache, 2)
	for _, typ := range []rag.DocType{rag.DocTypeHTML, rag.DocTypePDF} {
		c, err := OpenCache(CachePath(p.cfg.Root, university, typ))
		if err != nil {
			return report, err
		}
		caches[typ] = c
	}

	var mu sync.Mutex
	count := func(fn func(r *Report)) {
		mu.Lock()
		fn(report)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)

	for _, f := range files {
		report.Seen++
		cache := caches[f.Type]
		if cache.Has(f.DocID) {
			report.SkippedCached++
			p.observe(university, f.Type, OutcomeCached)
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, urlState, err := p.embedFile(gctx, f)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.logger.Warn("skipping file", zap.String("doc_id", f.DocID), zap.Error(err))
				count(func(r *Report) { r.Failed++ })
				p.observe(university, f.Type, OutcomeFailed)
				return nil
			}
			count(func(r *Report) {
				r.Embedded++
				switch urlState {
				case urlResolved:
					r.URLResolved++
				case urlFailed:
					r.URLFailed++
				}
			})
			p.observe(university, f.Type, OutcomeEmbedded)

			if pending := cache.Put(f.DocID, entry); pending >= p.cfg.BatchSize {
				if err := cache.Flush(); err != nil {
					return fmt.Errorf("flush %s: %w", cache.Path(), err)
				}
			}
			return nil
		})
	}

	waitErr := g.Wait()
	for _, c := range caches {
		if err := c.Flush(); err != nil && waitErr == nil {
			waitErr = fmt.Errorf("flush %s: %w", c.Path(), err)
		}
	}
	return report, waitErr
}

type urlState int

const (
	urlSkipped urlState = iota
	urlResolved
	urlFailed
)

func (p *Pipeline) embedFile(ctx context.Context, f SourceFile) (CacheEntry, urlState, error) {
	ext, err := p.loaders.Load(ctx, f.Path)
	if err != nil {
		return CacheEntry{}, urlSkipped, err
	}
	if strings.TrimSpace(ext.Text) == "" {
		return CacheEntry{}, urlSkipped, fmt.Errorf("no text extracted")
	}

	doc := rag.NewSourceDocument(f.DocID, f.University, f.Type, ext.Text)
	doc.Filepath = f.Path
	doc.Pages = ext.Pages

	state := urlSkipped
	if f.Type == rag.DocTypeHTML && p.resolver != nil && p.cfg.ResolveURLs {
		doc.URL = p.resolver.Resolve(ctx, f.University, f.RelPath())
		state = urlFailed
		if doc.URL != nil {
			state = urlResolved
		}
	}

	var tcs []rag.TextChunk
	if f.Type == rag.DocTypePDF && len(doc.Pages) > 0 {
		tcs = p.chunker.ChunkPages(doc.Pages)
	} else {
		tcs = p.chunker.ChunkText(doc.Content)
	}
	chunks := doc.Chunks(tcs)

	texts := make([]string, 0, 1+len(chunks))
	texts = append(texts, doc.Content)
	for _, c := range chunks {
		texts = append(texts, c.Content)
	}

	start := time.Now()
	vecs, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return CacheEntry{}, state, fmt.Errorf("embed: %w", err)
	}
	if len(vecs) != len(texts) {
		return CacheEntry{}, state, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	p.logger.Debug("document embedded",
		zap.String("doc_id", f.DocID),
		zap.Int("chunks", len(chunks)),
		zap.Duration("duration", time.Since(start)))

	entry := CacheEntry{
		Parent: CachedPoint{Vector: vecs[0], Payload: doc.ParentPayload()},
		Chunks: make([]CachedPoint, len(chunks)),
	}
	for i, c := range chunks {
		entry.Chunks[i] = CachedPoint{Vector: vecs[i+1], Payload: doc.ChunkPayload(c)}
	}
	return entry, state, nil
}

// Insert streams every cache into the vector store. Documents whose doc_id
// already has a point are skipped; a parent is always written no later than
// its chunks.
func (p *Pipeline) Insert(ctx context.Context) (*Report, error) {
	if p.store == nil {
		return nil, types.NewError(types.ErrIngestionFailed, "insert phase requires a vector store")
	}
	unis, err := p.universities()
	if err != nil {
		return nil, err
	}

	report := &Report{}
	created := p.cfg.Dimensions > 0
	if created {
		if err := p.store.CreateIfMissing(ctx, p.cfg.Collection, p.cfg.Dimensions, rag.MetricCosine); err != nil {
			return report, err
		}
	}

	var batch []rag.Point
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.store.UpsertBatch(ctx, p.cfg.Collection, batch); err != nil {
			return err
		}
		report.Points += len(batch)
		if p.observer != nil {
			p.observer.ObservePoints(len(batch))
		}
		batch = batch[:0]
		return nil
	}

	for _, uni := range unis {
		for _, typ := range []rag.DocType{rag.DocTypeHTML, rag.DocTypePDF} {
			cache, err := OpenCache(CachePath(p.cfg.Root, uni, typ))
			if err != nil {
				return report, err
			}
			err = cache.Range(func(docID string, e CacheEntry) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if !created {
					if err := p.store.CreateIfMissing(ctx, p.cfg.Collection, len(e.Parent.Vector), rag.MetricCosine); err != nil {
						return err
					}
					created = true
				}
				exists, err := p.store.PointExists(ctx, p.cfg.Collection, docID)
				if err != nil {
					return fmt.Errorf("check %s: %w", docID, err)
				}
				if exists {
					report.SkippedExisting++
					p.observe(uni, typ, OutcomeAlreadyPresent)
					return nil
				}
				batch = append(batch, e.Points()...)
				report.Inserted++
				p.observe(uni, typ, OutcomeInserted)
				if len(batch) >= p.cfg.InsertBatchSize {
					return flush()
				}
				return nil
			})
			if err != nil {
				return report, err
			}
		}
	}
	if err := flush(); err != nil {
		return report, err
	}

	p.logger.Info("insert phase finished",
		zap.Int("inserted", report.Inserted),
		zap.Int("skipped_existing", report.SkippedExisting),
		zap.Int("points", report.Points))
	return report, nil
}
