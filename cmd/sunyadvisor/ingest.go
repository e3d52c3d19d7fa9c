package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/BaSui01/sunyadvisor/config"
	"github.com/BaSui01/sunyadvisor/rag"
	"github.com/BaSui01/sunyadvisor/rag/ingest"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ingestFlags struct {
	root         string
	universities []string
	workers      int
	noResolve    bool
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load the SUNY corpus into the vector store",
	Long: `Ingestion runs in two phases. "embed" chunks and embeds every document
into a per-university cache file next to the corpus. "insert" upserts the
cached points into Qdrant, skipping documents already present. "run" does
both.`,
}

func init() {
	f := ingestCmd.PersistentFlags()
	f.StringVar(&ingestFlags.root, "root", "", "corpus root directory (overrides ingest.root)")
	f.StringSliceVarP(&ingestFlags.universities, "university", "u", nil, "only process these universities")
	f.IntVar(&ingestFlags.workers, "workers", 0, "universities processed in parallel")
	f.BoolVar(&ingestFlags.noResolve, "no-resolve", false, "skip canonical URL probing for HTML pages")

	ingestCmd.AddCommand(
		ingestPhase("embed", "Chunk and embed documents into the cache", (*ingest.Pipeline).Embed),
		ingestPhase("insert", "Upsert cached points into the vector store", (*ingest.Pipeline).Insert),
		ingestPhase("run", "Embed then insert", (*ingest.Pipeline).Run),
	)
	rootCmd.AddCommand(ingestCmd)
}

func ingestPhase(use, short string, phase func(*ingest.Pipeline, context.Context) (*ingest.Report, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applyIngestFlags(&cfg.Ingest)
			logger := initLogger(cfg.Log)
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, closeFn, err := newPipeline(cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := phase(p, ctx)
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}
			return err
		},
	}
}

func applyIngestFlags(c *config.IngestConfig) {
	if ingestFlags.root != "" {
		c.Root = ingestFlags.root
	}
	if len(ingestFlags.universities) > 0 {
		c.Universities = ingestFlags.universities
	}
	if ingestFlags.workers > 0 {
		c.Workers = ingestFlags.workers
	}
	if ingestFlags.noResolve {
		c.ResolveURLs = false
	}
}

// newPipeline builds the ingestion pipeline. The returned func closes the
// URL failure log.
func newPipeline(cfg *config.Config, logger *zap.Logger) (*ingest.Pipeline, func(), error) {
	chunker, err := rag.NewWordChunker(rag.ChunkingConfig{
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
		MinChunkSize: cfg.RAG.MinChunkSize,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	embedder, err := newEmbedder(cfg.Embedding, logger)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {}
	var opts []ingest.Option
	if cfg.Ingest.ResolveURLs {
		failures, err := ingest.NewFailureLogger(cfg.Ingest.URLFailureLog)
		if err != nil {
			return nil, nil, fmt.Errorf("open url failure log: %w", err)
		}
		closeFn = func() { _ = failures.Sync() }
		opts = append(opts, ingest.WithURLResolver(ingest.NewURLResolver(ingest.URLResolverConfig{
			Hosts:       cfg.Ingest.Hosts,
			Timeout:     cfg.Ingest.ProbeTimeout,
			RatePerHost: cfg.Ingest.ProbeRate,
		}, failures, logger)))
	}

	p, err := ingest.NewPipeline(ingest.Config{
		Root:            cfg.Ingest.Root,
		Collection:      cfg.Qdrant.Collection,
		Universities:    cfg.Ingest.Universities,
		Exclude:         cfg.Ingest.Exclude,
		BatchSize:       cfg.Ingest.BatchSize,
		InsertBatchSize: cfg.Ingest.InsertBatchSize,
		Workers:         cfg.Ingest.Workers,
		Dimensions:      cfg.Embedding.Dimensions,
		ResolveURLs:     cfg.Ingest.ResolveURLs,
	}, chunker, embedder, newQdrantStore(cfg.Qdrant, logger), logger, opts...)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return p, closeFn, nil
}

func printReport(w io.Writer, r *ingest.Report) {
	fmt.Fprintf(w, "documents seen:      %d\n", r.Seen)
	fmt.Fprintf(w, "embedded:            %d\n", r.Embedded)
	fmt.Fprintf(w, "cached, skipped:     %d\n", r.SkippedCached)
	fmt.Fprintf(w, "failed:              %d\n", r.Failed)
	fmt.Fprintf(w, "inserted:            %d\n", r.Inserted)
	fmt.Fprintf(w, "present, skipped:    %d\n", r.SkippedExisting)
	fmt.Fprintf(w, "points upserted:     %d\n", r.Points)
	if r.URLResolved+r.URLFailed > 0 {
		fmt.Fprintf(w, "urls resolved:       %d\n", r.URLResolved)
		fmt.Fprintf(w, "urls unresolved:     %d\n", r.URLFailed)
	}
}
