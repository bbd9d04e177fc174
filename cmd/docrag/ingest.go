package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/ingest"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	ingestDocsDir     string
	ingestBatchSize   int
	ingestChunkSize   int
	ingestOverlap     int
	ingestConcurrency int
	ingestWatch       bool
	ingestJSON        bool
)

func init() {
	rootCmd.AddCommand(ingestCmd)

	f := ingestCmd.Flags()
	f.StringVar(&ingestDocsDir, "docs-dir", "../docs/", "directory of markdown pages")
	f.IntVar(&ingestBatchSize, "batch-size", ingest.DefaultBatchSize, "chunks per embedding request")
	f.IntVar(&ingestChunkSize, "chunk-size", chunker.DefaultChunkSize, "maximum tokens per chunk")
	f.IntVar(&ingestOverlap, "overlap", chunker.DefaultOverlap, "tokens shared by consecutive sub-chunks")
	f.IntVar(&ingestConcurrency, "concurrency", ingest.DefaultConcurrency, "embedding batches in flight")
	f.BoolVar(&ingestWatch, "watch", false, "keep running and re-ingest pages as they change")
	f.BoolVar(&ingestJSON, "json", false, "print the summary as JSON")
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Chunk, embed and store every page of the docs directory",
	Long: `Chunk every markdown page under the docs directory, embed the chunks in
batches and upsert them into the collection. Each page's previous points are
replaced, so re-running after an edit leaves no stale chunks behind.

Flags override the matching configuration values only when set.

Examples:
  # Ingest with defaults
  docrag ingest --docs-dir ../docs/

  # Smaller chunks, then keep watching for edits
  docrag ingest --chunk-size 400 --overlap 50 --watch`,
	Args: cobra.NoArgs,
	RunE: runIngest,
}

// applyIngestFlags copies explicitly set flags over cfg.
func applyIngestFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("docs-dir") {
		cfg.Ingest.DocsDir = ingestDocsDir
	}
	if f.Changed("batch-size") {
		cfg.Ingest.BatchSize = ingestBatchSize
	}
	if f.Changed("concurrency") {
		cfg.Ingest.Concurrency = ingestConcurrency
	}
	if f.Changed("chunk-size") {
		cfg.Chunking.ChunkSize = ingestChunkSize
	}
	if f.Changed("overlap") {
		cfg.Chunking.Overlap = ingestOverlap
	}
	return cfg.Validate()
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyIngestFlags(cmd, cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.openEmbedder(); err != nil {
		return err
	}
	if err := a.openStore(); err != nil {
		return err
	}
	dim, err := a.dimension()
	if err != nil {
		return err
	}

	pipeline, err := ingest.New(a.chunker, a.embedder, a.store, ingest.Config{
		BatchSize:   cfg.Ingest.BatchSize,
		Concurrency: cfg.Ingest.Concurrency,
		Dimension:   dim,
	}, a.logger.Named("ingest"), ingest.NewMetrics(nil, a.logger.Underlying()))
	if err != nil {
		return err
	}

	summary, err := pipeline.Run(ctx, cfg.Ingest.DocsDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if ingestJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, renderSummary(summary))
	}

	if ingestWatch {
		w, err := ingest.NewWatcher(pipeline, cfg.Ingest.DocsDir, 0)
		if err != nil {
			return err
		}
		a.logger.Info(ctx, "initial ingest complete, watching",
			zap.String("docs_dir", cfg.Ingest.DocsDir))
		return w.Run(ctx)
	}

	if summary.Failed() {
		return fmt.Errorf("%d of %d batches failed", summary.FailedBatches, summary.Batches)
	}
	return nil
}
