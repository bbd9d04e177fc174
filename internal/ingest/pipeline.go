// Package ingest turns a docs directory into vector store points.
//
// A run discovers markdown documents, chunks each one completely, replaces
// the document's previous points, then embeds and upserts chunks in
// batches with bounded concurrency. A failed batch is logged and counted;
// the run carries on with the remaining batches.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/loader"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// DefaultBatchSize is the number of chunks per embedding request.
	DefaultBatchSize = 50

	// DefaultConcurrency is the number of batches in flight.
	DefaultConcurrency = 4
)

// ErrInvalidConfig indicates invalid pipeline configuration.
var ErrInvalidConfig = errors.New("invalid ingest configuration")

var tracer = otel.Tracer(instrumentationName)

// Config controls batching and pacing.
type Config struct {
	BatchSize   int
	Concurrency int
	// RequestsPerSecond caps batch submissions. Zero disables the cap.
	RequestsPerSecond float64
	// Dimension, when > 0, makes Run ensure the collection exists first.
	Dimension int
	Loader    loader.Options
}

func (c Config) withDefaults() Config {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	return c
}

// Validate checks config for errors.
func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be >= 1, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be >= 1, got %d", ErrInvalidConfig, c.Concurrency)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests per second must be >= 0", ErrInvalidConfig)
	}
	if c.Dimension < 0 {
		return fmt.Errorf("%w: dimension must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// Pipeline chunks, embeds and stores documents.
type Pipeline struct {
	chunker  *chunker.Chunker
	embedder embeddings.Embedder
	store    vectorstore.Store
	cfg      Config
	limiter  *rate.Limiter
	logger   *logging.Logger
	metrics  *Metrics
}

// New creates a pipeline. Zero BatchSize and Concurrency take defaults;
// logger and metrics may be nil.
func New(ch *chunker.Chunker, embedder embeddings.Embedder, store vectorstore.Store, cfg Config, logger *logging.Logger, metrics *Metrics) (*Pipeline, error) {
	if ch == nil || embedder == nil || store == nil {
		return nil, fmt.Errorf("%w: chunker, embedder and store are required", ErrInvalidConfig)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Pipeline{
		chunker:  ch,
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Run ingests every document under docsDir.
func (p *Pipeline) Run(ctx context.Context, docsDir string) (*Summary, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	ctx, span := tracer.Start(ctx, "ingest.run")
	defer span.End()

	if p.cfg.Dimension > 0 {
		if err := p.store.EnsureCollection(ctx, p.cfg.Dimension); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("preparing collection: %w", err)
		}
	}

	res, err := loader.Discover(ctx, docsDir, p.cfg.Loader)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	for _, s := range res.Skipped {
		p.logger.Warn(ctx, "skipped document", zap.String("path", s.Path), zap.String("reason", s.Reason))
	}
	p.logger.Info(ctx, "discovered documents",
		zap.String("docs_dir", res.Root),
		zap.Int("documents", len(res.Documents)),
		zap.Int("skipped", len(res.Skipped)),
	)

	sum, err := p.ingest(ctx, runID, res.Documents)
	sum.Skipped = len(res.Skipped)
	p.finish(ctx, sum, start)

	span.SetAttributes(
		attribute.Int("ingest.pages", sum.Pages),
		attribute.Int("ingest.chunks", sum.Chunks),
		attribute.Int("ingest.failed_batches", sum.FailedBatches),
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return sum, err
	}
	span.SetStatus(codes.Ok, "")
	return sum, nil
}

// IngestFile re-ingests a single file under docsDir.
func (p *Pipeline) IngestFile(ctx context.Context, docsDir, file string) (*Summary, error) {
	start := time.Now()
	doc, err := loader.Load(docsDir, file)
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	sum, err := p.ingest(ctx, runID, []loader.Document{*doc})
	p.finish(ctx, sum, start)
	return sum, err
}

// RemoveSource deletes every point of the document sourceID.
func (p *Pipeline) RemoveSource(ctx context.Context, sourceID string) error {
	if err := p.store.DeleteBySource(ctx, sourceID); err != nil {
		return fmt.Errorf("removing %s: %w", sourceID, err)
	}
	p.logger.Info(logging.WithSourceID(ctx, sourceID), "removed document points")
	return nil
}

func (p *Pipeline) finish(ctx context.Context, sum *Summary, start time.Time) {
	sum.Duration = time.Since(start)
	sum.EstimatedCost = EstimateCost(sum.Tokens)
	sum.CollectionPoints = -1
	if info, err := p.store.Info(ctx); err != nil {
		p.logger.Warn(ctx, "could not read collection info", zap.Error(err))
	} else {
		sum.CollectionPoints = info.PointCount
	}
	p.metrics.recordRun(ctx, sum.Duration)

	p.logger.Info(ctx, "ingest finished",
		zap.Int("pages", sum.Pages),
		zap.Int("chunks", sum.Chunks),
		zap.Int("tokens", sum.Tokens),
		zap.Int("points", sum.Points),
		zap.Int("batches", sum.Batches),
		zap.Int("failed_batches", sum.FailedBatches),
		zap.Float64("estimated_cost_usd", sum.EstimatedCost),
		zap.Duration("duration", sum.Duration),
	)
}

// ingest chunks docs and replaces their points. Chunking and deletion
// failures abort the run; embedding and upsert failures only fail a batch.
func (p *Pipeline) ingest(ctx context.Context, runID string, docs []loader.Document) (*Summary, error) {
	sum := &Summary{RunID: runID, BatchSize: p.cfg.BatchSize}

	var all []chunker.Chunk
	for _, doc := range docs {
		dctx := logging.WithSourceID(ctx, doc.SourceID)
		chunks, err := p.chunker.Chunk(doc.Content, doc.SourceID, doc.URL)
		if err != nil {
			return sum, fmt.Errorf("chunking %s: %w", doc.SourceID, err)
		}
		for i := range chunks {
			if chunks[i].Title == "" {
				chunks[i].Title = doc.Title
			}
		}
		if err := p.store.DeleteBySource(dctx, doc.SourceID); err != nil {
			return sum, fmt.Errorf("replacing %s: %w", doc.SourceID, err)
		}
		p.metrics.recordDocument(dctx, len(chunks))
		p.logger.Debug(dctx, "chunked document", zap.Int("chunks", len(chunks)), zap.String("title", doc.Title))

		if len(chunks) > 0 {
			sum.Pages++
		}
		all = append(all, chunks...)
	}
	sum.Chunks = len(all)

	batches := splitBatches(all, p.cfg.BatchSize)
	sum.Batches = len(batches)
	if len(batches) == 0 {
		return sum, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, batch := range batches {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			points, tokens, err := p.processBatch(gctx, batch)
			p.metrics.recordBatch(ctx, err)
			if err != nil {
				if cerr := gctx.Err(); cerr != nil {
					return cerr
				}
				p.logger.Error(ctx, "batch failed",
					zap.Int("batch", i+1),
					zap.Int("batches", len(batches)),
					zap.String("first_source", batch[0].SourceID),
					zap.Error(err),
				)
				mu.Lock()
				sum.FailedBatches++
				mu.Unlock()
				return nil
			}
			p.logger.Debug(ctx, "batch stored", zap.Int("batch", i+1), zap.Int("points", points))
			mu.Lock()
			sum.Points += points
			sum.Tokens += tokens
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}
	// A cancellation seen before scheduling leaves no goroutine error.
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	return sum, nil
}

func (p *Pipeline) processBatch(ctx context.Context, batch []chunker.Chunk) (points, tokens int, err error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return 0, 0, err
	}

	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, 0, fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) != len(batch) {
		return 0, 0, fmt.Errorf("embedding: got %d vectors for %d chunks", len(vectors), len(batch))
	}

	records := make([]vectorstore.Record, len(batch))
	for i, c := range batch {
		records[i] = vectorstore.NewRecord(c, vectors[i])
		tokens += c.TokenCount
	}
	if err := p.store.Upsert(ctx, records); err != nil {
		return 0, 0, fmt.Errorf("upserting: %w", err)
	}
	return len(records), tokens, nil
}

func splitBatches(chunks []chunker.Chunk, size int) [][]chunker.Chunk {
	var out [][]chunker.Chunk
	for start := 0; start < len(chunks); start += size {
		end := min(start+size, len(chunks))
		out = append(out, chunks[start:end])
	}
	return out
}
