package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/telemetry"
	"github.com/fyrsmithlabs/docrag/internal/tokenizer"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
	"go.uber.org/zap"
)

// app holds the components shared by subcommands. The embedder and store
// are opened on demand so offline commands never dial out.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	chunker   *chunker.Chunker
	embedder  embeddings.Provider
	store     vectorstore.Store
}

// newApp initializes telemetry, logging and the chunker from cfg.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	// stdout carries command output.
	logCfg.Output.Console = "stderr"
	logCfg.Output.OTEL = tel.IsEnabled()
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	tok, err := tokenizer.New(cfg.Chunking.Tokenizer)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	ch, err := chunker.New(tok, cfg.Chunking.Chunker())
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		telemetry: tel,
		chunker:   ch,
	}, nil
}

// openEmbedder creates the configured embedding provider.
func (a *app) openEmbedder() error {
	pc := embeddings.FromAppConfig(a.cfg.Embeddings)
	pc.Logger = a.logger.Named("embeddings")
	p, err := embeddings.NewProvider(pc)
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}
	a.embedder = p
	a.logger.Debug(context.Background(), "embedding provider ready",
		zap.String("provider", a.cfg.Embeddings.Provider),
		zap.String("model", a.cfg.Embeddings.Model),
		logging.Secret("api_key", a.cfg.Embeddings.APIKey),
	)
	return nil
}

// openStore connects to the configured vector store.
func (a *app) openStore() error {
	s, err := vectorstore.NewStore(a.cfg, a.logger.Named("vectorstore"))
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	a.store = s
	return nil
}

// dimension is the vector size of the configured model: the explicit
// setting, then the opened provider, then the known model table.
func (a *app) dimension() (int, error) {
	if d := a.cfg.Embeddings.Dimension; d > 0 {
		return d, nil
	}
	if a.embedder != nil && a.embedder.Dimension() > 0 {
		return a.embedder.Dimension(), nil
	}
	if d, ok := embeddings.DimensionForModel(a.cfg.Embeddings.Model); ok {
		return d, nil
	}
	return 0, fmt.Errorf("unknown dimension for model %q; set embeddings.dimension", a.cfg.Embeddings.Model)
}

// close releases everything opened, flushing logs and telemetry last.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn(ctx, "failed to release resources", zap.Error(err))
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}
