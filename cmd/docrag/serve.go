package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpserver "github.com/fyrsmithlabs/docrag/internal/http"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen address (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search API",
	Long: `Serve the search API:

  GET  /health             liveness
  POST /api/v1/search      passages and citations for a question
  POST /api/v1/chunk       preview chunking of a markdown document
  GET  /api/v1/collection  collection size and vector settings
  GET  /metrics            Prometheus metrics

The server shuts down gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
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
	if dim, err := a.dimension(); err == nil {
		if err := a.store.EnsureCollection(ctx, dim); err != nil {
			a.logger.Warn(ctx, "collection not ready", zap.Error(err))
		}
	}

	searcher, err := retrieval.NewSearcher(a.embedder, a.store, a.logger.Named("retrieval"))
	if err != nil {
		return err
	}
	srv, err := httpserver.NewServer(searcher, a.store, a.chunker, a.logger.Named("http"), &httpserver.Config{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Version: version,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
