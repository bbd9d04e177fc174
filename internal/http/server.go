// Package http serves the docrag search API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const (
	// DefaultBodyLimit caps request bodies, in echo's BodyLimit syntax.
	DefaultBodyLimit = "2M"

	// MaxPreviewChunks bounds the chunks one /api/v1/chunk request may ask
	// for through a small chunk_size.
	MaxPreviewChunks = 1000
)

// Server provides HTTP endpoints for docrag.
type Server struct {
	echo     *echo.Echo
	searcher *retrieval.Searcher
	store    vectorstore.Store
	chunker  *chunker.Chunker
	logger   *logging.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string
	// BodyLimit defaults to DefaultBodyLimit.
	BodyLimit string
	// Meter receives request metrics. Nil uses the global provider.
	Meter metric.Meter
}

// NewServer creates a new HTTP server.
func NewServer(searcher *retrieval.Searcher, store vectorstore.Store, ch *chunker.Chunker, logger *logging.Logger, cfg *Config) (*Server, error) {
	if searcher == nil || store == nil || ch == nil {
		return nil, fmt.Errorf("searcher, store and chunker are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "0.0.0.0",
			Port: 8000,
		}
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = DefaultBodyLimit
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		searcher: searcher,
		store:    store,
		chunker:  ch,
		logger:   logger,
		config:   cfg,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestContext)
	e.Use(s.logRequests)
	e.Use(NewHTTPMetrics(cfg.Meter, logger.Underlying()).MetricsMiddleware())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/search", s.handleSearch)
	v1.POST("/chunk", s.handleChunk)
	v1.GET("/collection", s.handleCollection)
}

// requestContext copies the request id into the request context so every
// log line for the request carries it.
func requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		}
		return next(c)
	}
}

func (s *Server) logRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		s.logger.Info(c.Request().Context(), "http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: s.config.Version})
}

// handleSearch answers a question with the nearest passages and their
// citations.
func (s *Server) handleSearch(c echo.Context) error {
	ctx := c.Request().Context()

	var q retrieval.Query
	if err := c.Bind(&q); err != nil {
		s.logger.Warn(ctx, "invalid search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := s.searcher.Search(ctx, q)
	if err != nil {
		return s.httpError(ctx, "search failed", err)
	}
	return c.JSON(http.StatusOK, res)
}

// handleChunk previews how a markdown document would be chunked.
func (s *Server) handleChunk(c echo.Context) error {
	ctx := c.Request().Context()

	var req ChunkRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(ctx, "invalid chunk request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	cfg := s.chunker.Config()
	if req.ChunkSize > 0 {
		cfg.ChunkSize = req.ChunkSize
	}
	if req.Overlap != nil {
		cfg.Overlap = *req.Overlap
	}

	if err := cfg.Validate(); err != nil {
		return s.httpError(ctx, "chunking failed", err)
	}

	tok := s.chunker.Tokenizer()
	n, err := tok.Count(req.Content)
	if err != nil {
		return s.httpError(ctx, "chunking failed", err)
	}
	if n/(cfg.ChunkSize-cfg.Overlap) > MaxPreviewChunks {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("chunk_size %d is too small for this content (at most %d chunks per preview)", cfg.ChunkSize, MaxPreviewChunks))
	}

	chunks, err := chunker.ChunkDocument(tok, req.Content, req.SourceID, req.URL, cfg)
	if err != nil {
		return s.httpError(ctx, "chunking failed", err)
	}

	resp := ChunkResponse{
		Chunks:    chunks,
		Count:     len(chunks),
		ChunkSize: cfg.ChunkSize,
		Overlap:   cfg.Overlap,
		Tokenizer: tok.Name(),
	}
	for _, ch := range chunks {
		resp.TotalTokens += ch.TokenCount
	}
	return c.JSON(http.StatusOK, resp)
}

// handleCollection reports the backing collection.
func (s *Server) handleCollection(c echo.Context) error {
	ctx := c.Request().Context()
	info, err := s.store.Info(ctx)
	if err != nil {
		return s.httpError(ctx, "collection info failed", err)
	}
	return c.JSON(http.StatusOK, info)
}

// httpError maps domain errors to status codes. Unexpected errors are
// logged and reported without detail.
func (s *Server) httpError(ctx context.Context, msg string, err error) error {
	switch {
	case errors.Is(err, retrieval.ErrInvalidQuery), errors.Is(err, chunker.ErrInvalidConfig):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, vectorstore.ErrCollectionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "collection not found")
	}
	s.logger.Error(ctx, msg, zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, msg)
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
