package http_test

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	httpserver "github.com/fyrsmithlabs/docrag/internal/http"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/tokenizer"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
	"go.uber.org/zap"
)

// ExampleNewServer wires a server over an in-memory store and shuts it down.
func ExampleNewServer() {
	logger := logging.NewNop()

	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{}, logger)
	if err != nil {
		panic(err)
	}
	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider: "tei",
		BaseURL:  "http://localhost:8080/v1",
		Model:    "BAAI/bge-small-en-v1.5",
	})
	if err != nil {
		panic(err)
	}
	searcher, err := retrieval.NewSearcher(embedder, store, logger)
	if err != nil {
		panic(err)
	}
	tok, err := tokenizer.New(tokenizer.DefaultEncoding)
	if err != nil {
		panic(err)
	}
	ch, err := chunker.New(tok, chunker.DefaultConfig())
	if err != nil {
		panic(err)
	}

	server, err := httpserver.NewServer(searcher, store, ch, logger, &httpserver.Config{
		Host: "localhost",
		Port: 8000,
	})
	if err != nil {
		panic(err)
	}

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "server error", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error(ctx, "shutdown error", zap.Error(err))
	}
}
