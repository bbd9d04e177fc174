package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"go.opentelemetry.io/otel/metric"
)

// Embedder generates vectors for documents and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Provider is an Embedder with a fixed output dimension and releasable
// resources.
type Provider interface {
	Embedder
	// Dimension returns the vector size produced by the configured model.
	Dimension() int
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is "openai" (default), "tei" or "fastembed".
	Provider string
	Model    string
	// BaseURL overrides the API endpoint; required for tei.
	BaseURL string
	APIKey  string
	// Dimension overrides the model's native size. text-embedding-3 models
	// shorten their output to match.
	Dimension int
	// CacheDir is the cache root for FastEmbed models and onnxruntime.
	CacheDir          string
	RequestsPerSecond float64
	MaxRetries        int
	RetryDelay        time.Duration
	MaxBatchSize      int

	Logger *logging.Logger
	Meter  metric.Meter
}

// FromAppConfig maps operator settings to a ProviderConfig.
func FromAppConfig(c config.EmbeddingsConfig) ProviderConfig {
	return ProviderConfig{
		Provider:          c.Provider,
		Model:             c.Model,
		BaseURL:           c.BaseURL,
		APIKey:            c.APIKey.Value(),
		Dimension:         c.Dimension,
		CacheDir:          c.CacheDir,
		RequestsPerSecond: c.RequestsPerSecond,
		MaxRetries:        c.MaxRetries,
	}
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	metrics := NewMetrics(cfg.Meter, logger.Underlying())

	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Dimension:         cfg.Dimension,
			MaxBatchSize:      cfg.MaxBatchSize,
			MaxRetries:        cfg.MaxRetries,
			RetryDelay:        cfg.RetryDelay,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Logger:            logger,
			Metrics:           metrics,
		})
	case "tei":
		return NewTEIProvider(TEIConfig{
			BaseURL:      cfg.BaseURL,
			Model:        cfg.Model,
			APIKey:       cfg.APIKey,
			Dimension:    cfg.Dimension,
			MaxBatchSize: cfg.MaxBatchSize,
			Metrics:      metrics,
		})
	case "fastembed":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// validateTexts rejects empty batches and blank entries.
func validateTexts(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	for i, t := range texts {
		if t == "" {
			return fmt.Errorf("%w: text %d is empty", ErrEmptyInput, i)
		}
	}
	return nil
}

// batches splits texts into consecutive slices of at most size elements.
func batches(texts []string, size int) [][]string {
	if size <= 0 || size >= len(texts) {
		return [][]string{texts}
	}
	out := make([][]string, 0, (len(texts)+size-1)/size)
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		out = append(out, texts[start:end])
	}
	return out
}
