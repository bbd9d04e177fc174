// Package config provides configuration loading for docrag.
//
// Values come from, in increasing precedence: built-in defaults, an optional
// YAML file, DOCRAG_* environment variables, and the conventional
// OPENAI_API_KEY / QDRANT_URL / QDRANT_API_KEY variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/sanitize"
)

// Config holds the complete docrag configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Chunking    ChunkingConfig    `koanf:"chunking"`
	Ingest      IngestConfig      `koanf:"ingest"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// QdrantConfig holds Qdrant connection settings.
//
// URL accepts the REST form used by Qdrant Cloud consoles
// (https://<cluster>:6333). Host, port and TLS are derived from it when
// Host is not set explicitly; the port is always the gRPC port.
type QdrantConfig struct {
	URL            string   `koanf:"url"`
	Host           string   `koanf:"host"`
	Port           int      `koanf:"port"`
	UseTLS         bool     `koanf:"use_tls"`
	APIKey         Secret   `koanf:"api_key"`
	Collection     string   `koanf:"collection"`
	RequestTimeout Duration `koanf:"request_timeout"`
}

// VectorStoreConfig selects the vector store backend.
type VectorStoreConfig struct {
	// Provider is "qdrant" or "chromem".
	Provider    string `koanf:"provider"`
	ChromemPath string `koanf:"chromem_path"`
	Compress    bool   `koanf:"compress"`
}

// EmbeddingsConfig holds embedding provider settings.
type EmbeddingsConfig struct {
	// Provider is "openai", "tei" or "fastembed".
	Provider          string  `koanf:"provider"`
	Model             string  `koanf:"model"`
	BaseURL           string  `koanf:"base_url"`
	APIKey            Secret  `koanf:"api_key"`
	Dimension         int     `koanf:"dimension"`
	CacheDir          string  `koanf:"cache_dir"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	MaxRetries        int     `koanf:"max_retries"`
}

// ChunkingConfig holds the chunk budget and tokenizer choice.
type ChunkingConfig struct {
	ChunkSize int    `koanf:"chunk_size"`
	Overlap   int    `koanf:"overlap"`
	Tokenizer string `koanf:"tokenizer"`
}

// Chunker returns the chunker budget.
func (c ChunkingConfig) Chunker() chunker.Config {
	return chunker.Config{ChunkSize: c.ChunkSize, Overlap: c.Overlap}
}

// IngestConfig holds ingestion pipeline settings.
type IngestConfig struct {
	DocsDir     string `koanf:"docs_dir"`
	BatchSize   int    `koanf:"batch_size"`
	Concurrency int    `koanf:"concurrency"`
}

// LoggingConfig holds the subset of logging settings exposed to operators.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	Endpoint    string `koanf:"endpoint"`
	// Protocol is "grpc" or "http/protobuf".
	Protocol   string  `koanf:"protocol"`
	Insecure   bool    `koanf:"insecure"`
	SampleRate float64 `koanf:"sample_rate"`
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	cfg.Chunking.Overlap = chunker.DefaultOverlap
	cfg.Telemetry.SampleRate = 1
	cfg.Telemetry.Insecure = true
	applyDefaults(cfg)
	_ = resolveQdrantURL(&cfg.Qdrant)
	return cfg
}

// zeroableDefaults are seeded into koanf before any source is loaded, for
// fields where zero is a meaningful explicit value.
var zeroableDefaults = map[string]interface{}{
	"chunking.overlap":      chunker.DefaultOverlap,
	"telemetry.sample_rate": 1.0,
	"telemetry.insecure":    true,
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = "book_content"
	}
	if cfg.Qdrant.RequestTimeout == 0 {
		cfg.Qdrant.RequestTimeout = Duration(30 * time.Second)
	}

	if cfg.VectorStore.Provider == "" {
		cfg.VectorStore.Provider = "qdrant"
	}
	if cfg.VectorStore.ChromemPath == "" {
		cfg.VectorStore.ChromemPath = "~/.local/share/docrag/vectorstore"
	}

	if cfg.Embeddings.Provider == "" {
		cfg.Embeddings.Provider = "openai"
	}
	if cfg.Embeddings.Model == "" {
		switch cfg.Embeddings.Provider {
		case "openai":
			cfg.Embeddings.Model = "text-embedding-3-small"
		default:
			cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
		}
	}
	if cfg.Embeddings.BaseURL == "" && cfg.Embeddings.Provider == "tei" {
		cfg.Embeddings.BaseURL = "http://localhost:8080/v1"
	}
	if cfg.Embeddings.RequestsPerSecond == 0 {
		cfg.Embeddings.RequestsPerSecond = 5
	}
	if cfg.Embeddings.MaxRetries == 0 {
		cfg.Embeddings.MaxRetries = 3
	}

	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = chunker.DefaultChunkSize
	}
	if cfg.Chunking.Tokenizer == "" {
		cfg.Chunking.Tokenizer = "cl100k_base"
	}

	if cfg.Ingest.DocsDir == "" {
		cfg.Ingest.DocsDir = "../docs/"
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 50
	}
	if cfg.Ingest.Concurrency == 0 {
		cfg.Ingest.Concurrency = 4
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "docrag"
	}
	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
}

// resolveQdrantURL fills Host and UseTLS from URL when Host is unset.
// The REST port in the URL is ignored in favour of the configured gRPC port.
func resolveQdrantURL(q *QdrantConfig) error {
	if q.URL == "" {
		if q.Host == "" {
			q.Host = "localhost"
		}
		return nil
	}
	if q.Host != "" {
		return nil
	}

	u, err := url.Parse(q.URL)
	if err != nil {
		return fmt.Errorf("invalid qdrant url %q: %w", q.URL, err)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("invalid qdrant url %q: missing host", q.URL)
	}
	q.Host = u.Hostname()
	if u.Scheme == "https" {
		q.UseTLS = true
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.VectorStore.Provider {
	case "qdrant":
		if c.Qdrant.Port < 1 || c.Qdrant.Port > 65535 {
			return fmt.Errorf("invalid qdrant port: %d (must be 1-65535)", c.Qdrant.Port)
		}
	case "chromem":
		if c.VectorStore.ChromemPath == "" {
			return errors.New("vectorstore.chromem_path is required for the chromem provider")
		}
	default:
		return fmt.Errorf("unknown vectorstore provider %q (want qdrant or chromem)", c.VectorStore.Provider)
	}
	if strings.TrimSpace(c.Qdrant.Collection) == "" {
		return errors.New("collection name is required")
	}
	if id := sanitize.Identifier(c.Qdrant.Collection); id != c.Qdrant.Collection {
		return fmt.Errorf("invalid collection name %q (try %q)", c.Qdrant.Collection, id)
	}

	switch c.Embeddings.Provider {
	case "openai", "tei", "fastembed":
	default:
		return fmt.Errorf("unknown embeddings provider %q (want openai, tei or fastembed)", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimension < 0 {
		return fmt.Errorf("embeddings dimension must be >= 0, got %d", c.Embeddings.Dimension)
	}
	if c.Embeddings.RequestsPerSecond < 0 {
		return fmt.Errorf("embeddings requests_per_second must be >= 0, got %s",
			strconv.FormatFloat(c.Embeddings.RequestsPerSecond, 'f', -1, 64))
	}

	if err := c.Chunking.Chunker().Validate(); err != nil {
		return err
	}

	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest batch size must be >= 1, got %d", c.Ingest.BatchSize)
	}
	if c.Ingest.Concurrency < 1 {
		return fmt.Errorf("ingest concurrency must be >= 1, got %d", c.Ingest.Concurrency)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http/protobuf" {
		return fmt.Errorf("telemetry protocol must be 'grpc' or 'http/protobuf', got %q", c.Telemetry.Protocol)
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry sample_rate must be between 0 and 1, got %s",
			strconv.FormatFloat(c.Telemetry.SampleRate, 'f', -1, 64))
	}

	return nil
}
