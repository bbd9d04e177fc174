package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and clears env overrides.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"OPENAI_API_KEY", "QDRANT_URL", "QDRANT_API_KEY"} {
		t.Setenv(key, "")
	}
	return home
}

func writeConfig(t *testing.T, home, content string, perm os.FileMode) string {
	t.Helper()
	dir := filepath.Join(home, ".config", "docrag")
	require.NoError(t, os.MkdirAll(dir, 0700))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "book_content", cfg.Qdrant.Collection)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, "text-embedding-3-small", cfg.Embeddings.Model)
	assert.Equal(t, chunker.DefaultConfig(), cfg.Chunking.Chunker())
	assert.Equal(t, "cl100k_base", cfg.Chunking.Tokenizer)
	assert.Equal(t, 50, cfg.Ingest.BatchSize)
	assert.Equal(t, "../docs/", cfg.Ingest.DocsDir)
}

func TestLoadWithFile_NoFile(t *testing.T) {
	setupTestHome(t)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, chunker.DefaultOverlap, cfg.Chunking.Overlap)
	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, home, `
server:
  port: 9191
  shutdown_timeout: 3s
qdrant:
  url: https://abc.cloud.qdrant.io:6333
  api_key: file-key
chunking:
  chunk_size: 400
  overlap: 0
  tokenizer: runes
vectorstore:
  provider: chromem
  chromem_path: /tmp/docrag
`, 0600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "abc.cloud.qdrant.io", cfg.Qdrant.Host)
	assert.True(t, cfg.Qdrant.UseTLS)
	assert.Equal(t, 6334, cfg.Qdrant.Port, "gRPC port is used regardless of the REST url port")
	assert.Equal(t, "file-key", cfg.Qdrant.APIKey.Value())
	assert.Equal(t, 400, cfg.Chunking.ChunkSize)
	assert.Equal(t, 0, cfg.Chunking.Overlap, "explicit zero overlap is kept")
	assert.Equal(t, "runes", cfg.Chunking.Tokenizer)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
}

func TestLoadWithFile_EnvOverrides(t *testing.T) {
	home := setupTestHome(t)
	path := writeConfig(t, home, "chunking:\n  chunk_size: 400\n", 0600)

	t.Setenv("DOCRAG_CHUNKING_CHUNK_SIZE", "600")
	t.Setenv("DOCRAG_INGEST_BATCH_SIZE", "25")
	t.Setenv("DOCRAG_EMBEDDINGS_API_KEY", "prefixed-key")
	t.Setenv("OPENAI_API_KEY", "conventional-key")
	t.Setenv("QDRANT_URL", "http://qdrant.internal:6333")
	t.Setenv("QDRANT_API_KEY", "qdrant-key")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 600, cfg.Chunking.ChunkSize)
	assert.Equal(t, 25, cfg.Ingest.BatchSize)
	assert.Equal(t, "prefixed-key", cfg.Embeddings.APIKey.Value(), "DOCRAG_* wins over OPENAI_API_KEY")
	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.False(t, cfg.Qdrant.UseTLS)
	assert.Equal(t, "qdrant-key", cfg.Qdrant.APIKey.Value())
}

func TestLoadWithFile_ConventionalOpenAIKey(t *testing.T) {
	setupTestHome(t)
	t.Setenv("OPENAI_API_KEY", "  sk-test\r\n")

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Embeddings.APIKey.Value())
}

func TestLoadWithFile_Rejections(t *testing.T) {
	t.Run("insecure permissions", func(t *testing.T) {
		home := setupTestHome(t)
		path := writeConfig(t, home, "server:\n  port: 9000\n", 0644)

		_, err := LoadWithFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insecure config file permissions")
	})

	t.Run("outside allowed directories", func(t *testing.T) {
		setupTestHome(t)
		path := filepath.Join(t.TempDir(), "config.yaml")

		_, err := LoadWithFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config path validation failed")
	})

	t.Run("too large", func(t *testing.T) {
		home := setupTestHome(t)
		big := make([]byte, maxConfigFileSize+1)
		for i := range big {
			big[i] = '#'
		}
		path := writeConfig(t, home, string(big), 0600)

		_, err := LoadWithFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too large")
	})

	t.Run("invalid chunking", func(t *testing.T) {
		home := setupTestHome(t)
		path := writeConfig(t, home, "chunking:\n  chunk_size: 100\n  overlap: 100\n", 0600)

		_, err := LoadWithFile(path)
		require.Error(t, err)
		assert.ErrorIs(t, err, chunker.ErrInvalidConfig)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"unknown store", func(c *Config) { c.VectorStore.Provider = "redis" }, "unknown vectorstore provider"},
		{"unknown embedder", func(c *Config) { c.Embeddings.Provider = "cohere" }, "unknown embeddings provider"},
		{"empty collection", func(c *Config) { c.Qdrant.Collection = " " }, "collection name is required"},
		{"collection casing", func(c *Config) { c.Qdrant.Collection = "Book-Content" }, `try "book_content"`},
		{"zero batch", func(c *Config) { c.Ingest.BatchSize = 0 }, "batch size"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging format"},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -1 }, "overlap must be >= 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-live-123")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.NotContains(t, fmt.Sprintf("%#v", s), "sk-live")
	assert.Equal(t, "sk-live-123", s.Value())
	assert.True(t, s.IsSet())
	assert.False(t, Secret("").IsSet())

	out, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{Key: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"[REDACTED]"}`, string(out))
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())
	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
