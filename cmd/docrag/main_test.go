package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/ingest"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with a throwaway HOME and no dotenv file.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--env-file", ""))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("empty path disables", func(t *testing.T) {
		assert.NoError(t, loadEnvFile(""))
	})

	t.Run("sets unset variables only", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("DOCRAG_TEST_A=from-file\nDOCRAG_TEST_B=from-file\n"), 0600))
		t.Setenv("DOCRAG_TEST_A", "")
		require.NoError(t, os.Unsetenv("DOCRAG_TEST_A"))
		t.Setenv("DOCRAG_TEST_B", "preset")

		require.NoError(t, loadEnvFile(path))
		assert.Equal(t, "from-file", os.Getenv("DOCRAG_TEST_A"))
		assert.Equal(t, "preset", os.Getenv("DOCRAG_TEST_B"))
	})

	t.Run("unreadable path errors", func(t *testing.T) {
		assert.Error(t, loadEnvFile(t.TempDir()))
	})
}

func TestChunkCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "intro.md")
	doc := "# Intro\n\n## Setup\nInstall it.\n\n## Run\nRun it."
	require.NoError(t, os.WriteFile(path, []byte(doc), 0600))

	out, err := execute(t, "chunk", path, "--tokenizer", "runes", "--chunk-size", "200", "--overlap", "20")
	require.NoError(t, err)

	var chunks []chunker.Chunk
	require.NoError(t, json.Unmarshal([]byte(out), &chunks), out)
	require.Len(t, chunks, 2)
	assert.Equal(t, "intro.md", chunks[0].SourceID)
	assert.Equal(t, "intro", chunks[0].URL)
	assert.Equal(t, "Setup", chunks[0].Section)
	assert.Equal(t, "Intro", chunks[0].Title)
	assert.Equal(t, "## Run\nRun it.", chunks[1].Text)
	assert.Equal(t, 1, chunks[1].SequenceIndex)
}

func TestChunkCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "chunk", filepath.Join(t.TempDir(), "nope.md"), "--tokenizer", "runes")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    dev")
	assert.Contains(t, out, "Commit:     unknown")
}

func TestApplyIngestFlags(t *testing.T) {
	f := ingestCmd.Flags()
	require.NoError(t, f.Set("chunk-size", "400"))
	require.NoError(t, f.Set("batch-size", "10"))
	require.NoError(t, f.Set("docs-dir", "/srv/book"))

	cfg := config.Default()
	require.NoError(t, applyIngestFlags(ingestCmd, cfg))
	assert.Equal(t, 400, cfg.Chunking.ChunkSize)
	assert.Equal(t, chunker.DefaultOverlap, cfg.Chunking.Overlap, "unset flags keep config values")
	assert.Equal(t, 10, cfg.Ingest.BatchSize)
	assert.Equal(t, "/srv/book", cfg.Ingest.DocsDir)

	require.NoError(t, f.Set("overlap", "400"))
	assert.Error(t, applyIngestFlags(ingestCmd, config.Default()))
}

func TestRenderSummary(t *testing.T) {
	s := &ingest.Summary{
		RunID:            "run-1",
		Pages:            12,
		Chunks:           87,
		Tokens:           52000,
		Points:           87,
		CollectionPoints: 87,
		Batches:          2,
		BatchSize:        50,
		EstimatedCost:    ingest.EstimateCost(52000),
		Duration:         1500 * time.Millisecond,
	}

	out := renderSummary(s)
	for _, want := range []string{"Pages processed", "12", "87", "52000", "$1.0400", "1.5s", "complete", "run-1"} {
		assert.Contains(t, out, want)
	}

	s.FailedBatches = 1
	s.CollectionPoints = -1
	out = renderSummary(s)
	assert.Contains(t, out, "1 of 2 batches failed")
	assert.NotContains(t, out, "Collection size")
}

func TestRenderResult(t *testing.T) {
	assert.Contains(t, renderResult(&retrieval.Result{}), "no matching passages")

	res := &retrieval.Result{Passages: []retrieval.Passage{{
		Citation: retrieval.Citation{
			Page:           "nodes.md",
			Section:        "Lifecycle",
			URL:            "module-1/nodes",
			RelevanceScore: 0.8123,
		},
		ChunkIndex: 3,
		Text:       "  Managed nodes move through states.\n",
	}}}
	out := renderResult(res)
	assert.Contains(t, out, "nodes.md › Lifecycle")
	assert.Contains(t, out, "score 0.812")
	assert.Contains(t, out, "/module-1/nodes")
	assert.True(t, strings.Contains(out, "Managed nodes move through states."))
}
