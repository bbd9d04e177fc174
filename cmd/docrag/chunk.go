package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/loader"
	"github.com/fyrsmithlabs/docrag/internal/tokenizer"
	"github.com/spf13/cobra"
)

var (
	chunkSize      int
	chunkOverlap   int
	chunkTokenizer string
)

func init() {
	rootCmd.AddCommand(chunkCmd)

	f := chunkCmd.Flags()
	f.IntVar(&chunkSize, "chunk-size", 0, "maximum tokens per chunk (default from config)")
	f.IntVar(&chunkOverlap, "overlap", 0, "tokens shared by consecutive sub-chunks (default from config)")
	f.StringVar(&chunkTokenizer, "tokenizer", "", `tokenizer: a tiktoken encoding or "runes" (default from config)`)
}

var chunkCmd = &cobra.Command{
	Use:   "chunk <file>",
	Short: "Print the chunks of one markdown file as JSON",
	Long: `Chunk one markdown file exactly as ingest would and print the chunks as a
JSON array. Nothing is embedded or stored.

Examples:
  docrag chunk ../docs/intro.md
  docrag chunk --chunk-size 200 --overlap 20 ../docs/module-1/nodes.md`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func runChunk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("chunk-size") {
		cfg.Chunking.ChunkSize = chunkSize
	}
	if f.Changed("overlap") {
		cfg.Chunking.Overlap = chunkOverlap
	}
	if f.Changed("tokenizer") {
		cfg.Chunking.Tokenizer = chunkTokenizer
	}

	tok, err := tokenizer.New(cfg.Chunking.Tokenizer)
	if err != nil {
		return err
	}
	ch, err := chunker.New(tok, cfg.Chunking.Chunker())
	if err != nil {
		return err
	}

	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	doc, err := loader.Load(filepath.Dir(path), path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", args[0], err)
	}

	chunks, err := ch.Chunk(doc.Content, doc.SourceID, doc.URL)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(chunks)
}
