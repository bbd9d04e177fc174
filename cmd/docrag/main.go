// Command docrag ingests a markdown book into a vector store and serves
// passage retrieval for the book's chatbot.
//
// Usage:
//
//	# Create the collection, then ingest the docs
//	docrag setup
//	docrag ingest --docs-dir ../docs/
//
//	# Serve the search API
//	docrag serve --port 8000
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	// configPath overrides ~/.config/docrag/config.yaml
	configPath string
	// envFile is loaded into the environment before configuration
	envFile string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docrag",
	Short: "Chunk, embed and search a markdown book",
	Long: `docrag turns a directory of markdown pages into overlapping, token-budgeted
chunks, stores their embeddings in Qdrant (or an embedded chromem database)
and serves similarity search with page and section citations.

Configuration is read from ~/.config/docrag/config.yaml, DOCRAG_* environment
variables and the conventional OPENAI_API_KEY, QDRANT_URL and QDRANT_API_KEY
variables. A .env file in the working directory is loaded first.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/docrag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load; empty disables")
}

// loadConfig loads the dotenv file, then the layered configuration.
func loadConfig() (*config.Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// loadEnvFile loads path without overriding variables already set. A
// missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
