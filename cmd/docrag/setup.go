package main

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var setupRecreate bool

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.Flags().BoolVar(&setupRecreate, "recreate", false, "drop the collection and every point in it first")
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the vector collection",
	Long: `Create the configured collection with the embedding model's vector size
and cosine distance. An existing collection is kept unless --recreate is set;
an existing collection of a different vector size is an error.

With the fastembed provider the ONNX runtime is downloaded first when it is
not already installed.

Examples:
  # Create the collection if missing
  docrag setup

  # Start over
  docrag setup --recreate`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func runSetup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.Embeddings.Provider == "fastembed" {
		rt, err := embeddings.NewRuntime(embeddings.RuntimeConfig{
			CacheDir: cfg.Embeddings.CacheDir,
			Logger:   a.logger.Named("onnx"),
		})
		if err != nil {
			return err
		}
		path, err := rt.Ensure(ctx)
		if err != nil {
			return err
		}
		a.logger.Info(ctx, "onnx runtime ready", zap.String("path", path))
	}

	if err := a.openStore(); err != nil {
		return err
	}
	dim, err := a.dimension()
	if err != nil {
		return err
	}

	if setupRecreate {
		if err := a.store.DropCollection(ctx); err != nil && !errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return fmt.Errorf("dropping collection: %w", err)
		}
		a.logger.Info(ctx, "collection dropped", zap.String("collection", cfg.Qdrant.Collection))
	}
	if err := a.store.EnsureCollection(ctx, dim); err != nil {
		return err
	}

	info, err := a.store.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderCollection(info))
	return nil
}
