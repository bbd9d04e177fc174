package vectorstore

import (
	"fmt"

	"github.com/fyrsmithlabs/docrag/internal/config"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/qdrant"
)

// NewStore creates the backend selected by cfg.VectorStore.Provider:
//   - "qdrant" (default): connects to the configured Qdrant server
//   - "chromem": opens the embedded database at VectorStore.ChromemPath
//
// The collection name comes from Qdrant.Collection for both backends.
func NewStore(cfg *config.Config, logger *logging.Logger) (Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	switch cfg.VectorStore.Provider {
	case "qdrant", "":
		client, err := qdrant.NewGRPCClient(qdrant.FromAppConfig(cfg.Qdrant), logger.Named("qdrant"))
		if err != nil {
			return nil, fmt.Errorf("connecting to qdrant: %w", err)
		}
		return NewQdrantStore(client, QdrantConfig{
			Collection: cfg.Qdrant.Collection,
			VectorSize: cfg.Embeddings.Dimension,
		}, logger)

	case "chromem":
		return NewChromemStore(ChromemConfig{
			Path:       cfg.VectorStore.ChromemPath,
			Compress:   cfg.VectorStore.Compress,
			Collection: cfg.Qdrant.Collection,
		}, logger)

	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider %q (supported: qdrant, chromem)",
			ErrInvalidConfig, cfg.VectorStore.Provider)
	}
}
