package embeddings

import (
	"context"
	"fmt"
	"strings"
	"time"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// TEIConfig configures an OpenAI-compatible embeddings server such as
// Hugging Face Text Embeddings Inference.
type TEIConfig struct {
	// BaseURL includes the API prefix, e.g. http://localhost:8080/v1.
	BaseURL      string
	Model        string
	APIKey       string
	Dimension    int
	MaxBatchSize int
	Metrics      *Metrics
}

// TEIProvider generates embeddings through langchaingo's OpenAI client.
type TEIProvider struct {
	embedder  lcembeddings.Embedder
	model     string
	dimension int
	maxBatch  int
	metrics   *Metrics
}

// NewTEIProvider creates a provider for an OpenAI-compatible server.
func NewTEIProvider(cfg TEIConfig) (*TEIProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: BaseURL is required", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: Model is required", ErrInvalidConfig)
	}

	// langchaingo refuses an empty token; TEI ignores it.
	token := cfg.APIKey
	if token == "" {
		token = "placeholder"
	}

	llm, err := lcopenai.New(
		lcopenai.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		lcopenai.WithModel(cfg.Model),
		lcopenai.WithToken(token),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI-compatible client: %w", err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	dim := cfg.Dimension
	if dim == 0 {
		dim, _ = DimensionForModel(cfg.Model)
	}

	return &TEIProvider{
		embedder:  embedder,
		model:     cfg.Model,
		dimension: dim,
		maxBatch:  cfg.MaxBatchSize,
		metrics:   cfg.Metrics,
	}, nil
}

// EmbedDocuments embeds texts in batches of at most MaxBatchSize.
func (p *TEIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, p.maxBatch) {
		start := time.Now()
		vecs, err := p.embedder.EmbedDocuments(ctx, batch)
		if err == nil && len(vecs) != len(batch) {
			err = fmt.Errorf("expected %d embeddings, got %d", len(batch), len(vecs))
		}
		p.metrics.RecordGeneration(ctx, p.model, "embed_documents", time.Since(start), len(batch), err)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedQuery embeds a single search query.
func (p *TEIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	start := time.Now()
	vec, err := p.embedder.EmbedQuery(ctx, text)
	p.metrics.RecordGeneration(ctx, p.model, "embed_query", time.Since(start), 1, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	return vec, nil
}

// Dimension returns the configured or inferred vector size.
func (p *TEIProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op since TEI is reached over HTTP.
func (p *TEIProvider) Close() error {
	return nil
}
