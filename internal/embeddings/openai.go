package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// OpenAI limits a single embeddings request to 2048 inputs.
const (
	DefaultMaxBatchSize = 2048
	defaultRetryDelay   = 500 * time.Millisecond
)

// OpenAIConfig configures the OpenAI embeddings client.
type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides https://api.openai.com/v1.
	BaseURL   string
	Model     string
	Dimension int
	// MaxBatchSize caps inputs per request.
	MaxBatchSize int
	MaxRetries   int
	// RetryDelay is the base for exponential backoff.
	RetryDelay time.Duration
	// RequestsPerSecond limits request rate; zero disables limiting.
	RequestsPerSecond float64
	HTTPClient        *http.Client

	Logger  *logging.Logger
	Metrics *Metrics
}

// OpenAIProvider generates embeddings with the OpenAI API.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	dimension int
	// requestDims is sent as the dimensions parameter; zero omits it.
	requestDims int
	maxBatch    int
	maxRetries  int
	retryDelay  time.Duration
	limiter     *rate.Limiter
	logger      *logging.Logger
	metrics     *Metrics
}

// NewOpenAIProvider creates an OpenAI embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", ErrInvalidConfig)
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("%w: max retries must be >= 0", ErrInvalidConfig)
	}
	if cfg.Dimension < 0 {
		return nil, fmt.Errorf("%w: dimension must be >= 0", ErrInvalidConfig)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	p := &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      model,
		maxBatch:   cfg.MaxBatchSize,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}
	if p.maxBatch <= 0 || p.maxBatch > DefaultMaxBatchSize {
		p.maxBatch = DefaultMaxBatchSize
	}
	if p.retryDelay == 0 {
		p.retryDelay = defaultRetryDelay
	}
	if cfg.RequestsPerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	if p.logger == nil {
		p.logger = logging.NewNop()
	}

	native, known := DimensionForModel(model)
	switch {
	case cfg.Dimension > 0:
		p.dimension = cfg.Dimension
		if strings.HasPrefix(model, "text-embedding-3") {
			p.requestDims = cfg.Dimension
		}
	case known:
		p.dimension = native
	default:
		return nil, fmt.Errorf("%w: unknown model %q needs an explicit dimension", ErrInvalidConfig, model)
	}
	return p, nil
}

// EmbedDocuments embeds texts, splitting them into requests of at most
// MaxBatchSize inputs. Output order matches input order.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}
	out := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, p.maxBatch) {
		vecs, err := p.embed(ctx, batch, "embed_documents")
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedQuery embeds a single search query.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	vecs, err := p.embed(ctx, []string{text}, "embed_query")
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Dimension returns the vector size of the configured model.
func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op; the client holds no resources.
func (p *OpenAIProvider) Close() error {
	return nil
}

func (p *OpenAIProvider) embed(ctx context.Context, batch []string, op string) ([][]float32, error) {
	start := time.Now()
	vecs, err := p.embedWithRetry(ctx, batch)
	p.metrics.RecordGeneration(ctx, p.model, op, time.Since(start), len(batch), err)
	return vecs, err
}

func (p *OpenAIProvider) embedWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(p.retryDelay, attempt)
			p.metrics.RecordRetry(ctx, p.model)
			p.logger.Debug(ctx, "retrying embedding request",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if !sleep(ctx, delay) {
				return nil, ctx.Err()
			}
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vecs, err := p.request(ctx, batch)
		if err == nil {
			return vecs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
		if !retryable(err) {
			break
		}
	}
	p.logger.Warn(ctx, "embedding request failed",
		zap.String("model", p.model),
		zap.Int("inputs", len(batch)),
		zap.Error(lastErr),
	)
	return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, lastErr)
}

func (p *OpenAIProvider) request(ctx context.Context, batch []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:      batch,
		Model:      openai.EmbeddingModel(p.model),
		Dimensions: p.requestDims,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(batch) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(resp.Data))
	}

	vecs := make([][]float32, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(batch) || vecs[d.Index] != nil {
			return nil, fmt.Errorf("unexpected embedding index %d", d.Index)
		}
		if len(d.Embedding) != p.dimension {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(d.Embedding), p.dimension)
		}
		vecs[d.Index] = d.Embedding
	}
	p.metrics.RecordTokens(ctx, p.model, resp.Usage.PromptTokens)
	return vecs, nil
}

// retryable reports whether a failed request may succeed on retry: rate
// limits, server errors and transport failures.
func retryable(err error) bool {
	if errors.Is(err, ErrDimensionMismatch) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == 0 || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
