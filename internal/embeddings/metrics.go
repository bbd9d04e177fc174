package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/docrag/internal/embeddings"

// Metrics records embedding call instrumentation.
type Metrics struct {
	logger    *zap.Logger
	duration  metric.Float64Histogram
	batchSize metric.Int64Histogram
	tokens    metric.Int64Counter
	errors    metric.Int64Counter
	retries   metric.Int64Counter
}

// NewMetrics creates embedding instruments on meter. A nil meter uses the
// global provider.
func NewMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{logger: logger}

	var err error
	m.duration, err = meter.Float64Histogram(
		"docrag.embedding.duration_seconds",
		metric.WithDescription("Duration of embedding requests by model and operation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.batchSize, err = meter.Int64Histogram(
		"docrag.embedding.batch_size",
		metric.WithDescription("Number of texts per embedding request"),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2048),
	)
	if err != nil {
		logger.Warn("failed to create batch size histogram", zap.Error(err))
	}

	m.tokens, err = meter.Int64Counter(
		"docrag.embedding.tokens_total",
		metric.WithDescription("Prompt tokens billed by the embedding provider"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		logger.Warn("failed to create tokens counter", zap.Error(err))
	}

	m.errors, err = meter.Int64Counter(
		"docrag.embedding.errors_total",
		metric.WithDescription("Embedding requests that failed after retries"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		logger.Warn("failed to create errors counter", zap.Error(err))
	}

	m.retries, err = meter.Int64Counter(
		"docrag.embedding.retries_total",
		metric.WithDescription("Embedding request retries"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		logger.Warn("failed to create retries counter", zap.Error(err))
	}
	return m
}

// RecordGeneration records one embedding request.
func (m *Metrics) RecordGeneration(ctx context.Context, model, operation string, duration time.Duration, batchSize int, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
	)
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if batchSize > 0 && m.batchSize != nil {
		m.batchSize.Record(ctx, int64(batchSize), attrs)
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}

// RecordTokens adds billed prompt tokens.
func (m *Metrics) RecordTokens(ctx context.Context, model string, n int) {
	if m == nil || m.tokens == nil || n <= 0 {
		return
	}
	m.tokens.Add(ctx, int64(n), metric.WithAttributes(attribute.String("model", model)))
}

// RecordRetry counts one retry attempt.
func (m *Metrics) RecordRetry(ctx context.Context, model string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("model", model)))
}
