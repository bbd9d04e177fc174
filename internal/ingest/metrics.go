package ingest

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/docrag/internal/ingest"

// Metrics records ingestion progress.
type Metrics struct {
	documents metric.Int64Counter
	chunks    metric.Int64Counter
	batches   metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewMetrics creates ingest instruments on meter. A nil meter uses the
// global provider.
func NewMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{}

	var err error
	m.documents, err = meter.Int64Counter(
		"docrag.ingest.documents_total",
		metric.WithDescription("Documents chunked by the ingest pipeline"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		logger.Warn("failed to create documents counter", zap.Error(err))
	}

	m.chunks, err = meter.Int64Counter(
		"docrag.ingest.chunks_total",
		metric.WithDescription("Chunks produced by the ingest pipeline"),
		metric.WithUnit("{chunk}"),
	)
	if err != nil {
		logger.Warn("failed to create chunks counter", zap.Error(err))
	}

	m.batches, err = meter.Int64Counter(
		"docrag.ingest.batches_total",
		metric.WithDescription("Embedding batches by result"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		logger.Warn("failed to create batches counter", zap.Error(err))
	}

	m.duration, err = meter.Float64Histogram(
		"docrag.ingest.run_duration_seconds",
		metric.WithDescription("Duration of ingest runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}
	return m
}

func (m *Metrics) recordDocument(ctx context.Context, chunks int) {
	if m == nil {
		return
	}
	if m.documents != nil {
		m.documents.Add(ctx, 1)
	}
	if m.chunks != nil && chunks > 0 {
		m.chunks.Add(ctx, int64(chunks))
	}
}

func (m *Metrics) recordBatch(ctx context.Context, err error) {
	if m == nil || m.batches == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.batches.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) recordRun(ctx context.Context, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Record(ctx, d.Seconds())
}
