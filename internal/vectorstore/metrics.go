package vectorstore

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/docrag/internal/vectorstore")

var (
	// OperationDuration tracks store call latency.
	// Labels: backend (qdrant, chromem), operation
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docrag",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// OperationsTotal counts store calls.
	// Labels: backend, operation, result (success, error)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Total number of vector store operations",
		},
		[]string{"backend", "operation", "result"},
	)

	// PointsUpserted counts points written.
	PointsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrag",
			Subsystem: "vectorstore",
			Name:      "points_upserted_total",
			Help:      "Total number of points written to the vector store",
		},
		[]string{"backend"},
	)

	// CollectionPoints is the point count last observed by Info.
	CollectionPoints = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docrag",
			Subsystem: "vectorstore",
			Name:      "collection_points",
			Help:      "Number of points in the collection at the last Info call",
		},
		[]string{"collection"},
	)
)

// observe starts a span for one store operation. The returned func records
// the span status and metrics; call it with the operation's error.
func observe(ctx context.Context, backend, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "vectorstore."+operation,
		trace.WithAttributes(append(attrs, attribute.String("db.system", backend))...),
	)
	return ctx, func(err error) {
		OperationDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
		result := "success"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		OperationsTotal.WithLabelValues(backend, operation, result).Inc()
		span.End()
	}
}
