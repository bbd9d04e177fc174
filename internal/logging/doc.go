// Package logging provides structured logging with OpenTelemetry integration.
//
// Logger wraps Zap with:
//   - A Trace level (-2, below Debug)
//   - Console output plus an optional OpenTelemetry bridge
//   - Context field injection (trace_id, request.id, ingest.run, source.id)
//   - Secret redaction by field name and value pattern
//   - Level-aware sampling (errors are never sampled)
//
// Usage:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRunID(ctx, runID)
//	logger.Info(ctx, "batch uploaded", zap.Int("points", n))
//
// Tests use TestLogger:
//
//	tl := logging.NewTestLogger()
//	svc := ingest.New(..., tl.Logger)
//	tl.AssertLogged(t, zapcore.InfoLevel, "ingest complete")
package logging
