package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fyrsmithlabs/docrag/internal/telemetry"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	m := NewHTTPMetrics(tt.Meter(httpInstrumentationName), zap.NewNop())

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/api/v1/search", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	})

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/health"},
		{http.MethodGet, "/health"},
		{http.MethodPost, "/api/v1/search"},
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(r.method, r.path, nil))
	}

	assert.Equal(t, int64(3), tt.CounterValue(t, "docrag.http.requests_total"))
	assert.Equal(t, uint64(3), tt.HistogramCount(t, "docrag.http.request_duration_seconds"))
	assert.Equal(t, int64(0), tt.CounterValue(t, "docrag.http.active_requests"))
}

func TestHTTPMetrics_ErrorStatusIsFinal(t *testing.T) {
	e := echo.New()
	e.Use(NewHTTPMetrics(nil, nil).MetricsMiddleware())
	e.POST("/api/v1/chunk", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/chunk", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "content field is required")
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"/health", "/health"},
		{"/api/v1/search", "/api/v1/search"},
		{"/api/v1/collection", "/api/v1/collection"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizePath(tt.input), tt.input)
	}
}
