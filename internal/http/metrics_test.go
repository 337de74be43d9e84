package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

// sumByAttr totals a counter's data points keyed by one attribute.
func sumByAttr(t *testing.T, rm metricdata.ResourceMetrics, name, key string) map[string]int64 {
	t.Helper()
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key(key))
				out[v.Emit()] += dp.Value
			}
		}
	}
	return out
}

func TestAPIMetrics_Middleware(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := NewAPIMetrics(mp.Meter(instrumentationName), zap.NewNop())

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/api/v1/chat", func(c echo.Context) error {
		c.Set(errorKindKey, "connection")
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "down", Kind: "connection"})
	})
	e.GET("/api/v1/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "short and stout")
	})

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/health"},
		{http.MethodGet, "/health"},
		{http.MethodPost, "/api/v1/chat"},
		{http.MethodGet, "/api/v1/boom"},
		{http.MethodGet, "/nope"},
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(r.method, r.path, nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byClass := sumByAttr(t, rm, "ragassistant.http.requests", "status_class")
	assert.Equal(t, int64(2), byClass["2xx"])
	assert.Equal(t, int64(2), byClass["4xx"], "handler errors are counted with their final status")
	assert.Equal(t, int64(1), byClass["5xx"])

	byRoute := sumByAttr(t, rm, "ragassistant.http.requests", "route")
	assert.Equal(t, int64(2), byRoute["/health"])
	assert.Equal(t, int64(1), byRoute["/api/v1/chat"])

	failures := sumByAttr(t, rm, "ragassistant.http.failures", "kind")
	assert.Equal(t, int64(1), failures["connection"])
	assert.Equal(t, int64(2), failures["request"])
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "unmatched"},
		{"/*", "unmatched"},
		{"/health", "/health"},
		{"/api/v1/events/switch", "/api/v1/events/switch"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, routeLabel(tt.input), tt.input)
	}
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(http.StatusNoContent))
	assert.Equal(t, "4xx", statusClass(http.StatusPreconditionFailed))
	assert.Equal(t, "5xx", statusClass(http.StatusBadGateway))
	assert.Equal(t, "unknown", statusClass(0))
}
