package http

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/ragassistant/internal/http"

// errorKindKey is the echo context key under which writeError records the
// failure class of a request.
const errorKindKey = "api.error_kind"

// APIMetrics records request counts, latency and failure classes for the
// loopback API.
type APIMetrics struct {
	logger   *zap.Logger
	requests metric.Int64Counter
	duration metric.Float64Histogram
	failures metric.Int64Counter
}

// NewAPIMetrics creates instruments on meter, or on the global meter when
// meter is nil. Instrument errors are logged and the instrument skipped.
func NewAPIMetrics(meter metric.Meter, logger *zap.Logger) *APIMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	m := &APIMetrics{logger: logger}

	var err error
	m.requests, err = meter.Int64Counter(
		"ragassistant.http.requests",
		metric.WithDescription("API requests by route, method and status class."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create requests counter", zap.Error(err))
	}

	// Chat turns wait on the model for up to a minute.
	m.duration, err = meter.Float64Histogram(
		"ragassistant.http.request.duration",
		metric.WithDescription("API request latency by route, method and status class."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120),
	)
	if err != nil {
		logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.failures, err = meter.Int64Counter(
		"ragassistant.http.failures",
		metric.WithDescription("Failed API requests by route and failure kind (busy, configuration, connection, protocol, request, internal)."),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create failures counter", zap.Error(err))
	}
	return m
}

// Middleware records one data point per request. Handler errors are
// passed to echo's error handler first so the final status is observed.
func (m *APIMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			ctx := c.Request().Context()
			status := c.Response().Status
			route := routeLabel(c.Path())
			attrs := metric.WithAttributes(
				attribute.String("route", route),
				attribute.String("method", c.Request().Method),
				attribute.String("status_class", statusClass(status)),
			)

			if m.requests != nil {
				m.requests.Add(ctx, 1, attrs)
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			}
			if status >= 400 && m.failures != nil {
				kind, _ := c.Get(errorKindKey).(string)
				if kind == "" {
					kind = "request"
				}
				m.failures.Add(ctx, 1, metric.WithAttributes(
					attribute.String("route", route),
					attribute.String("kind", kind),
				))
			}
			return nil
		}
	}
}

// routeLabel uses the registered route pattern. All routes are static, so
// the label set is bounded; anything else is "unmatched".
func routeLabel(path string) string {
	if path == "" || path == "/*" {
		return "unmatched"
	}
	return path
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return fmt.Sprintf("%dxx", status/100)
}
