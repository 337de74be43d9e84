package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/fyrsmithlabs/ragassistant/internal/config"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"disabled is always valid", func(c *Config) { c.Endpoint = "" }, ""},
		{"enabled defaults", func(c *Config) { c.Enabled = true }, ""},
		{"missing endpoint", func(c *Config) { c.Enabled = true; c.Endpoint = "" }, "endpoint is required"},
		{"bad protocol", func(c *Config) { c.Enabled = true; c.Protocol = "udp" }, "protocol must be"},
		{"insecure remote", func(c *Config) { c.Enabled = true; c.Endpoint = "otel.example.com:4317" }, "insecure connections"},
		{"secure remote", func(c *Config) {
			c.Enabled = true
			c.Endpoint = "https://otel.example.com:4318"
			c.Insecure = false
			c.Protocol = ProtocolHTTP
		}, ""},
		{"sample rate", func(c *Config) { c.Enabled = true; c.SampleRate = 1.5 }, "sample_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewDefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_IsLocalEndpoint(t *testing.T) {
	for endpoint, want := range map[string]bool{
		"localhost:4317":        true,
		"127.0.0.1:4317":        true,
		"[::1]:4317":            true,
		"http://localhost:4318": true,
		"10.0.0.5:4317":         false,
		"collector:4317":        false,
	} {
		c := &Config{Endpoint: endpoint}
		assert.Equal(t, want, c.isLocalEndpoint(), endpoint)
	}
}

func TestFromAppConfig(t *testing.T) {
	app := config.Default()
	app.Observability.EnableTelemetry = true
	app.Observability.Endpoint = "127.0.0.1:4318"
	app.Observability.Protocol = ProtocolHTTP
	app.Observability.Insecure = true
	app.Observability.SampleRate = 0.5

	c := FromAppConfig(app, "1.2.3")
	assert.True(t, c.Enabled)
	assert.Equal(t, "127.0.0.1:4318", c.Endpoint)
	assert.Equal(t, ProtocolHTTP, c.Protocol)
	assert.Equal(t, "1.2.3", c.ServiceVersion)
	assert.InDelta(t, 0.5, c.SampleRate, 1e-9)
	assert.NoError(t, c.Validate())
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)
	assert.False(t, tel.Enabled())
	assert.False(t, tel.Degraded())
	assert.Nil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.SampleRate = -1
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNew_ExportsThroughOverriddenExporters(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	spans := tracetest.NewInMemoryExporter()
	metrics := &countingExporter{}

	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.ExportInterval = time.Hour
	tel, err := New(context.Background(), cfg, WithSpanExporter(spans), WithMetricExporter(metrics))
	require.NoError(t, err)
	assert.True(t, tel.Enabled())
	assert.NotNil(t, tel.LoggerProvider())

	_, span := otel.Tracer("test").Start(context.Background(), "chat.Submit")
	span.End()
	counter, err := otel.Meter("test").Int64Counter("ragassistant.test")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, tel.ForceFlush(context.Background()))
	require.Len(t, spans.GetSpans(), 1)
	assert.Equal(t, "chat.Submit", spans.GetSpans()[0].Name)
	assert.Positive(t, metrics.exports)

	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestTestTelemetry(t *testing.T) {
	tt := NewTestTelemetry(t)

	_, span := otel.Tracer("test").Start(context.Background(), "prompt.Build")
	span.SetAttributes(attribute.String("prompt.mode", "document"))
	span.End()

	got := tt.SpanByName("prompt.Build")
	require.NotNil(t, got)
	v, ok := SpanAttribute(got, "prompt.mode")
	require.True(t, ok)
	assert.Equal(t, "document", v.AsString())
	assert.Nil(t, tt.SpanByName("missing"))

	counter, err := otel.Meter("test").Int64Counter("ragassistant.test")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)
	assert.NotEmpty(t, tt.Collect(t).ScopeMetrics)
}

// countingExporter counts metric exports.
type countingExporter struct {
	sdkmetric.Exporter
	exports int
}

func (e *countingExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (e *countingExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (e *countingExporter) Export(context.Context, *metricdata.ResourceMetrics) error {
	e.exports++
	return nil
}

func (e *countingExporter) ForceFlush(context.Context) error { return nil }

func (e *countingExporter) Shutdown(context.Context) error { return nil }
