package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Telemetry owns the tracer and meter providers.
type Telemetry struct {
	config *Config

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	degraded atomic.Bool
	problems []error
}

// New validates cfg and, when enabled, installs OTLP-backed global tracer
// and meter providers. Exporter setup failures degrade the instance instead
// of failing.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	t := &Telemetry{config: cfg}
	if !cfg.Enabled {
		return t, nil
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	res := newResource(cfg)

	if tp, err := newTracerProvider(ctx, cfg, res, o); err != nil {
		t.setDegraded(err)
	} else {
		t.tracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	if mp, err := newMeterProvider(ctx, cfg, res, o); err != nil {
		t.setDegraded(err)
	} else {
		t.meterProvider = mp
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return t, nil
}

// LoggerProvider returns the provider for the otelzap bridge, or nil when
// telemetry is off.
func (t *Telemetry) LoggerProvider() log.LoggerProvider {
	if !t.Enabled() {
		return nil
	}
	return global.GetLoggerProvider()
}

// Enabled reports whether telemetry was requested and at least one provider
// is running.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.config != nil && t.config.Enabled &&
		(t.tracerProvider != nil || t.meterProvider != nil)
}

// Degraded reports whether a provider failed to start.
func (t *Telemetry) Degraded() bool {
	return t != nil && t.degraded.Load()
}

// Problems returns the errors that degraded the instance.
func (t *Telemetry) Problems() []error {
	if t == nil {
		return nil
	}
	return t.problems
}

// provider is the lifecycle shared by the trace and metric SDK providers.
type provider interface {
	ForceFlush(context.Context) error
	Shutdown(context.Context) error
}

func (t *Telemetry) each(ctx context.Context, verb string, fn func(provider, context.Context) error) error {
	var errs []error
	if t.tracerProvider != nil {
		if err := fn(t.tracerProvider, ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider %s: %w", verb, err))
		}
	}
	if t.meterProvider != nil {
		if err := fn(t.meterProvider, ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider %s: %w", verb, err))
		}
	}
	return errors.Join(errs...)
}

// ForceFlush exports pending spans and metrics.
func (t *Telemetry) ForceFlush(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.each(ctx, "flush", provider.ForceFlush)
}

// Shutdown flushes and stops both providers. Without a deadline on ctx it
// is bounded by the configured shutdown timeout.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok && t.config != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.ShutdownTimeout)
		defer cancel()
	}
	return t.each(ctx, "shutdown", provider.Shutdown)
}

func (t *Telemetry) setDegraded(err error) {
	t.degraded.Store(true)
	t.problems = append(t.problems, err)
}
