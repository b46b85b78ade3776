package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records bus metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEmit records an event dispatch and its fan-out width.
	RecordEmit(ctx context.Context, eventID string, listeners int)

	// RecordListenerError records a listener failure during dispatch.
	RecordListenerError(ctx context.Context, eventID string)

	// RecordInvoke records an invoke round trip with its duration and
	// error status.
	RecordInvoke(ctx context.Context, eventID string, duration time.Duration, err error)

	// RecordTimeout records an invoke that expired unanswered.
	RecordTimeout(ctx context.Context, eventID string)

	// RecordWire records a wire message crossing the transport boundary.
	// Direction is "in" or "out".
	RecordWire(ctx context.Context, direction, msgType string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	emits          metric.Int64Counter
	deliveries     metric.Int64Counter
	listenerErrors metric.Int64Counter
	invokes        metric.Int64Counter
	invokeLatency  metric.Float64Histogram
	invokeErrors   metric.Int64Counter
	timeouts       metric.Int64Counter
	wireMessages   metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("eventa")

	emits, err := meter.Int64Counter("eventa.emit.count",
		metric.WithDescription("Number of events emitted"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter("eventa.emit.deliveries",
		metric.WithDescription("Number of listener deliveries"),
	)
	if err != nil {
		return nil, err
	}

	listenerErrors, err := meter.Int64Counter("eventa.listener.errors",
		metric.WithDescription("Number of listener failures"),
	)
	if err != nil {
		return nil, err
	}

	invokes, err := meter.Int64Counter("eventa.invoke.count",
		metric.WithDescription("Number of invoke calls"),
	)
	if err != nil {
		return nil, err
	}

	invokeLatency, err := meter.Float64Histogram("eventa.invoke.latency_ms",
		metric.WithDescription("Invoke round-trip latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	invokeErrors, err := meter.Int64Counter("eventa.invoke.errors",
		metric.WithDescription("Number of failed invoke calls"),
	)
	if err != nil {
		return nil, err
	}

	timeouts, err := meter.Int64Counter("eventa.invoke.timeouts",
		metric.WithDescription("Number of invoke calls that timed out"),
	)
	if err != nil {
		return nil, err
	}

	wireMessages, err := meter.Int64Counter("eventa.wire.messages",
		metric.WithDescription("Number of wire messages sent and received"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		emits:          emits,
		deliveries:     deliveries,
		listenerErrors: listenerErrors,
		invokes:        invokes,
		invokeLatency:  invokeLatency,
		invokeErrors:   invokeErrors,
		timeouts:       timeouts,
		wireMessages:   wireMessages,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordEmit records an event dispatch.
func (m *otelMetrics) RecordEmit(ctx context.Context, eventID string, listeners int) {
	attrs := []attribute.KeyValue{
		attribute.String("event_id", eventID),
	}
	m.emits.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.deliveries.Add(ctx, int64(listeners), metric.WithAttributes(attrs...))
}

// RecordListenerError records a listener failure.
func (m *otelMetrics) RecordListenerError(ctx context.Context, eventID string) {
	m.listenerErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_id", eventID),
	))
}

// RecordInvoke records an invoke round trip.
func (m *otelMetrics) RecordInvoke(ctx context.Context, eventID string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("event_id", eventID),
	}
	m.invokes.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.invokeLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		m.invokeErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordTimeout records an invoke timeout.
func (m *otelMetrics) RecordTimeout(ctx context.Context, eventID string) {
	m.timeouts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_id", eventID),
	))
}

// RecordWire records a wire message.
func (m *otelMetrics) RecordWire(ctx context.Context, direction, msgType string) {
	m.wireMessages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("direction", direction),
		attribute.String("type", msgType),
	))
}
