package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics_ImplementsInterface(t *testing.T) {
	var _ MetricsRecorder = NoopMetrics{}
}

func TestNoopMetrics_DoesNotPanic(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordEmit(ctx, "app:tick", 3)
		m.RecordEmit(ctx, "", 0)
		m.RecordListenerError(ctx, "app:tick")
		m.RecordInvoke(ctx, "app:fetch", 100*time.Millisecond, nil)
		m.RecordInvoke(ctx, "app:fetch", 0, errors.New("test"))
		m.RecordTimeout(ctx, "app:slow")
		m.RecordWire(ctx, "out", "event")
	})
}

func TestNoopSpanManager_ImplementsInterface(t *testing.T) {
	var _ SpanManager = NoopSpanManager{}
}

func TestNoopSpanManager_ReturnsContextUnchanged(t *testing.T) {
	m := NoopSpanManager{}
	ctx := context.Background()

	invokeCtx, span := m.StartInvokeSpan(ctx, "app:fetch", "corr-1")
	assert.Equal(t, ctx, invokeCtx)
	assert.NotNil(t, span)

	dispatchCtx, span := m.StartDispatchSpan(ctx, "app:tick")
	assert.Equal(t, ctx, dispatchCtx)
	assert.NotNil(t, span)
}

func TestNoopSpanManager_DoesNotPanic(t *testing.T) {
	m := NoopSpanManager{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		_, span := m.StartInvokeSpan(ctx, "app:fetch", "corr-1")
		m.EndSpanWithError(span, errors.New("test"))
		m.EndSpanWithError(span, nil)
		m.AddSpanEvent(ctx, "chunk", attribute.Int("seq", 1))
	})
}
