package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records for testing.
type testHandler struct {
	buf    *bytes.Buffer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func newTestHandler() *testHandler {
	return &testHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})

	enc := json.NewEncoder(h.buf)
	return enc.Encode(data)
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := &testHandler{
		buf:    h.buf,
		level:  h.level,
		attrs:  make([]slog.Attr, len(h.attrs)+len(attrs)),
		groups: h.groups,
	}
	copy(newH.attrs, h.attrs)
	copy(newH.attrs[len(h.attrs):], attrs)
	return newH
}

func (h *testHandler) WithGroup(name string) slog.Handler {
	return &testHandler{
		buf:    h.buf,
		level:  h.level,
		attrs:  h.attrs,
		groups: append(h.groups, name),
	}
}

func (h *testHandler) getLastRecord() map[string]any {
	lines := bytes.Split(h.buf.Bytes(), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			var m map[string]any
			if err := json.Unmarshal(lines[i], &m); err == nil {
				return m
			}
		}
	}
	return nil
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds context_id", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		enriched := EnrichLogger(logger, "ctx-main")
		enriched.Info("test message")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "ctx-main", record["context_id"])
		assert.Equal(t, "test message", record["msg"])
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		assert.Nil(t, EnrichLogger(nil, "ctx-main"))
	})
}

func TestLogEmit(t *testing.T) {
	t.Run("logs at DEBUG level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogEmit(logger, "app:tick", 3)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
		assert.Equal(t, "event emitted", record["msg"])
		assert.Equal(t, "app:tick", record["event_id"])
		assert.Equal(t, float64(3), record["listeners"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogEmit(nil, "app:tick", 1)
		})
	})
}

func TestLogListenerError(t *testing.T) {
	t.Run("logs at ERROR level with error text", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogListenerError(logger, "app:tick", errors.New("listener broke"))

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "ERROR", record["level"])
		assert.Equal(t, "listener failed", record["msg"])
		assert.Equal(t, "app:tick", record["event_id"])
		assert.Equal(t, "listener broke", record["error"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogListenerError(nil, "app:tick", errors.New("err"))
		})
	})
}

func TestLogInvokeStart(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogInvokeStart(logger, "app:fetch", "corr-1", true)

	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, "invoke starting", record["msg"])
	assert.Equal(t, "app:fetch", record["event_id"])
	assert.Equal(t, "corr-1", record["correlation_id"])
	assert.Equal(t, true, record["local"])
}

func TestLogInvokeDone(t *testing.T) {
	t.Run("success logs at DEBUG", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogInvokeDone(logger, "app:fetch", "corr-1", 12.5, nil)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
		assert.Equal(t, "invoke completed", record["msg"])
		assert.Equal(t, 12.5, record["duration_ms"])
	})

	t.Run("failure logs at WARN with error text", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogInvokeDone(logger, "app:fetch", "corr-1", 30000.0, errors.New("timed out"))

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "WARN", record["level"])
		assert.Equal(t, "invoke failed", record["msg"])
		assert.Equal(t, "timed out", record["error"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogInvokeDone(nil, "app:fetch", "corr-1", 0, nil)
		})
	})
}

func TestLogWireDrop(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogWireDrop(logger, "invoke-response", "app:fetch", "corr-9", "no pending call")

	record := h.getLastRecord()
	require.NotNil(t, record)
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, "wire message dropped", record["msg"])
	assert.Equal(t, "invoke-response", record["type"])
	assert.Equal(t, "no pending call", record["reason"])
}

func TestLogClose(t *testing.T) {
	t.Run("logs rejected pending count", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogClose(logger, 2)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "INFO", record["level"])
		assert.Equal(t, "bus closed", record["msg"])
		assert.Equal(t, float64(2), record["pending_rejected"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogClose(nil, 0)
		})
	})
}

func TestTimedOperation(t *testing.T) {
	elapsed := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	ms := elapsed()
	assert.GreaterOrEqual(t, ms, float64(0))
}
