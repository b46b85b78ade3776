// Package observability provides structured logging, metrics, and
// tracing for the bus.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds bus context to a logger. Returns a new logger with
// a context_id field attached to every record.
func EnrichLogger(logger *slog.Logger, contextID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("context_id", contextID))
}

// LogEmit logs an event dispatch.
func LogEmit(logger *slog.Logger, eventID string, listeners int) {
	if logger == nil {
		return
	}
	logger.Debug("event emitted",
		slog.String("event_id", eventID),
		slog.Int("listeners", listeners),
	)
}

// LogListenerError logs a listener failure during dispatch.
func LogListenerError(logger *slog.Logger, eventID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("listener failed",
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// LogInvokeStart logs the start of an invoke call.
func LogInvokeStart(logger *slog.Logger, eventID, correlationID string, local bool) {
	if logger == nil {
		return
	}
	logger.Debug("invoke starting",
		slog.String("event_id", eventID),
		slog.String("correlation_id", correlationID),
		slog.Bool("local", local),
	)
}

// LogInvokeDone logs invoke completion, success or failure.
func LogInvokeDone(logger *slog.Logger, eventID, correlationID string, durationMs float64, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Warn("invoke failed",
			slog.String("event_id", eventID),
			slog.String("correlation_id", correlationID),
			slog.Float64("duration_ms", durationMs),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("invoke completed",
		slog.String("event_id", eventID),
		slog.String("correlation_id", correlationID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogWireDrop logs an incoming wire message the bus discarded, such as
// a response whose call already timed out.
func LogWireDrop(logger *slog.Logger, msgType, eventID, correlationID, reason string) {
	if logger == nil {
		return
	}
	logger.Debug("wire message dropped",
		slog.String("type", msgType),
		slog.String("event_id", eventID),
		slog.String("correlation_id", correlationID),
		slog.String("reason", reason),
	)
}

// LogClose logs bus shutdown with the number of rejected pending calls.
func LogClose(logger *slog.Logger, pendingRejected int) {
	if logger == nil {
		return
	}
	logger.Info("bus closed",
		slog.Int("pending_rejected", pendingRejected),
	)
}

// TimedOperation measures the duration of an operation. Returns a
// function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
