package eventa

import (
	"log/slog"
	"time"

	"github.com/deltaecho/eventa/pkg/eventa/journal"
	"github.com/deltaecho/eventa/pkg/eventa/observability"
	"github.com/deltaecho/eventa/pkg/eventa/transport"
)

// DefaultRPCTimeout is the invoke timeout used when neither the bus nor
// the call overrides it.
const DefaultRPCTimeout = 30 * time.Second

// busConfig holds construction-time configuration for a Bus.
type busConfig struct {
	contextID  string
	rpcTimeout time.Duration
	debug      bool
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
	recorder   journal.Recorder
	transport  transport.Adapter
}

func defaultBusConfig() busConfig {
	return busConfig{
		rpcTimeout: DefaultRPCTimeout,
		logger:     slog.Default(),
		metrics:    observability.NoopMetrics{},
		spans:      observability.NoopSpanManager{},
	}
}

// Option configures bus construction.
type Option func(*busConfig)

// WithContextID sets an explicit context identity.
// Default: auto-generated.
func WithContextID(id string) Option {
	return func(c *busConfig) {
		if id != "" {
			c.contextID = id
		}
	}
}

// WithRPCTimeout sets the default invoke timeout.
// Default: DefaultRPCTimeout. Overridable per call with WithTimeout.
func WithRPCTimeout(d time.Duration) Option {
	return func(c *busConfig) {
		if d > 0 {
			c.rpcTimeout = d
		}
	}
}

// WithDebug enables verbose dispatch diagnostics on the bus logger.
func WithDebug(debug bool) Option {
	return func(c *busConfig) {
		c.debug = debug
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
// A nil logger disables logging entirely.
func WithLogger(logger *slog.Logger) Option {
	return func(c *busConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
// Default: observability.NoopMetrics{}.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *busConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing sets the span manager.
// Default: observability.NoopSpanManager{}.
func WithTracing(s observability.SpanManager) Option {
	return func(c *busConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// WithJournal attaches a traffic recorder. The bus records dispatched,
// sent, and received traffic to it and closes it when the bus closes.
func WithJournal(r journal.Recorder) Option {
	return func(c *busConfig) {
		c.recorder = r
	}
}

// WithTransport attaches a transport at construction time.
// Equivalent to calling AttachTransport after New.
func WithTransport(tr transport.Adapter) Option {
	return func(c *busConfig) {
		c.transport = tr
	}
}

// invokeConfig holds per-call invoke configuration.
type invokeConfig struct {
	timeout time.Duration
}

// InvokeOption configures a single invoke call.
type InvokeOption func(*invokeConfig)

// WithTimeout overrides the bus's default invoke timeout for one call.
func WithTimeout(d time.Duration) InvokeOption {
	return func(c *invokeConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}
