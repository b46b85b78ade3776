package eventa

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deltaecho/eventa/pkg/eventa/journal"
	"github.com/deltaecho/eventa/pkg/eventa/observability"
	"github.com/deltaecho/eventa/pkg/eventa/transport"
	"github.com/deltaecho/eventa/pkg/eventa/wire"
)

// Bus is one independent instance of the event/invoke bus. It owns its
// subscriptions, invoke handlers, and pending calls; buses share no
// state, and two buses talk only through a transport.
//
// All operations are safe for concurrent use and safe to call
// reentrantly from inside listeners and handlers.
type Bus struct {
	contextID  string
	rpcTimeout time.Duration
	logger     *slog.Logger
	debugLog   *slog.Logger // nil unless debug is enabled
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
	recorder   journal.Recorder

	mu        sync.Mutex
	closed    bool
	listeners map[ID][]*listenerEntry
	handlers  map[ID]invokeHandler
	streams   map[ID]streamInvokeHandler
	tr        transport.Adapter
	trSub     transport.Subscription

	pending *pendingTracker
}

// New creates an open bus.
func New(opts ...Option) *Bus {
	cfg := defaultBusConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.contextID == "" {
		cfg.contextID = "ctx-" + uuid.New().String()[:8]
	}

	logger := observability.EnrichLogger(cfg.logger, cfg.contextID)
	b := &Bus{
		contextID:  cfg.contextID,
		rpcTimeout: cfg.rpcTimeout,
		logger:     logger,
		metrics:    cfg.metrics,
		spans:      cfg.spans,
		recorder:   cfg.recorder,
		listeners:  make(map[ID][]*listenerEntry),
		handlers:   make(map[ID]invokeHandler),
		streams:    make(map[ID]streamInvokeHandler),
		pending:    newPendingTracker(),
	}
	if cfg.debug {
		b.debugLog = logger
	}

	if cfg.transport != nil {
		// Construction-time attach cannot fail: the bus is open and
		// has no transport yet.
		_ = b.AttachTransport(cfg.transport)
	}
	return b
}

// ContextID returns the bus identity.
func (b *Bus) ContextID() string {
	return b.contextID
}

// AttachTransport connects the bus to a transport. The bus registers a
// single incoming-message handler on it and forwards outgoing traffic
// to its Send. At most one transport may be attached.
func (b *Bus) AttachTransport(tr transport.Adapter) error {
	if tr == nil {
		return errors.New("eventa: nil transport")
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	if b.tr != nil {
		b.mu.Unlock()
		return errors.New("eventa: transport already attached")
	}
	b.tr = tr
	b.mu.Unlock()

	sub := tr.OnMessage(b.handleWire)

	b.mu.Lock()
	b.trSub = sub
	b.mu.Unlock()
	return nil
}

// Close transitions the bus to its terminal closed state: the transport
// handler is detached, every pending call is rejected with ErrClosed,
// all subscriptions and handlers are dropped, and the transport's Close
// is invoked if it has one. Pending calls are rejected before the
// transport closes, so their rejections never race its teardown.
// Idempotent.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	tr := b.tr
	trSub := b.trSub
	b.tr = nil
	b.trSub = nil
	b.listeners = make(map[ID][]*listenerEntry)
	b.handlers = make(map[ID]invokeHandler)
	b.streams = make(map[ID]streamInvokeHandler)
	b.mu.Unlock()

	if trSub != nil {
		trSub.Unsubscribe()
	}

	rejected := b.pending.closeAll(ErrClosed)

	var err error
	if c, ok := tr.(transport.Closer); ok {
		err = c.Close()
	}
	if b.recorder != nil {
		if cerr := b.recorder.Close(); err == nil {
			err = cerr
		}
	}

	observability.LogClose(b.logger, rejected)
	return err
}

// transportFor returns the attached transport, or nil when absent or
// the bus is closed.
func (b *Bus) transportFor() transport.Adapter {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	return b.tr
}

// sendWire hands an outgoing message to the transport. Best-effort:
// failures are logged, not propagated, matching the fire-and-forget
// transport contract.
func (b *Bus) sendWire(tr transport.Adapter, msg wire.Message) {
	b.record(journal.DirectionOut, msg)
	b.metrics.RecordWire(context.Background(), "out", string(msg.Type))
	if err := tr.Send(msg); err != nil && b.logger != nil {
		b.logger.Warn("transport send failed",
			slog.String("type", string(msg.Type)),
			slog.String("event_id", msg.EventID),
			slog.String("error", err.Error()),
		)
	}
}

// record appends traffic to the journal when one is attached.
func (b *Bus) record(direction string, msg wire.Message) {
	if b.recorder == nil {
		return
	}
	entry := journal.Entry{
		ContextID: b.contextID,
		Direction: direction,
		Message:   msg,
	}
	if err := b.recorder.Record(context.Background(), entry); err != nil && b.logger != nil {
		b.logger.Warn("journal record failed",
			slog.String("error", err.Error()),
		)
	}
}
