// Package natstransport bridges buses over NATS.
//
// Every bus sharing a subject sees every other bus's traffic; a bus's
// own messages are filtered out by an origin tag so local emissions are
// never redelivered to their source.
package natstransport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/deltaecho/eventa/pkg/eventa/transport"
	"github.com/deltaecho/eventa/pkg/eventa/wire"
)

// Connect creates a NATS connection suitable for bus transports, with
// reconnect handling wired to slog.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(60),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", slog.String("error", fmt.Sprint(err)))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("natstransport: connect to %s: %w", url, err)
	}
	return nc, nil
}

// frame is the on-subject wrapper around a wire message. Origin carries
// the sending transport's identity for self-echo suppression.
type frame struct {
	Origin  string       `json:"origin"`
	Message wire.Message `json:"message"`
}

// Transport is a transport.Adapter carrying bus traffic over one NATS
// subject.
type Transport struct {
	nc      *nats.Conn
	subject string
	origin  string
	logger  *slog.Logger

	mu      sync.Mutex
	sub     *nats.Subscription
	handler func(msg wire.Message)
	closed  bool
}

var _ transport.Adapter = (*Transport)(nil)
var _ transport.Closer = (*Transport)(nil)

// New subscribes to the subject on the given connection and returns
// the transport. The subscription is flushed to the server before New
// returns, so traffic published by a peer right after New is delivered.
// The connection is owned by the caller; Close drains the subscription
// but leaves the connection open.
func New(nc *nats.Conn, subject string) (*Transport, error) {
	if subject == "" {
		return nil, fmt.Errorf("natstransport: subject is required")
	}

	t := &Transport{
		nc:      nc,
		subject: subject,
		origin:  "origin-" + uuid.New().String()[:8],
		logger:  slog.Default(),
	}

	sub, err := nc.Subscribe(subject, t.dispatch)
	if err != nil {
		return nil, fmt.Errorf("natstransport: subscribe %s: %w", subject, err)
	}
	if err := nc.FlushTimeout(5 * time.Second); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("natstransport: flush subscribe %s: %w", subject, err)
	}
	t.sub = sub
	return t, nil
}

func (t *Transport) dispatch(m *nats.Msg) {
	var f frame
	if err := json.Unmarshal(m.Data, &f); err != nil {
		t.logger.Warn("dropping malformed frame",
			slog.String("subject", t.subject),
			slog.String("error", err.Error()),
		)
		return
	}
	if f.Origin == t.origin {
		return // own traffic
	}

	t.mu.Lock()
	fn := t.handler
	closed := t.closed
	t.mu.Unlock()

	if closed || fn == nil {
		return
	}
	fn(f.Message)
}

// Send implements transport.Adapter.
func (t *Transport) Send(msg wire.Message) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return fmt.Errorf("natstransport: transport closed")
	}

	data, err := json.Marshal(frame{Origin: t.origin, Message: msg})
	if err != nil {
		return fmt.Errorf("natstransport: encode frame: %w", err)
	}
	if err := t.nc.Publish(t.subject, data); err != nil {
		return fmt.Errorf("natstransport: publish %s: %w", t.subject, err)
	}
	return nil
}

// OnMessage implements transport.Adapter. Registering replaces any
// previous handler.
func (t *Transport) OnMessage(fn func(msg wire.Message)) transport.Subscription {
	t.mu.Lock()
	t.handler = fn
	t.mu.Unlock()
	return &handlerSub{t: t}
}

// Close implements transport.Closer: the subscription is drained and
// the handler dropped. Idempotent. The NATS connection stays open.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	sub := t.sub
	t.sub = nil
	t.handler = nil
	t.mu.Unlock()

	if sub != nil {
		if err := sub.Drain(); err != nil {
			return fmt.Errorf("natstransport: drain %s: %w", t.subject, err)
		}
	}
	return nil
}

type handlerSub struct {
	t    *Transport
	once sync.Once
}

func (s *handlerSub) Unsubscribe() {
	s.once.Do(func() {
		s.t.mu.Lock()
		s.t.handler = nil
		s.t.mu.Unlock()
	})
}
