package transport

import (
	"errors"
	"sync"

	"github.com/deltaecho/eventa/pkg/eventa/wire"
)

// ErrEndpointClosed is returned by Send on a closed pair endpoint.
var ErrEndpointClosed = errors.New("transport: endpoint closed")

// Pair returns two linked in-process endpoints. A message sent on one
// end is delivered, synchronously on the sender's goroutine, to the
// handler registered on the other end. Messages sent while the peer has
// no handler are dropped, matching the fire-and-forget contract.
//
// Pair is the reference transport: it is how two buses in the same
// process talk without sharing object references, and it is what the
// bus's own transport tests run against.
func Pair() (*Endpoint, *Endpoint) {
	a := &Endpoint{}
	b := &Endpoint{}
	a.peer = b
	b.peer = a
	return a, b
}

// Endpoint is one end of an in-process transport pair.
type Endpoint struct {
	peer *Endpoint

	mu      sync.Mutex
	handler func(msg wire.Message)
	closed  bool
}

// Send delivers msg to the peer's registered handler.
func (e *Endpoint) Send(msg wire.Message) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEndpointClosed
	}
	peer := e.peer
	e.mu.Unlock()

	peer.deliver(msg)
	return nil
}

func (e *Endpoint) deliver(msg wire.Message) {
	e.mu.Lock()
	fn := e.handler
	closed := e.closed
	e.mu.Unlock()

	if closed || fn == nil {
		return
	}
	fn(msg)
}

// OnMessage registers the handler for messages sent by the peer.
// Registering replaces any previous handler.
func (e *Endpoint) OnMessage(fn func(msg wire.Message)) Subscription {
	e.mu.Lock()
	e.handler = fn
	e.mu.Unlock()
	return &endpointSub{endpoint: e}
}

// Close marks the endpoint closed. Further Sends fail and incoming
// messages are dropped. Idempotent.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	e.closed = true
	e.handler = nil
	e.mu.Unlock()
	return nil
}

type endpointSub struct {
	endpoint *Endpoint
	once     sync.Once
}

func (s *endpointSub) Unsubscribe() {
	s.once.Do(func() {
		s.endpoint.mu.Lock()
		s.endpoint.handler = nil
		s.endpoint.mu.Unlock()
	})
}
