// Package transport defines the contract the bus consumes to reach other
// bus instances, plus an in-process reference implementation.
//
// A transport carries wire messages between exactly two ends. The bus is
// fully functional without one; attaching a transport only extends
// reachability. Delivery is best-effort from the bus's point of view:
// durability, reconnection, and ordering across the boundary are the
// transport's concern.
package transport

import "github.com/deltaecho/eventa/pkg/eventa/wire"

// Adapter is the contract consumed by the bus. Implementations must be
// safe for concurrent use: Send may be called from any goroutine, and
// received messages may be delivered on any goroutine.
type Adapter interface {
	// Send forwards an outgoing message. Best-effort, fire-and-forget.
	Send(msg wire.Message) error

	// OnMessage registers a handler for incoming messages. The bus
	// registers exactly one handler per attached transport.
	OnMessage(fn func(msg wire.Message)) Subscription
}

// Closer is optionally implemented by adapters that hold resources.
// The bus invokes Close once, when its own Close runs.
type Closer interface {
	Close() error
}

// Subscription detaches a handler registered with OnMessage.
type Subscription interface {
	// Unsubscribe removes the handler. Idempotent.
	Unsubscribe()
}
