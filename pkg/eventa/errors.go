package eventa

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed bus. Emit is the one
// exception: emitting after close is a silent no-op so that shutdown
// races stay harmless.
var ErrClosed = errors.New("eventa: bus closed")

// ErrNoHandler is returned by Invoke when no local handler is registered
// and no transport is attached. This is a configuration error, not a
// transient one; the bus never retries it.
var ErrNoHandler = errors.New("eventa: no handler registered")

// ErrInvokeTimeout is returned when an invoke receives no response
// within its timeout window. It is distinct from handler and remote
// errors so callers can tell "never answered" from "answered with
// failure".
var ErrInvokeTimeout = errors.New("eventa: invoke timed out")

// ListenerError wraps a failure from a single listener during Emit.
// One listener's failure never prevents later listeners from running;
// Emit joins all listener errors into its return value.
type ListenerError struct {
	EventID ID
	Err     error
}

// Error implements the error interface.
func (e *ListenerError) Error() string {
	return fmt.Sprintf("eventa: listener for %s: %v", e.EventID, e.Err)
}

// Unwrap returns the listener's error.
func (e *ListenerError) Unwrap() error {
	return e.Err
}

// RemoteError is the rejection of an invoke answered by an invoke-error
// wire message. It carries the error text the remote handler produced.
type RemoteError struct {
	EventID       ID
	CorrelationID string
	Message       string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("eventa: remote handler for %s: %s", e.EventID, e.Message)
}
