// Package journal records bus traffic for debugging and inspection.
//
// A journal is a tape of everything a bus dispatched, invoked, sent, or
// received, in wire-message shape. It is an observability aid, not a
// durability layer: nothing recorded here is ever replayed into
// delivery.
package journal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/deltaecho/eventa/pkg/eventa/wire"
)

// Traffic directions recorded in entries.
const (
	DirectionLocal = "local" // dispatched within the bus
	DirectionOut   = "out"   // handed to the transport
	DirectionIn    = "in"    // received from the transport
)

// ErrRecorderClosed is returned by operations on a closed recorder.
var ErrRecorderClosed = errors.New("journal: recorder closed")

// Entry is one recorded unit of traffic.
type Entry struct {
	// ContextID identifies the bus that recorded the entry.
	ContextID string `json:"context_id"`

	// Direction is local, in, or out.
	Direction string `json:"direction"`

	// Message is the traffic in wire shape.
	Message wire.Message `json:"message"`

	// RecordedAt is when the recorder saw the entry.
	RecordedAt time.Time `json:"recorded_at"`
}

// Recorder persists journal entries.
type Recorder interface {
	// Record appends one entry. Best-effort: the bus logs and
	// continues if recording fails.
	Record(ctx context.Context, e Entry) error

	// List returns entries in recorded order, truncated to the first
	// limit entries. A non-positive limit returns everything.
	List(ctx context.Context, limit int) ([]Entry, error)

	// Count returns the number of recorded entries.
	Count(ctx context.Context) (int, error)

	// Close releases recorder resources.
	Close() error
}

// MemoryRecorder keeps entries in memory. Suitable for tests and
// short-lived debugging sessions.
type MemoryRecorder struct {
	mu      sync.RWMutex
	entries []Entry
	closed  bool
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record implements Recorder.
func (r *MemoryRecorder) Record(_ context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRecorderClosed
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	r.entries = append(r.entries, e)
	return nil
}

// List implements Recorder.
func (r *MemoryRecorder) List(_ context.Context, limit int) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrRecorderClosed
	}
	n := len(r.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, n)
	copy(out, r.entries[:n])
	return out, nil
}

// Count implements Recorder.
func (r *MemoryRecorder) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return 0, ErrRecorderClosed
	}
	return len(r.entries), nil
}

// Close implements Recorder. Idempotent.
func (r *MemoryRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
