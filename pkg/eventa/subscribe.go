package eventa

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/deltaecho/eventa/pkg/eventa/journal"
	"github.com/deltaecho/eventa/pkg/eventa/observability"
	"github.com/deltaecho/eventa/pkg/eventa/wire"
)

// Listener receives events for one definition. Returning an error does
// not stop delivery to later listeners; Emit joins all listener errors
// into its return value.
type Listener[T any] func(ctx context.Context, env Envelope[T]) error

// Subscription is the handle returned to a listener registrant. The
// handle, not the listener value, identifies the registration: the same
// listener function subscribed twice yields two independently removable
// subscriptions.
type Subscription interface {
	// Unsubscribe removes exactly this registration. Idempotent.
	Unsubscribe()
}

// rawListener is the untyped registry form of a listener.
type rawListener func(ctx context.Context, env envelope) error

// listenerEntry is one registration in the ordered listener list.
type listenerEntry struct {
	fn   rawListener
	once bool
}

// On subscribes a listener to an event definition. Listeners fire in
// registration order.
func On[T any](b *Bus, def EventDef[T], fn Listener[T]) Subscription {
	return b.subscribe(def.id, wrapListener(fn), false)
}

// Once subscribes a listener for at most one delivery. The registration
// is removed before the listener's first invocation runs, so the
// listener cannot see a second delivery even if it emits the same event
// synchronously from inside itself.
func Once[T any](b *Bus, def EventDef[T], fn Listener[T]) Subscription {
	return b.subscribe(def.id, wrapListener(fn), true)
}

func wrapListener[T any](fn Listener[T]) rawListener {
	return func(ctx context.Context, env envelope) error {
		body, err := decodeBody[T](env.body)
		if err != nil {
			return err
		}
		return fn(ctx, Envelope[T]{
			EventID:       env.eventID,
			Body:          body,
			Timestamp:     env.timestamp,
			CorrelationID: env.correlationID,
		})
	}
}

func (b *Bus) subscribe(id ID, fn rawListener, once bool) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return inertSubscription{}
	}

	entry := &listenerEntry{fn: fn, once: once}
	b.listeners[id] = append(b.listeners[id], entry)
	return &subscription{bus: b, id: id, entry: entry}
}

// subscription removes its entry by identity, so duplicate listener
// functions stay independently removable.
type subscription struct {
	bus   *Bus
	id    ID
	entry *listenerEntry
	once  sync.Once
}

// Unsubscribe implements Subscription.
func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		s.bus.removeEntryLocked(s.id, s.entry)
	})
}

func (b *Bus) removeEntryLocked(id ID, entry *listenerEntry) {
	entries := b.listeners[id]
	for i, e := range entries {
		if e == entry {
			b.listeners[id] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(b.listeners[id]) == 0 {
		delete(b.listeners, id)
	}
}

// inertSubscription is handed out by a closed bus.
type inertSubscription struct{}

func (inertSubscription) Unsubscribe() {}

// Emit delivers a payload to every listener currently subscribed to the
// definition, synchronously, in registration order. Listener errors and
// panics are isolated per listener and joined into the return value.
// When a transport is attached the event is also forwarded outward.
// Emitting on a closed bus is a silent no-op.
func Emit[T any](ctx context.Context, b *Bus, def EventDef[T], body T) error {
	return b.emit(ctx, envelope{
		eventID:   def.id,
		body:      body,
		timestamp: time.Now(),
	})
}

func (b *Bus) emit(ctx context.Context, env envelope) error {
	err := b.dispatch(ctx, env, false)

	if tr := b.transportFor(); tr != nil {
		payload, merr := marshalPayload(env.body)
		if merr != nil {
			err = errors.Join(err, fmt.Errorf("eventa: encode event %s: %w", env.eventID, merr))
		} else {
			msg := wire.NewEvent(env.eventID.String(), payload)
			msg.Timestamp = env.timestamp.UnixMilli()
			b.sendWire(tr, msg)
		}
	}
	return err
}

// dispatch runs local delivery for an envelope. fromWire marks traffic
// that entered through the transport, which must not echo back out.
//
// The listener list is snapshotted up front: registrations and removals
// performed by a listener never affect the in-progress delivery, and a
// listener removed mid-dispatch still receives this emission if it was
// subscribed when dispatch began. Once-entries leave the registry at
// snapshot time, before any listener runs.
func (b *Bus) dispatch(ctx context.Context, env envelope, fromWire bool) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	entries := b.listeners[env.eventID]
	snapshot := make([]*listenerEntry, len(entries))
	copy(snapshot, entries)
	for _, e := range snapshot {
		if e.once {
			b.removeEntryLocked(env.eventID, e)
		}
	}
	b.mu.Unlock()

	if b.recorder != nil && !fromWire {
		// Incoming wire traffic is recorded once by handleWire.
		payload, merr := marshalPayload(env.body)
		if merr == nil {
			msg := wire.NewEvent(env.eventID.String(), payload)
			msg.Timestamp = env.timestamp.UnixMilli()
			b.record(journal.DirectionLocal, msg)
		}
	}

	observability.LogEmit(b.debugLog, env.eventID.String(), len(snapshot))
	b.metrics.RecordEmit(ctx, env.eventID.String(), len(snapshot))

	ctx, span := b.spans.StartDispatchSpan(ctx, env.eventID.String())
	var errs []error
	for _, e := range snapshot {
		if lerr := callListener(ctx, e.fn, env); lerr != nil {
			werr := &ListenerError{EventID: env.eventID, Err: lerr}
			observability.LogListenerError(b.logger, env.eventID.String(), lerr)
			b.metrics.RecordListenerError(ctx, env.eventID.String())
			errs = append(errs, werr)
		}
	}
	err := errors.Join(errs...)
	b.spans.EndSpanWithError(span, err)
	return err
}

// callListener invokes one listener, converting a panic into an error
// so a misbehaving listener cannot take down dispatch.
func callListener(ctx context.Context, fn rawListener, env envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return fn(ctx, env)
}
