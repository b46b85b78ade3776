package eventa

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/deltaecho/eventa/pkg/eventa/journal"
	"github.com/deltaecho/eventa/pkg/eventa/observability"
	"github.com/deltaecho/eventa/pkg/eventa/wire"
)

// handleWire is the single incoming-message handler the bus registers
// on its transport. Wire traffic re-enters the bus here: events are
// redelivered locally without echoing back out, requests are served and
// answered, and responses settle pending calls. Responses with unknown
// correlation ids are dropped; the call may have already timed out.
//
// Invoke-requests are served on their own goroutine so a slow handler
// never stalls the transport's delivery goroutine: responses keep
// settling, and concurrent remote invokes interleave instead of
// queueing behind each other.
func (b *Bus) handleWire(msg wire.Message) {
	if err := msg.Validate(); err != nil {
		observability.LogWireDrop(b.debugLog, string(msg.Type), msg.EventID, msg.CorrelationID, err.Error())
		return
	}

	b.record(journal.DirectionIn, msg)
	b.metrics.RecordWire(context.Background(), "in", string(msg.Type))

	switch msg.Type {
	case wire.TypeEvent:
		env := envelope{
			eventID:   ParseID(msg.EventID),
			body:      rawBody(msg.Payload),
			timestamp: msg.Time(),
		}
		// Listener failures on redelivered events have no remote
		// caller to report to; dispatch logs them.
		_ = b.dispatch(context.Background(), env, true)

	case wire.TypeInvokeRequest:
		go b.serveWireInvoke(msg)

	case wire.TypeInvokeResponse:
		if !b.pending.settleAny(msg.CorrelationID, pendingResult{payload: msg.Payload}) {
			observability.LogWireDrop(b.debugLog, string(msg.Type), msg.EventID, msg.CorrelationID, "no pending call")
		}

	case wire.TypeInvokeError:
		rerr := &RemoteError{
			EventID:       ParseID(msg.EventID),
			CorrelationID: msg.CorrelationID,
			Message:       wire.DecodeErrorPayload(msg.Payload),
		}
		if !b.pending.settleAny(msg.CorrelationID, pendingResult{err: rerr}) {
			observability.LogWireDrop(b.debugLog, string(msg.Type), msg.EventID, msg.CorrelationID, "no pending call")
		}

	case wire.TypeStreamData:
		if !b.pending.streamData(msg.CorrelationID, msg.Payload) {
			observability.LogWireDrop(b.debugLog, string(msg.Type), msg.EventID, msg.CorrelationID, "no pending stream")
		}

	case wire.TypeStreamEnd:
		var endErr error
		if len(msg.Payload) > 0 {
			endErr = &RemoteError{
				EventID:       ParseID(msg.EventID),
				CorrelationID: msg.CorrelationID,
				Message:       wire.DecodeErrorPayload(msg.Payload),
			}
		}
		if !b.pending.endStream(msg.CorrelationID, endErr) {
			observability.LogWireDrop(b.debugLog, string(msg.Type), msg.EventID, msg.CorrelationID, "no pending stream")
		}
	}
}

// serveWireInvoke dispatches an incoming invoke-request to the local
// handler for its id and sends the outcome back with the request's
// correlation id. A plain handler answers with one invoke-response or
// invoke-error; a stream handler answers with stream-data messages
// terminated by stream-end.
func (b *Bus) serveWireInvoke(msg wire.Message) {
	id := ParseID(msg.EventID)

	b.mu.Lock()
	closed := b.closed
	handler := b.handlers[id]
	streamHandler := b.streams[id]
	tr := b.tr
	b.mu.Unlock()

	if closed || tr == nil {
		return
	}

	env := envelope{
		eventID:       id,
		body:          rawBody(msg.Payload),
		timestamp:     msg.Time(),
		correlationID: msg.CorrelationID,
	}
	ctx := context.Background()

	switch {
	case handler != nil:
		out, err := callHandler(ctx, handler, env)
		if err != nil {
			b.sendWire(tr, wire.NewInvokeError(msg.EventID, msg.CorrelationID, err))
			return
		}
		payload, merr := marshalPayload(out)
		if merr != nil {
			b.sendWire(tr, wire.NewInvokeError(msg.EventID, msg.CorrelationID, merr))
			return
		}
		b.sendWire(tr, wire.NewInvokeResponse(msg.EventID, msg.CorrelationID, payload))

	case streamHandler != nil:
		send := func(chunk any) error {
			payload, merr := marshalPayload(chunk)
			if merr != nil {
				return merr
			}
			b.sendWire(tr, wire.NewStreamData(msg.EventID, msg.CorrelationID, payload))
			return nil
		}
		err := callStreamHandler(ctx, streamHandler, env, send)
		b.sendWire(tr, wire.NewStreamEnd(msg.EventID, msg.CorrelationID, err))

	default:
		b.sendWire(tr, wire.NewInvokeError(msg.EventID, msg.CorrelationID,
			fmt.Errorf("no handler registered for %s", id)))
	}
}

// rawBody normalizes a wire payload for envelope decoding. An absent
// payload stays nil so typed wrappers substitute the zero value.
func rawBody(payload json.RawMessage) any {
	if len(payload) == 0 {
		return nil
	}
	return payload
}
