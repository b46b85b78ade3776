package eventa

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deltaecho/eventa/pkg/eventa/transport"
	"github.com/deltaecho/eventa/pkg/eventa/wire"
)

// StreamHandler serves streamed invoke requests for one definition. The
// handler pushes chunks through send and returns when the stream is
// complete; a non-nil return marks the stream as failed.
type StreamHandler[Req, Chunk any] func(ctx context.Context, req Req, env Envelope[Req], send func(Chunk) error) error

// streamInvokeHandler is the untyped registry form of a StreamHandler.
type streamInvokeHandler func(ctx context.Context, env envelope, send func(any) error) error

// StreamItem is one delivery on a stream returned by InvokeStream.
// Exactly one of Value or Err is meaningful; an item with a non-nil Err
// is the final item of a failed stream.
type StreamItem[Chunk any] struct {
	Value Chunk
	Err   error
}

// HandleInvokeStream registers a streaming handler for an invoke
// definition. The definition's response type is the chunk type. As with
// HandleInvoke, one handler serves an id and the last registration wins
// across both handler kinds.
func HandleInvokeStream[Req, Chunk any](b *Bus, def InvokeDef[Req, Chunk], h StreamHandler[Req, Chunk]) {
	raw := func(ctx context.Context, env envelope, send func(any) error) error {
		req, err := decodeBody[Req](env.body)
		if err != nil {
			return err
		}
		typedSend := func(chunk Chunk) error {
			return send(chunk)
		}
		return h(ctx, req, Envelope[Req]{
			EventID:       env.eventID,
			Body:          req,
			Timestamp:     env.timestamp,
			CorrelationID: env.correlationID,
		}, typedSend)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.streams[def.id] = raw
	delete(b.handlers, def.id)
}

// InvokeStream issues a request whose reply arrives as a stream of
// chunks. The returned channel yields items in arrival order and is
// closed after the final one; a failed stream ends with a single item
// carrying the error. The timeout is an idle timeout between chunks,
// not a bound on total stream duration. Callers must drain the channel.
//
// Resolution follows Invoke: local stream handler, then local plain
// handler (whose single response becomes a one-chunk stream), then the
// transport, else ErrNoHandler.
func InvokeStream[Req, Chunk any](ctx context.Context, b *Bus, def InvokeDef[Req, Chunk], req Req, opts ...InvokeOption) (<-chan StreamItem[Chunk], error) {
	cfg := b.resolveInvokeConfig(opts)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	streamHandler := b.streams[def.id]
	plainHandler := b.handlers[def.id]
	tr := b.tr
	b.mu.Unlock()

	if streamHandler != nil {
		return localStream[Chunk](ctx, def.id, req, streamHandler), nil
	}
	if plainHandler != nil {
		return singleItemStream[Chunk](ctx, def.id, req, plainHandler), nil
	}
	if tr != nil {
		return wireStream[Chunk](ctx, b, tr, def.id, req, cfg.timeout)
	}
	return nil, fmt.Errorf("%w for %s", ErrNoHandler, def.id)
}

func localStream[Chunk any](ctx context.Context, id ID, req any, h streamInvokeHandler) <-chan StreamItem[Chunk] {
	out := make(chan StreamItem[Chunk])
	env := envelope{eventID: id, body: req, timestamp: time.Now()}

	go func() {
		defer close(out)
		send := func(chunk any) error {
			value, err := decodeBody[Chunk](chunk)
			if err != nil {
				return err
			}
			select {
			case out <- StreamItem[Chunk]{Value: value}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := callStreamHandler(ctx, h, env, send); err != nil {
			select {
			case out <- StreamItem[Chunk]{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return out
}

func singleItemStream[Chunk any](ctx context.Context, id ID, req any, h invokeHandler) <-chan StreamItem[Chunk] {
	out := make(chan StreamItem[Chunk], 1)
	env := envelope{eventID: id, body: req, timestamp: time.Now()}

	go func() {
		defer close(out)
		res, err := callHandler(ctx, h, env)
		if err != nil {
			out <- StreamItem[Chunk]{Err: err}
			return
		}
		value, err := decodeBody[Chunk](res)
		if err != nil {
			out <- StreamItem[Chunk]{Err: err}
			return
		}
		out <- StreamItem[Chunk]{Value: value}
	}()
	return out
}

func wireStream[Chunk any](ctx context.Context, b *Bus, tr transport.Adapter, id ID, req any, idleTimeout time.Duration) (<-chan StreamItem[Chunk], error) {
	payload, err := marshalPayload(req)
	if err != nil {
		return nil, fmt.Errorf("eventa: encode request for %s: %w", id, err)
	}

	correlationID := uuid.New().String()
	timeoutErr := fmt.Errorf("%w: %s after %s idle", ErrInvokeTimeout, id, idleTimeout)
	chunks := b.pending.registerStream(id, correlationID, idleTimeout, timeoutErr)

	b.sendWire(tr, wire.NewInvokeRequest(id.String(), correlationID, payload))

	out := make(chan StreamItem[Chunk])
	go func() {
		defer close(out)
		for {
			select {
			case chunk := <-chunks:
				if chunk.end {
					if chunk.err != nil {
						out <- StreamItem[Chunk]{Err: chunk.err}
					}
					return
				}
				value, derr := decodeBody[Chunk](chunk.payload)
				if derr != nil {
					b.pending.endStream(correlationID, derr)
					drainUntilEnd(chunks)
					out <- StreamItem[Chunk]{Err: derr}
					return
				}
				select {
				case out <- StreamItem[Chunk]{Value: value}:
				case <-ctx.Done():
					b.pending.endStream(correlationID, ctx.Err())
					drainUntilEnd(chunks)
					return
				}
			case <-ctx.Done():
				// Cancellation ends the stream; the tracker entry is
				// settled so late chunks are dropped, not leaked.
				b.pending.endStream(correlationID, ctx.Err())
				drainUntilEnd(chunks)
				return
			}
		}
	}()
	return out, nil
}

// drainUntilEnd consumes buffered chunks through the terminating end
// chunk so the producer side can never block on an abandoned stream.
func drainUntilEnd(chunks <-chan streamChunk) {
	for chunk := range chunks {
		if chunk.end {
			return
		}
	}
}

// callStreamHandler invokes a stream handler, converting a panic into
// an error terminating the stream.
func callStreamHandler(ctx context.Context, h streamInvokeHandler, env envelope, send func(any) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("eventa: stream handler for %s panicked: %v", env.eventID, r)
		}
	}()
	return h(ctx, env, send)
}
