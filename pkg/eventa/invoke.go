package eventa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deltaecho/eventa/pkg/eventa/journal"
	"github.com/deltaecho/eventa/pkg/eventa/observability"
	"github.com/deltaecho/eventa/pkg/eventa/transport"
	"github.com/deltaecho/eventa/pkg/eventa/wire"
)

// Handler serves invoke requests for one definition. Handlers may block;
// each invoke call is independent and concurrent invokes on the same
// definition interleave freely.
type Handler[Req, Resp any] func(ctx context.Context, req Req, env Envelope[Req]) (Resp, error)

// invokeHandler is the untyped registry form of a Handler.
type invokeHandler func(ctx context.Context, env envelope) (any, error)

// HandleInvoke registers the handler for an invoke definition. Exactly
// one handler serves an id; registering again replaces the previous
// handler, which is legal and expected during hot reload. Registration
// on a closed bus is a no-op.
func HandleInvoke[Req, Resp any](b *Bus, def InvokeDef[Req, Resp], h Handler[Req, Resp]) {
	raw := func(ctx context.Context, env envelope) (any, error) {
		req, err := decodeBody[Req](env.body)
		if err != nil {
			return nil, err
		}
		return h(ctx, req, Envelope[Req]{
			EventID:       env.eventID,
			Body:          req,
			Timestamp:     env.timestamp,
			CorrelationID: env.correlationID,
		})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.handlers[def.id] = raw
	delete(b.streams, def.id)
}

// Invoke issues a request and blocks until a response, an error, the
// timeout, or ctx cancellation. Resolution order:
//
//  1. A locally registered handler is called directly.
//  2. Otherwise, with a transport attached, the request crosses the
//     wire and the call settles when the matching response arrives.
//  3. Otherwise the call fails with ErrNoHandler, a configuration
//     error the bus never retries.
func Invoke[Req, Resp any](ctx context.Context, b *Bus, def InvokeDef[Req, Resp], req Req, opts ...InvokeOption) (Resp, error) {
	var zero Resp
	out, err := b.invoke(ctx, def.id, req, b.resolveInvokeConfig(opts))
	if err != nil {
		return zero, err
	}
	return decodeBody[Resp](out)
}

func (b *Bus) resolveInvokeConfig(opts []InvokeOption) invokeConfig {
	cfg := invokeConfig{timeout: b.rpcTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (b *Bus) invoke(ctx context.Context, id ID, req any, cfg invokeConfig) (out any, err error) {
	correlationID := uuid.New().String()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	handler := b.handlers[id]
	tr := b.tr
	b.mu.Unlock()

	observability.LogInvokeStart(b.debugLog, id.String(), correlationID, handler != nil)
	elapsed := observability.TimedOperation()
	ctx, span := b.spans.StartInvokeSpan(ctx, id.String(), correlationID)
	defer func() {
		b.spans.EndSpanWithError(span, err)
		b.metrics.RecordInvoke(ctx, id.String(), time.Duration(elapsed())*time.Millisecond, err)
		observability.LogInvokeDone(b.logger, id.String(), correlationID, elapsed(), err)
	}()

	if handler != nil {
		if b.recorder != nil {
			if payload, merr := marshalPayload(req); merr == nil {
				b.record(journal.DirectionLocal, wire.NewInvokeRequest(id.String(), correlationID, payload))
			}
		}
		env := envelope{
			eventID:       id,
			body:          req,
			timestamp:     time.Now(),
			correlationID: correlationID,
		}
		return b.invokeLocal(ctx, handler, env, cfg.timeout)
	}

	if tr != nil {
		return b.invokeOverWire(ctx, tr, id, correlationID, req, cfg.timeout)
	}

	return nil, fmt.Errorf("%w for %s", ErrNoHandler, id)
}

// invokeLocal awaits a local handler under the same timeout discipline
// as a transport round trip, so a handler that never resolves rejects
// the call instead of hanging it. The handler goroutine is not
// cancelled on timeout; there is no cancel-in-flight, only the caller
// stops waiting.
func (b *Bus) invokeLocal(ctx context.Context, h invokeHandler, env envelope, timeout time.Duration) (any, error) {
	type localResult struct {
		out any
		err error
	}
	done := make(chan localResult, 1)
	go func() {
		out, err := callHandler(ctx, h, env)
		done <- localResult{out: out, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.out, res.err
	case <-timer.C:
		b.metrics.RecordTimeout(ctx, env.eventID.String())
		return nil, fmt.Errorf("%w: %s after %s", ErrInvokeTimeout, env.eventID, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *Bus) invokeOverWire(ctx context.Context, tr transport.Adapter, id ID, correlationID string, req any, timeout time.Duration) (any, error) {
	payload, err := marshalPayload(req)
	if err != nil {
		return nil, fmt.Errorf("eventa: encode request for %s: %w", id, err)
	}

	timeoutErr := fmt.Errorf("%w: %s after %s", ErrInvokeTimeout, id, timeout)
	done := b.pending.register(id, correlationID, timeout, timeoutErr)

	b.sendWire(tr, wire.NewInvokeRequest(id.String(), correlationID, payload))

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, ErrInvokeTimeout) {
				b.metrics.RecordTimeout(ctx, id.String())
			}
			return nil, res.err
		}
		return res.payload, nil
	case <-ctx.Done():
		// Cancellation settles the call so the tracker never leaks;
		// a response racing in first wins and is returned instead.
		b.pending.settle(correlationID, pendingResult{err: ctx.Err()})
		res := <-done
		if res.err != nil {
			return nil, res.err
		}
		return res.payload, nil
	}
}

// callHandler invokes a local handler, converting a panic into an error
// so the failure rejects only this call.
func callHandler(ctx context.Context, h invokeHandler, env envelope) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("eventa: handler for %s panicked: %v", env.eventID, r)
		}
	}()
	return h(ctx, env)
}
