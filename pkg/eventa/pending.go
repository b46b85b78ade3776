package eventa

import (
	"encoding/json"
	"sync"
	"time"
)

// pendingResult settles a transport-deferred invoke call.
type pendingResult struct {
	payload json.RawMessage
	err     error
}

// pendingCall is the bookkeeping for one in-flight invoke. Exactly one
// settle wins; the done channel is buffered so the winner never blocks.
type pendingCall struct {
	eventID ID
	done    chan pendingResult
	timer   *time.Timer
}

// streamChunk is one delivery on an in-flight streamed invoke.
type streamChunk struct {
	payload json.RawMessage
	err     error
	end     bool
}

// streamCall is the bookkeeping for one in-flight streamed invoke. The
// timer is an idle timeout, reset to idle on every chunk.
type streamCall struct {
	eventID ID
	chunks  chan streamChunk
	timer   *time.Timer
	idle    time.Duration
}

// pendingTracker maps correlation ids to in-flight calls. The race
// between a response and its timeout is resolved here: whichever
// settles first removes the entry, and the loser finds nothing.
type pendingTracker struct {
	mu      sync.Mutex
	calls   map[string]*pendingCall
	streams map[string]*streamCall
}

func newPendingTracker() *pendingTracker {
	return &pendingTracker{
		calls:   make(map[string]*pendingCall),
		streams: make(map[string]*streamCall),
	}
}

// register tracks a new call. The timer rejects it with timeoutErr if
// nothing settles it first.
//
// The timer is assigned before the call is published into the map, so
// the timeout callback and closeAll always observe a complete call.
func (t *pendingTracker) register(eventID ID, correlationID string, timeout time.Duration, timeoutErr error) <-chan pendingResult {
	call := &pendingCall{
		eventID: eventID,
		done:    make(chan pendingResult, 1),
	}

	t.mu.Lock()
	call.timer = time.AfterFunc(timeout, func() {
		t.settle(correlationID, pendingResult{err: timeoutErr})
	})
	t.calls[correlationID] = call
	t.mu.Unlock()

	return call.done
}

// settle resolves or rejects a call. Returns false when the correlation
// id is unknown (the call already settled or never existed), in which
// case the result is dropped.
func (t *pendingTracker) settle(correlationID string, res pendingResult) bool {
	t.mu.Lock()
	call, ok := t.calls[correlationID]
	if ok {
		delete(t.calls, correlationID)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	if call.timer != nil {
		call.timer.Stop()
	}
	call.done <- res
	return true
}

// registerStream tracks a new streamed call with an idle timeout. As in
// register, the timer is assigned before the call is published.
func (t *pendingTracker) registerStream(eventID ID, correlationID string, idleTimeout time.Duration, timeoutErr error) <-chan streamChunk {
	call := &streamCall{
		eventID: eventID,
		chunks:  make(chan streamChunk, 64),
		idle:    idleTimeout,
	}

	t.mu.Lock()
	call.timer = time.AfterFunc(idleTimeout, func() {
		t.endStream(correlationID, timeoutErr)
	})
	t.streams[correlationID] = call
	t.mu.Unlock()

	return call.chunks
}

// streamData delivers one chunk and resets the idle timer to the call's
// configured idle timeout.
func (t *pendingTracker) streamData(correlationID string, payload json.RawMessage) bool {
	t.mu.Lock()
	call, ok := t.streams[correlationID]
	if ok && call.timer != nil {
		call.timer.Reset(call.idle)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	call.chunks <- streamChunk{payload: payload}
	return true
}

// endStream terminates a streamed call, with err carrying the failure
// for streams that did not end cleanly.
func (t *pendingTracker) endStream(correlationID string, err error) bool {
	t.mu.Lock()
	call, ok := t.streams[correlationID]
	if ok {
		delete(t.streams, correlationID)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	if call.timer != nil {
		call.timer.Stop()
	}
	call.chunks <- streamChunk{err: err, end: true}
	return true
}

// settleAny routes an invoke-response to either call kind: a streamed
// call answered with a single response receives it as one chunk.
func (t *pendingTracker) settleAny(correlationID string, res pendingResult) bool {
	if t.settle(correlationID, res) {
		return true
	}

	t.mu.Lock()
	_, isStream := t.streams[correlationID]
	t.mu.Unlock()
	if !isStream {
		return false
	}
	if res.err == nil && res.payload != nil {
		t.streamData(correlationID, res.payload)
	}
	return t.endStream(correlationID, res.err)
}

// closeAll rejects every still-pending call and returns how many were
// rejected. No pending call is silently forgotten.
func (t *pendingTracker) closeAll(err error) int {
	t.mu.Lock()
	calls := t.calls
	streams := t.streams
	t.calls = make(map[string]*pendingCall)
	t.streams = make(map[string]*streamCall)
	t.mu.Unlock()

	for _, call := range calls {
		if call.timer != nil {
			call.timer.Stop()
		}
		call.done <- pendingResult{err: err}
	}
	for _, call := range streams {
		if call.timer != nil {
			call.timer.Stop()
		}
		call.chunks <- streamChunk{err: err, end: true}
	}
	return len(calls) + len(streams)
}
