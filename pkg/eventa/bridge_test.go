package eventa_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deltaecho/eventa/pkg/eventa"
	"github.com/deltaecho/eventa/pkg/eventa/transport"
	"github.com/deltaecho/eventa/pkg/eventa/wire"
)

func TestBridge_EventCrossesTransport(t *testing.T) {
	busA, busB := connectedPair(t)

	type greeting struct {
		Name string `json:"name"`
	}
	evt := eventa.DefineEvent[greeting]("t:greeting")

	var got greeting
	eventa.On(busB, evt, func(_ context.Context, env eventa.Envelope[greeting]) error {
		got = env.Body
		return nil
	})

	require.NoError(t, eventa.Emit(context.Background(), busA, evt, greeting{Name: "ada"}))
	assert.Equal(t, "ada", got.Name)
}

func TestBridge_EventDeliveredOnBothSides(t *testing.T) {
	busA, busB := connectedPair(t)

	evt := eventa.DefineEvent[int]("t:both-sides")
	var localHits, remoteHits int
	eventa.On(busA, evt, func(_ context.Context, _ eventa.Envelope[int]) error {
		localHits++
		return nil
	})
	eventa.On(busB, evt, func(_ context.Context, _ eventa.Envelope[int]) error {
		remoteHits++
		return nil
	})

	require.NoError(t, eventa.Emit(context.Background(), busA, evt, 1))
	assert.Equal(t, 1, localHits)
	assert.Equal(t, 1, remoteHits)
}

func TestBridge_IncomingEventDoesNotEcho(t *testing.T) {
	end, peer := transport.Pair()
	bus := eventa.New(eventa.WithTransport(end))
	defer bus.Close()

	var mu sync.Mutex
	var echoed []wire.Message
	peer.OnMessage(func(msg wire.Message) {
		mu.Lock()
		echoed = append(echoed, msg)
		mu.Unlock()
	})

	evt := eventa.DefineEvent[int]("t:no-echo")
	var fired int
	eventa.On(bus, evt, func(_ context.Context, _ eventa.Envelope[int]) error {
		fired++
		return nil
	})

	require.NoError(t, peer.Send(wire.NewEvent("t:no-echo", []byte(`9`))))

	assert.Equal(t, 1, fired, "incoming wire event must dispatch locally")
	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, echoed, "incoming wire event must not be forwarded back out")
}

func TestBridge_MalformedMessagesDropped(t *testing.T) {
	end, peer := transport.Pair()
	bus := eventa.New(eventa.WithTransport(end))
	defer bus.Close()

	evt := eventa.DefineEvent[int]("t:validate")
	var fired int
	eventa.On(bus, evt, func(_ context.Context, _ eventa.Envelope[int]) error {
		fired++
		return nil
	})

	// Event carrying a correlation id violates the wire contract.
	require.NoError(t, peer.Send(wire.Message{
		Type:          wire.TypeEvent,
		EventID:       "t:validate",
		CorrelationID: "bogus",
		Timestamp:     time.Now().UnixMilli(),
	}))
	// Unknown type.
	require.NoError(t, peer.Send(wire.Message{
		Type:      wire.Type("telemetry"),
		EventID:   "t:validate",
		Timestamp: time.Now().UnixMilli(),
	}))
	// Missing event id.
	require.NoError(t, peer.Send(wire.Message{
		Type:      wire.TypeEvent,
		Timestamp: time.Now().UnixMilli(),
	}))

	assert.Zero(t, fired, "malformed messages must not dispatch")
}

func TestBridge_WireInvokeUsesRequestCorrelationID(t *testing.T) {
	end, peer := transport.Pair()
	bus := eventa.New(eventa.WithTransport(end))
	defer bus.Close()

	op := eventa.DefineInvoke[int, int]("t:serve")
	eventa.HandleInvoke(bus, op, func(_ context.Context, req int, _ eventa.Envelope[int]) (int, error) {
		return req + 1, nil
	})

	var mu sync.Mutex
	var replies []wire.Message
	peer.OnMessage(func(msg wire.Message) {
		mu.Lock()
		replies = append(replies, msg)
		mu.Unlock()
	})

	require.NoError(t, peer.Send(wire.NewInvokeRequest("t:serve", "corr-123", []byte(`4`))))

	// Requests are served asynchronously; wait for the reply.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(replies) == 1
	}, 5*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, wire.TypeInvokeResponse, replies[0].Type)
	assert.Equal(t, "corr-123", replies[0].CorrelationID)
	assert.JSONEq(t, `5`, string(replies[0].Payload))
}

func TestBridge_WireInvokeErrorPayload(t *testing.T) {
	end, peer := transport.Pair()
	bus := eventa.New(eventa.WithTransport(end))
	defer bus.Close()

	var mu sync.Mutex
	var replies []wire.Message
	peer.OnMessage(func(msg wire.Message) {
		mu.Lock()
		replies = append(replies, msg)
		mu.Unlock()
	})

	// No handler registered at all.
	require.NoError(t, peer.Send(wire.NewInvokeRequest("t:unserved", "corr-404", []byte(`1`))))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(replies) == 1
	}, 5*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, wire.TypeInvokeError, replies[0].Type)
	assert.Equal(t, "corr-404", replies[0].CorrelationID)
	assert.Contains(t, wire.DecodeErrorPayload(replies[0].Payload), "no handler")
}

func TestBridge_UnknownCorrelationResponseIgnored(t *testing.T) {
	end, peer := transport.Pair()
	bus := eventa.New(eventa.WithTransport(end))
	defer bus.Close()

	require.NoError(t, peer.Send(wire.NewInvokeResponse("t:ghost", "never-issued", []byte(`1`))))
	require.NoError(t, peer.Send(wire.NewInvokeError("t:ghost", "never-issued", assert.AnError)))

	// Bus stays healthy.
	op := eventa.DefineInvoke[int, int]("t:alive")
	eventa.HandleInvoke(bus, op, func(_ context.Context, req int, _ eventa.Envelope[int]) (int, error) {
		return req, nil
	})
	out, err := eventa.Invoke(context.Background(), bus, op, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, out)
}
