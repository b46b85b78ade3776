/*
Package eventa provides a typed, process-local event/invoke bus with an
optional transport for crossing process boundaries.

# Overview

The bus carries two kinds of traffic. Events are fire-and-forget
notifications fanned out to every subscribed listener. Invokes are
request/response exchanges correlated by a unique id, answered by a
local handler or, when a transport is attached, by a remote bus.

Definitions declare channels once, typically at package level:

	var UserJoined = eventa.DefineEvent[User]("chat:user-joined")
	var Square = eventa.DefineInvoke[int, int]("calc:square")

A Bus is one independent universe of subscriptions, handlers, and
pending calls. Buses never share state; two buses talk only through a
transport.

	bus := eventa.New(eventa.WithRPCTimeout(5 * time.Second))
	defer bus.Close()

	sub := eventa.On(bus, UserJoined, func(ctx context.Context, env eventa.Envelope[User]) error {
	    fmt.Println("joined:", env.Body.Name)
	    return nil
	})
	defer sub.Unsubscribe()

	eventa.Emit(ctx, bus, UserJoined, User{Name: "ada"})

	eventa.HandleInvoke(bus, Square, func(ctx context.Context, n int, _ eventa.Envelope[int]) (int, error) {
	    return n * n, nil
	})
	n, err := eventa.Invoke(ctx, bus, Square, 5) // 25

# Delivery semantics

Emit delivers synchronously in registration order over a snapshot of
the listener list, so listeners may subscribe, unsubscribe, and emit
reentrantly without corrupting the in-progress dispatch. One listener's
error or panic never stops later listeners; Emit returns the joined
errors once every listener has run.

Invoke resolves against a local handler first, then the transport, and
otherwise fails fast with ErrNoHandler. Transport-deferred calls are
tracked by correlation id and settle on the matching response, on
timeout, or on bus close; whichever comes first wins and the loser is
a no-op.

# Transports

A transport carries wire messages (package wire) between two buses. The
in-process reference implementation is transport.Pair; package
transport/natstransport bridges buses over NATS. The bus is fully
functional without a transport.
*/
package eventa
