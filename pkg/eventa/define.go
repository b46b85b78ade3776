package eventa

import "github.com/google/uuid"

// ID is the identity of one channel of communication. It is a distinct
// type rather than a bare string so arbitrary strings cannot be passed
// where a channel identity is expected, while staying trivially
// serializable (equality and hashing are by the underlying string).
type ID struct {
	value string
}

// String returns the underlying identity string.
func (id ID) String() string {
	return id.value
}

// IsZero reports whether the id is the zero value.
func (id ID) IsZero() bool {
	return id.value == ""
}

// ParseID wraps a wire-level identity string. It is the inverse of
// String and exists for transports and tooling; calling code normally
// holds ids only through definitions.
func ParseID(s string) ID {
	return ID{value: s}
}

// EventDef declares a fire-and-forget channel carrying payload type T.
// The payload type is a compile-time annotation only; a definition
// carries no runtime value beyond its id. Definitions are immutable and
// safe to declare as package-level variables.
type EventDef[T any] struct {
	id ID
}

// ID returns the definition's channel identity.
func (d EventDef[T]) ID() ID {
	return d.id
}

// InvokeDef declares a request/response channel with request type Req
// and response type Resp. For streamed invokes, Resp is the chunk type.
type InvokeDef[Req, Resp any] struct {
	id ID
}

// ID returns the definition's channel identity.
func (d InvokeDef[Req, Resp]) ID() ID {
	return d.id
}

// DefineEvent mints an event definition.
//
// With no name, the id is a fresh unique token: two unnamed definitions
// are never equal, even with identical type parameters. With an explicit
// name, the id is the name verbatim; this is how independently compiled
// modules agree on a wire-level channel without sharing references.
func DefineEvent[T any](name ...string) EventDef[T] {
	return EventDef[T]{id: newID(name)}
}

// DefineInvoke mints an invoke definition. Naming rules match DefineEvent.
func DefineInvoke[Req, Resp any](name ...string) InvokeDef[Req, Resp] {
	return InvokeDef[Req, Resp]{id: newID(name)}
}

func newID(name []string) ID {
	if len(name) > 0 && name[0] != "" {
		return ID{value: name[0]}
	}
	return ID{value: "eventa:" + uuid.New().String()}
}
