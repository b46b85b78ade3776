// Package wire defines the serializable message format exchanged between
// bus instances when a transport is attached.
//
// The format is deliberately small and JSON-shaped so that any transport
// able to carry bytes (sockets, WebSockets, NATS, an in-process pipe) can
// carry bus traffic. Field names are part of the cross-process contract
// and must not change.
package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type discriminates how the receiving bus interprets a message payload.
type Type string

// Wire message types.
const (
	// TypeEvent is a fire-and-forget notification. No correlation id.
	TypeEvent Type = "event"

	// TypeInvokeRequest asks the remote side to run a handler and reply.
	TypeInvokeRequest Type = "invoke-request"

	// TypeInvokeResponse carries a successful handler result back.
	TypeInvokeResponse Type = "invoke-response"

	// TypeInvokeError carries a handler failure back.
	TypeInvokeError Type = "invoke-error"

	// TypeStreamData carries one chunk of a streamed invoke reply.
	TypeStreamData Type = "stream-data"

	// TypeStreamEnd terminates a streamed invoke reply.
	TypeStreamEnd Type = "stream-end"
)

// Valid reports whether t is a known wire message type.
func (t Type) Valid() bool {
	switch t {
	case TypeEvent, TypeInvokeRequest, TypeInvokeResponse, TypeInvokeError,
		TypeStreamData, TypeStreamEnd:
		return true
	}
	return false
}

// Message is the unit of cross-boundary communication.
//
// Timestamp is integer milliseconds since the Unix epoch, matching the
// wire contract rather than Go's native time encoding.
type Message struct {
	Type          Type            `json:"type"`
	EventID       string          `json:"eventId"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Timestamp     int64           `json:"timestamp"`
}

// Time returns the message timestamp as a time.Time.
func (m Message) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Validate checks structural invariants: a known type, a non-empty event
// id, and a correlation id present exactly when the type requires one.
func (m Message) Validate() error {
	if !m.Type.Valid() {
		return fmt.Errorf("wire: unknown message type %q", m.Type)
	}
	if m.EventID == "" {
		return fmt.Errorf("wire: %s message missing event id", m.Type)
	}
	if m.Type == TypeEvent {
		if m.CorrelationID != "" {
			return fmt.Errorf("wire: event message carries correlation id %q", m.CorrelationID)
		}
		return nil
	}
	if m.CorrelationID == "" {
		return fmt.Errorf("wire: %s message missing correlation id", m.Type)
	}
	return nil
}

// Encode serializes the message to its JSON wire form.
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("wire: encode %s: %w", m.Type, err)
	}
	return data, nil
}

// Decode parses and validates a message from its JSON wire form.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("wire: decode: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// NewEvent builds an event message stamped with the current time.
func NewEvent(eventID string, payload json.RawMessage) Message {
	return Message{
		Type:      TypeEvent,
		EventID:   eventID,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewInvokeRequest builds an invoke-request message.
func NewInvokeRequest(eventID, correlationID string, payload json.RawMessage) Message {
	return Message{
		Type:          TypeInvokeRequest,
		EventID:       eventID,
		CorrelationID: correlationID,
		Payload:       payload,
		Timestamp:     time.Now().UnixMilli(),
	}
}

// NewInvokeResponse builds an invoke-response message answering the
// request with the given correlation id.
func NewInvokeResponse(eventID, correlationID string, payload json.RawMessage) Message {
	return Message{
		Type:          TypeInvokeResponse,
		EventID:       eventID,
		CorrelationID: correlationID,
		Payload:       payload,
		Timestamp:     time.Now().UnixMilli(),
	}
}

// NewInvokeError builds an invoke-error message carrying err's text.
func NewInvokeError(eventID, correlationID string, err error) Message {
	payload, _ := json.Marshal(ErrorPayload{Message: err.Error()})
	return Message{
		Type:          TypeInvokeError,
		EventID:       eventID,
		CorrelationID: correlationID,
		Payload:       payload,
		Timestamp:     time.Now().UnixMilli(),
	}
}

// NewStreamData builds a stream-data message carrying one reply chunk.
func NewStreamData(eventID, correlationID string, payload json.RawMessage) Message {
	return Message{
		Type:          TypeStreamData,
		EventID:       eventID,
		CorrelationID: correlationID,
		Payload:       payload,
		Timestamp:     time.Now().UnixMilli(),
	}
}

// NewStreamEnd builds a stream-end message. A non-nil err marks the
// stream as failed and carries the error text in the payload.
func NewStreamEnd(eventID, correlationID string, err error) Message {
	m := Message{
		Type:          TypeStreamEnd,
		EventID:       eventID,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UnixMilli(),
	}
	if err != nil {
		m.Payload, _ = json.Marshal(ErrorPayload{Message: err.Error()})
	}
	return m
}

// ErrorPayload is the payload carried by invoke-error messages and by
// stream-end messages that terminate a failed stream.
type ErrorPayload struct {
	Message string `json:"message"`
}

// DecodeErrorPayload extracts the error text from an invoke-error or
// failed stream-end payload. A payload that does not parse falls back
// to the raw text so the error is never silently lost.
func DecodeErrorPayload(payload json.RawMessage) string {
	var ep ErrorPayload
	if err := json.Unmarshal(payload, &ep); err == nil && ep.Message != "" {
		return ep.Message
	}
	return string(payload)
}
