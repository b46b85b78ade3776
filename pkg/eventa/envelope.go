package eventa

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope wraps a payload with its delivery metadata. Listeners and
// handlers receive the envelope alongside the decoded payload.
type Envelope[T any] struct {
	// EventID is the channel the payload was emitted or invoked on.
	EventID ID

	// Body is the payload.
	Body T

	// Timestamp is the instant of emission or invocation.
	Timestamp time.Time

	// CorrelationID pairs an invoke request with its response.
	// Empty for plain event traffic.
	CorrelationID string
}

// envelope is the untyped internal form used by the registry and the
// transport bridge. Body holds either the original typed value (local
// dispatch) or json.RawMessage (traffic that crossed a transport); the
// typed wrappers installed by On, Once and HandleInvoke decode it.
type envelope struct {
	eventID       ID
	body          any
	timestamp     time.Time
	correlationID string
}

// marshalPayload serializes an envelope body for the wire, passing
// through bodies that already crossed a transport.
func marshalPayload(body any) (json.RawMessage, error) {
	if raw, ok := body.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// decodeBody recovers a typed payload from an untyped envelope body.
// Local traffic hits the direct type assertion; wire traffic arrives as
// json.RawMessage; anything else goes through a marshal round trip.
func decodeBody[T any](body any) (T, error) {
	var out T
	switch v := body.(type) {
	case nil:
		return out, nil
	case T:
		return v, nil
	case json.RawMessage:
		if err := json.Unmarshal(v, &out); err != nil {
			return out, fmt.Errorf("eventa: decode payload: %w", err)
		}
		return out, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return out, fmt.Errorf("eventa: re-encode payload: %w", err)
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return out, fmt.Errorf("eventa: decode payload: %w", err)
		}
		return out, nil
	}
}
