package wire_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deltaecho/eventa/pkg/eventa/wire"
)

func TestMessage_FieldNames(t *testing.T) {
	msg := wire.NewInvokeRequest("chat:send", "corr-1", json.RawMessage(`{"n":5}`))

	data, err := wire.Encode(msg)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	// Field names are the cross-process contract.
	assert.Equal(t, "invoke-request", raw["type"])
	assert.Equal(t, "chat:send", raw["eventId"])
	assert.Equal(t, "corr-1", raw["correlationId"])
	assert.Contains(t, raw, "payload")
	assert.Contains(t, raw, "timestamp")
}

func TestMessage_TimestampMillis(t *testing.T) {
	before := time.Now().UnixMilli()
	msg := wire.NewEvent("tick", nil)
	after := time.Now().UnixMilli()

	assert.GreaterOrEqual(t, msg.Timestamp, before)
	assert.LessOrEqual(t, msg.Timestamp, after)
	assert.WithinDuration(t, time.Now(), msg.Time(), time.Second)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     wire.Message
		wantErr bool
	}{
		{
			name: "event without correlation id",
			msg:  wire.Message{Type: wire.TypeEvent, EventID: "e"},
		},
		{
			name:    "event with correlation id",
			msg:     wire.Message{Type: wire.TypeEvent, EventID: "e", CorrelationID: "c"},
			wantErr: true,
		},
		{
			name: "request with correlation id",
			msg:  wire.Message{Type: wire.TypeInvokeRequest, EventID: "e", CorrelationID: "c"},
		},
		{
			name:    "request missing correlation id",
			msg:     wire.Message{Type: wire.TypeInvokeRequest, EventID: "e"},
			wantErr: true,
		},
		{
			name:    "missing event id",
			msg:     wire.Message{Type: wire.TypeEvent},
			wantErr: true,
		},
		{
			name:    "unknown type",
			msg:     wire.Message{Type: "bogus", EventID: "e"},
			wantErr: true,
		},
		{
			name: "stream end with correlation id",
			msg:  wire.Message{Type: wire.TypeStreamEnd, EventID: "e", CorrelationID: "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDecode_RejectsInvalid(t *testing.T) {
	_, err := wire.Decode([]byte(`{"type":"invoke-response","eventId":"e"}`))
	assert.Error(t, err)

	_, err = wire.Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecode_RoundTrip(t *testing.T) {
	in := wire.NewInvokeResponse("calc:square", "corr-9", json.RawMessage(`25`))

	data, err := wire.Encode(in)
	require.NoError(t, err)

	out, err := wire.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in.Type, out.Type)
	assert.Equal(t, in.EventID, out.EventID)
	assert.Equal(t, in.CorrelationID, out.CorrelationID)
	assert.JSONEq(t, `25`, string(out.Payload))
}

func TestErrorPayload(t *testing.T) {
	msg := wire.NewInvokeError("calc:square", "corr-1", errors.New("division by zero"))
	assert.Equal(t, "division by zero", wire.DecodeErrorPayload(msg.Payload))

	// Unparseable payloads fall back to the raw text.
	assert.Equal(t, "garbage", wire.DecodeErrorPayload(json.RawMessage("garbage")))
}

func TestNewStreamEnd(t *testing.T) {
	ok := wire.NewStreamEnd("feed", "corr-2", nil)
	assert.Empty(t, ok.Payload)
	require.NoError(t, ok.Validate())

	failed := wire.NewStreamEnd("feed", "corr-3", errors.New("upstream gone"))
	assert.Equal(t, "upstream gone", wire.DecodeErrorPayload(failed.Payload))
}
