package ws

import (
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/runtime"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeInbound_ObjectPayload(t *testing.T) {
	req := require.New(t)

	in, err := DecodeInbound([]byte(`{"event":"message:private","data":{"recipientId":"bob-id","text":"psst"}}`))

	req.NoError(err)
	req.Equal(runtime.EventPrivateMessage, in.Name)
	req.Equal("bob-id", in.RecipientID)
	req.Equal("psst", in.Text)
}

func TestDecodeInbound_BareStringPayload(t *testing.T) {
	req := require.New(t)

	// Plain broadcast messages may carry the text directly as the data.
	in, err := DecodeInbound([]byte(`{"event":"message","data":"hello"}`))

	req.NoError(err)
	req.Equal(runtime.EventMessage, in.Name)
	req.Equal("hello", in.Text)
}

func TestDecodeInbound_MissingData(t *testing.T) {
	req := require.New(t)

	in, err := DecodeInbound([]byte(`{"event":"typing:start"}`))

	req.NoError(err)
	req.Equal(runtime.EventTypingStart, in.Name)
	req.Empty(in.Text)
	req.Empty(in.RecipientID)
}

func TestDecodeInbound_MalformedFrame(t *testing.T) {
	req := require.New(t)

	_, err := DecodeInbound([]byte(`not json`))
	req.Error(err)

	_, err = DecodeInbound([]byte(`{"event":"message","data":42}`))
	req.Error(err)
}

func TestEncodeEvent_WrapsNameAndPayload(t *testing.T) {
	req := require.New(t)

	raw, err := EncodeEvent(event.UserJoined{
		User:      domain.Session{ID: "alice-id", Name: "alice", Status: domain.StatusOnline},
		UserCount: 3,
	})
	req.NoError(err)

	var frame Frame
	req.NoError(json.Unmarshal(raw, &frame))
	req.Equal("user:joined", frame.Event)

	var decoded event.UserJoined
	req.NoError(json.Unmarshal(frame.Data, &decoded))
	req.Equal("alice", decoded.User.Name)
	req.Equal(3, decoded.UserCount)
}
