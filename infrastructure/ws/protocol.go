// Package ws is the transport boundary of the coordinator: it upgrades
// HTTP connections to websockets, decodes inbound frames into router
// events and writes outbound domain events back as frames.
package ws

import (
	"chat-hub/domain/event"
	"chat-hub/runtime"
	"encoding/json"
)

// Frame is the wire envelope of every websocket message in both
// directions: {"event": "...", "data": ...}.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// inboundPayload is the union of fields inbound events may carry.
type inboundPayload struct {
	Text        string `json:"text,omitempty"`
	RecipientID string `json:"recipientId,omitempty"`
	MessageID   string `json:"messageId,omitempty"`
}

// DecodeInbound parses one inbound frame. The data field is either an
// object or, for plain broadcast messages, a bare JSON string.
func DecodeInbound(raw []byte) (runtime.Inbound, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return runtime.Inbound{}, err
	}

	in := runtime.Inbound{Name: frame.Event}
	if len(frame.Data) == 0 {
		return in, nil
	}

	var payload inboundPayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		var text string
		if err := json.Unmarshal(frame.Data, &text); err != nil {
			return runtime.Inbound{}, err
		}
		in.Text = text
		return in, nil
	}

	in.Text = payload.Text
	in.RecipientID = payload.RecipientID
	in.MessageID = payload.MessageID
	return in, nil
}

// EncodeEvent wraps an outbound domain event into its wire frame.
func EncodeEvent(e event.DomainEvent) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: e.Name(), Data: e})
}
