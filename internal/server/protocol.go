package server

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/dshills/padstorm/internal/input/event"
	"github.com/dshills/padstorm/internal/input/mode"
)

// MessageType identifies a WebSocket message.
type MessageType string

const (
	// Client -> Server
	MsgSample  MessageType = "sample"
	MsgReset   MessageType = "reset"
	MsgContext MessageType = "context"
	MsgNeutral MessageType = "neutral"

	// Server -> Client
	MsgHello  MessageType = "hello"
	MsgEvents MessageType = "events"
	MsgState  MessageType = "state"
	MsgError  MessageType = "error"
)

// Message is the WebSocket message envelope.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HelloPayload is sent once after the upgrade.
type HelloPayload struct {
	ClientID uuid.UUID  `json:"client_id"`
	State    mode.State `json:"state"`
}

// EventsPayload carries the events of one tick.
type EventsPayload struct {
	Tick   uint64        `json:"tick"`
	State  mode.State    `json:"state"`
	Events []event.Event `json:"events"`
}

// StatePayload reports the current input state.
type StatePayload struct {
	State mode.State `json:"state"`
}

// ContextPayload sets an external context value.
type ContextPayload struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ErrorPayload reports a rejected message.
type ErrorPayload struct {
	Error string `json:"error"`
}

func encode(t MessageType, v any) ([]byte, error) {
	msg := Message{Type: t}
	if v != nil {
		payload, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		msg.Payload = payload
	}
	return json.Marshal(msg)
}
