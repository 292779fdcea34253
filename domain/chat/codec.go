package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire values for message_type and event_type.
const (
	WireUserMessage   = "USER_MESSAGE"
	WireSystemMessage = "SYSTEM_MESSAGE"
	WireUserJoined    = "USER_JOINED"
	WireUserLeft      = "USER_LEFT"
)

// Codec converts messages to and from transport frames.
type Codec interface {
	Encode(msg Message) ([]byte, error)
	Decode(frame []byte) (Message, error)
}

// WireMessage is the JSON shape exchanged with clients.
type WireMessage struct {
	UserID      string    `json:"user_id,omitempty"`
	Username    string    `json:"username"`
	Message     string    `json:"message"`
	MessageType string    `json:"message_type,omitempty"`
	EventType   string    `json:"event_type,omitempty"`
	SentAt      time.Time `json:"sent_at"`
}

// JSONCodec is the Codec used by the WebSocket transport.
type JSONCodec struct{}

// Encode renders msg as a WireMessage.
func (JSONCodec) Encode(msg Message) ([]byte, error) {
	return json.Marshal(ToWire(msg))
}

// Decode parses a client frame. Only the message body is taken from the
// client; identity and timestamp are stamped by the receiving connection.
func (JSONCodec) Decode(frame []byte) (Message, error) {
	var w WireMessage
	if err := json.Unmarshal(frame, &w); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return FromWire(w)
}

// ToWire converts msg to its wire representation.
func ToWire(msg Message) WireMessage {
	w := WireMessage{
		UserID:      msg.userID,
		Username:    msg.username,
		Message:     msg.body,
		MessageType: WireUserMessage,
		SentAt:      msg.sentAt,
	}
	if msg.kind == KindSystem {
		w.MessageType = WireSystemMessage
	}
	switch msg.event {
	case EventJoined:
		w.EventType = WireUserJoined
	case EventLeft:
		w.EventType = WireUserLeft
	}
	return w
}

// FromWire converts a wire message back into a Message.
func FromWire(w WireMessage) (Message, error) {
	msg := Message{
		userID:   w.UserID,
		username: w.Username,
		body:     w.Message,
		sentAt:   w.SentAt,
	}
	switch w.MessageType {
	case "", WireUserMessage:
		msg.kind = KindUser
	case WireSystemMessage:
		msg.kind = KindSystem
	default:
		return Message{}, fmt.Errorf("%w: unknown message_type %q", ErrMalformedMessage, w.MessageType)
	}
	switch w.EventType {
	case "":
	case WireUserJoined:
		msg.event = EventJoined
	case WireUserLeft:
		msg.event = EventLeft
	default:
		return Message{}, fmt.Errorf("%w: unknown event_type %q", ErrMalformedMessage, w.EventType)
	}
	return msg, nil
}
