package ws

import (
	"encoding/json"
)

// Client-to-server and server-to-client event names.
const (
	EventJoinConversation = "join_conversation"
	EventSendMessage      = "send_message"
	EventNewMessage       = "new_message"
	EventTyping           = "typing"
	EventError            = "error"
)

// Envelope is the wire format for every realtime event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinPayload is the payload of a join_conversation event.
type JoinPayload struct {
	ConversationID string `json:"conversation_id"`
}

// SendMessagePayload is the payload of a client send_message event.
type SendMessagePayload struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
	Type           string `json:"type,omitempty"`
}

// TypingPayload is the payload of a typing event, relayed verbatim to the room.
type TypingPayload struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id,omitempty"`
}

// ErrorPayload is the payload of a server error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// marshalEvent builds a wire frame for the given event and payload.
func marshalEvent(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
