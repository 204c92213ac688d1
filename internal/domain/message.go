package domain

import (
	"time"
)

// Message content types.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// Message represents a single message in a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"created_at"`

	// Sender is populated on reads that resolve the sender profile.
	Sender *PublicProfile `json:"sender,omitempty"`
}

// ValidMessageType reports whether t is a supported message content type.
func ValidMessageType(t string) bool {
	return t == MessageTypeText || t == MessageTypeImage
}
