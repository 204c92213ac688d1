package domain

import (
	"sort"
	"strings"
	"time"
)

// Conversation represents a direct or group conversation.
type Conversation struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	IsGroup     bool      `json:"is_group"`
	LastMessage string    `json:"last_message,omitempty"`
	UnreadCount int       `json:"unread_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Members is populated on reads that resolve member profiles.
	Members []PublicProfile `json:"members,omitempty"`
}

// Member represents a user's membership in a conversation.
type Member struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	JoinedAt       time.Time `json:"joined_at"`
}

// DirectPairKey returns the canonical key for a direct conversation between
// two users: the IDs sorted and joined. The same pair always produces the same
// key regardless of argument order, which backs the unique index preventing
// duplicate direct conversations.
func DirectPairKey(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}
