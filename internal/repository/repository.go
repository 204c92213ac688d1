package repository

import (
	"context"

	"github.com/Azaz-Gori07/ChatApp/internal/domain"
	"github.com/Azaz-Gori07/ChatApp/pkg/pagination"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update modifies an existing user in the store.
	Update(ctx context.Context, user *domain.User) error

	// List returns a page of users, newest first, with the total count.
	List(ctx context.Context, params pagination.Params) ([]domain.User, int, error)

	// Search returns users whose name contains q, case-insensitive.
	Search(ctx context.Context, q string, params pagination.Params) ([]domain.User, int, error)
}

// ConversationRepository defines the interface for conversation persistence operations.
type ConversationRepository interface {
	// CreateDirect inserts a direct conversation with its two members in one
	// transaction. Returns ErrAlreadyExists if a direct conversation for the
	// pair already exists.
	CreateDirect(ctx context.Context, conv *domain.Conversation, userA, userB string) error

	// CreateGroup inserts a group conversation with its members in one transaction.
	CreateGroup(ctx context.Context, conv *domain.Conversation, memberIDs []string) error

	// GetByID retrieves a conversation by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)

	// GetDirectByPairKey retrieves the direct conversation for a sorted member
	// pair key, or ErrNotFound if none exists.
	GetDirectByPairKey(ctx context.Context, pairKey string) (*domain.Conversation, error)

	// ListByUserID returns all conversations the user is a member of,
	// most recently updated first, with member profiles resolved.
	ListByUserID(ctx context.Context, userID string) ([]domain.Conversation, error)

	// ListMemberIDs returns the user IDs of all members of the conversation.
	ListMemberIDs(ctx context.Context, conversationID string) ([]string, error)

	// IsMember reports whether the user is a member of the conversation.
	IsMember(ctx context.Context, conversationID, userID string) (bool, error)

	// AddMember adds a user to the conversation. Adding an existing member is a no-op.
	AddMember(ctx context.Context, conversationID, userID string) error

	// RemoveMember removes a user from the conversation.
	RemoveMember(ctx context.Context, conversationID, userID string) error

	// Rename updates the conversation name.
	Rename(ctx context.Context, conversationID, name string) error

	// ResetUnread sets the conversation's unread counter to zero.
	ResetUnread(ctx context.Context, conversationID string) error
}

// MessageRepository defines the interface for message persistence operations.
type MessageRepository interface {
	// Create inserts the message and updates the parent conversation's
	// last-message preview, updated_at, and unread counter in one transaction.
	Create(ctx context.Context, msg *domain.Message) error

	// ListByConversation returns a page of messages in ascending created_at
	// order, with sender profiles resolved, and the total message count.
	ListByConversation(ctx context.Context, conversationID string, params pagination.Params) ([]domain.Message, int, error)
}
