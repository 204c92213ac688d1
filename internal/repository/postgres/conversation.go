package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Azaz-Gori07/ChatApp/internal/domain"
	apperrors "github.com/Azaz-Gori07/ChatApp/pkg/errors"
)

// ConversationRepository implements repository.ConversationRepository using PostgreSQL.
type ConversationRepository struct {
	db DB
}

// NewConversationRepository creates a new PostgreSQL-backed conversation repository.
func NewConversationRepository(db DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const conversationColumns = `id, name, is_group, last_message, unread_count, created_at, updated_at`

// CreateDirect inserts a direct conversation and its two members in one
// transaction. The direct_pair_key unique index rejects a second conversation
// for the same pair, which closes the lookup-then-create race.
func (r *ConversationRepository) CreateDirect(ctx context.Context, conv *domain.Conversation, userA, userB string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO conversations (id, name, is_group, last_message, unread_count, direct_pair_key, created_at, updated_at)
		 VALUES ($1, $2, false, '', 0, $3, $4, $5)`,
		conv.ID, conv.Name, domain.DirectPairKey(userA, userB), conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadyExists
		}
		return fmt.Errorf("insert conversation: %w", err)
	}

	for _, userID := range []string{userA, userB} {
		_, err = tx.Exec(ctx,
			`INSERT INTO conversation_members (conversation_id, user_id, joined_at) VALUES ($1, $2, $3)`,
			conv.ID, userID, conv.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert conversation member: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// CreateGroup inserts a group conversation and its members in one transaction.
func (r *ConversationRepository) CreateGroup(ctx context.Context, conv *domain.Conversation, memberIDs []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO conversations (id, name, is_group, last_message, unread_count, created_at, updated_at)
		 VALUES ($1, $2, true, '', 0, $3, $4)`,
		conv.ID, conv.Name, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}

	for _, userID := range memberIDs {
		_, err = tx.Exec(ctx,
			`INSERT INTO conversation_members (conversation_id, user_id, joined_at)
			 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			conv.ID, userID, conv.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert conversation member: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a conversation by its ID.
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`
	return r.scanConversation(ctx, query, id)
}

// GetDirectByPairKey retrieves the direct conversation for a sorted member pair key.
func (r *ConversationRepository) GetDirectByPairKey(ctx context.Context, pairKey string) (*domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE direct_pair_key = $1 AND is_group = false`
	return r.scanConversation(ctx, query, pairKey)
}

// ListByUserID returns all conversations the user belongs to, most recently
// updated first, with member profiles resolved.
func (r *ConversationRepository) ListByUserID(ctx context.Context, userID string) ([]domain.Conversation, error) {
	query := `
		SELECT c.id, c.name, c.is_group, c.last_message, c.unread_count, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_members cm ON cm.conversation_id = c.id
		WHERE cm.user_id = $1
		ORDER BY c.updated_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.IsGroup,
			&c.LastMessage,
			&c.UnreadCount,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}

	for i := range conversations {
		members, err := r.listMembers(ctx, conversations[i].ID)
		if err != nil {
			return nil, err
		}
		conversations[i].Members = members
	}

	if conversations == nil {
		conversations = []domain.Conversation{}
	}

	return conversations, nil
}

// ListMemberIDs returns the user IDs of all members of the conversation.
func (r *ConversationRepository) ListMemberIDs(ctx context.Context, conversationID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id FROM conversation_members WHERE conversation_id = $1`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list member ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member ids: %w", err)
	}

	return ids, nil
}

// IsMember reports whether the user is a member of the conversation.
func (r *ConversationRepository) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM conversation_members WHERE conversation_id = $1 AND user_id = $2)`,
		conversationID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

// AddMember adds a user to the conversation. Adding an existing member is a no-op.
func (r *ConversationRepository) AddMember(ctx context.Context, conversationID, userID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO conversation_members (conversation_id, user_id, joined_at)
		 VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		conversationID, userID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("add conversation member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from the conversation.
func (r *ConversationRepository) RemoveMember(ctx context.Context, conversationID, userID string) error {
	ct, err := r.db.Exec(ctx,
		`DELETE FROM conversation_members WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove conversation member: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("member", userID)
	}
	return nil
}

// Rename updates the conversation name.
func (r *ConversationRepository) Rename(ctx context.Context, conversationID, name string) error {
	ct, err := r.db.Exec(ctx,
		`UPDATE conversations SET name = $1, updated_at = $2 WHERE id = $3`,
		name, time.Now().UTC(), conversationID,
	)
	if err != nil {
		return fmt.Errorf("rename conversation: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("conversation", conversationID)
	}
	return nil
}

// ResetUnread sets the conversation's unread counter to zero.
func (r *ConversationRepository) ResetUnread(ctx context.Context, conversationID string) error {
	ct, err := r.db.Exec(ctx,
		`UPDATE conversations SET unread_count = 0 WHERE id = $1`,
		conversationID,
	)
	if err != nil {
		return fmt.Errorf("reset unread count: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("conversation", conversationID)
	}
	return nil
}

func (r *ConversationRepository) scanConversation(ctx context.Context, query string, args ...any) (*domain.Conversation, error) {
	var c domain.Conversation

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&c.ID,
		&c.Name,
		&c.IsGroup,
		&c.LastMessage,
		&c.UnreadCount,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}

	return &c, nil
}

func (r *ConversationRepository) listMembers(ctx context.Context, conversationID string) ([]domain.PublicProfile, error) {
	query := `
		SELECT u.id, u.name, u.email, u.avatar_url
		FROM users u
		JOIN conversation_members cm ON cm.user_id = u.id
		WHERE cm.conversation_id = $1
		ORDER BY cm.joined_at ASC`

	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list conversation members: %w", err)
	}
	defer rows.Close()

	var members []domain.PublicProfile
	for rows.Next() {
		var p domain.PublicProfile
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan member row: %w", err)
		}
		members = append(members, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member rows: %w", err)
	}

	return members, nil
}
