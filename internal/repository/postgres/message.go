package postgres

import (
	"context"
	"fmt"

	"github.com/Azaz-Gori07/ChatApp/internal/domain"
	"github.com/Azaz-Gori07/ChatApp/pkg/pagination"
)

// MessageRepository implements repository.MessageRepository using PostgreSQL.
type MessageRepository struct {
	db DB
}

// NewMessageRepository creates a new PostgreSQL-backed message repository.
func NewMessageRepository(db DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts the message and updates the parent conversation's preview
// fields in a single transaction, so a crash between the two writes cannot
// leave the conversation list out of sync with the message log.
func (r *MessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, content, type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.Type, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	preview := msg.Content
	if msg.Type == domain.MessageTypeImage {
		preview = "[image]"
	}

	_, err = tx.Exec(ctx,
		`UPDATE conversations
		 SET last_message = $1, unread_count = unread_count + 1, updated_at = $2
		 WHERE id = $3`,
		preview, msg.CreatedAt, msg.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("update conversation preview: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// ListByConversation returns a page of messages in ascending created_at order,
// with sender profiles resolved, plus the conversation's total message count.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string, params pagination.Params) ([]domain.Message, int, error) {
	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE conversation_id = $1`,
		conversationID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	query := `
		SELECT m.id, m.conversation_id, m.sender_id, m.content, m.type, m.created_at,
		       u.id, u.name, u.email, u.avatar_url
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, conversationID, params.PerPage, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		var sender domain.PublicProfile
		if err := rows.Scan(
			&m.ID,
			&m.ConversationID,
			&m.SenderID,
			&m.Content,
			&m.Type,
			&m.CreatedAt,
			&sender.ID,
			&sender.Name,
			&sender.Email,
			&sender.AvatarURL,
		); err != nil {
			return nil, 0, fmt.Errorf("scan message row: %w", err)
		}
		m.Sender = &sender
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate message rows: %w", err)
	}

	if messages == nil {
		messages = []domain.Message{}
	}

	return messages, total, nil
}
