package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Azaz-Gori07/ChatApp/internal/domain"
	"github.com/Azaz-Gori07/ChatApp/internal/event"
	"github.com/Azaz-Gori07/ChatApp/internal/repository"
	apperrors "github.com/Azaz-Gori07/ChatApp/pkg/errors"
	"github.com/Azaz-Gori07/ChatApp/pkg/pagination"
)

// maxMessageLength bounds message content, matching the client composer limit.
const maxMessageLength = 4096

// ConversationService implements conversation and message operations. REST
// handlers and the realtime gateway share this one send path.
type ConversationService struct {
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	userRepo repository.UserRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *ConversationService {
	return &ConversationService{
		convRepo: convRepo,
		msgRepo:  msgRepo,
		userRepo: userRepo,
		producer: producer,
		logger:   logger,
	}
}

// ListConversations returns all conversations the user belongs to, most
// recently updated first, with member profiles resolved.
func (s *ConversationService) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	conversations, err := s.convRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, nil
}

// CreateDirect returns the direct conversation between the caller and the
// receiver, creating it if none exists. The unique index on the member pair
// makes concurrent creation converge on a single conversation.
func (s *ConversationService) CreateDirect(ctx context.Context, userID, receiverID string) (*domain.Conversation, error) {
	if receiverID == "" {
		return nil, apperrors.InvalidInput("receiver id is required")
	}
	if receiverID == userID {
		return nil, apperrors.InvalidInput("cannot start a conversation with yourself")
	}

	if _, err := s.userRepo.GetByID(ctx, receiverID); err != nil {
		return nil, apperrors.NotFound("user", receiverID)
	}

	pairKey := domain.DirectPairKey(userID, receiverID)
	if existing, err := s.convRepo.GetDirectByPairKey(ctx, pairKey); err == nil {
		return existing, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("lookup direct conversation: %w", err)
	}

	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:        uuid.New().String(),
		IsGroup:   false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.convRepo.CreateDirect(ctx, conv, userID, receiverID)
	if errors.Is(err, apperrors.ErrAlreadyExists) {
		// Lost the race to a concurrent create; return the winner.
		return s.convRepo.GetDirectByPairKey(ctx, pairKey)
	}
	if err != nil {
		return nil, fmt.Errorf("create direct conversation: %w", err)
	}

	s.logger.InfoContext(ctx, "direct conversation created",
		slog.String("conversation_id", conv.ID),
	)

	return s.convRepo.GetByID(ctx, conv.ID)
}

// CreateGroup creates a group conversation. The creator is implicitly a member.
func (s *ConversationService) CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string) (*domain.Conversation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.InvalidInput("group name is required")
	}

	members := make([]string, 0, len(memberIDs)+1)
	members = append(members, creatorID)
	for _, id := range memberIDs {
		if id != creatorID && id != "" {
			members = append(members, id)
		}
	}
	if len(members) < 2 {
		return nil, apperrors.InvalidInput("a group needs at least one other member")
	}

	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:        uuid.New().String(),
		Name:      name,
		IsGroup:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.convRepo.CreateGroup(ctx, conv, members); err != nil {
		return nil, fmt.Errorf("create group conversation: %w", err)
	}

	s.logger.InfoContext(ctx, "group conversation created",
		slog.String("conversation_id", conv.ID),
		slog.Int("members", len(members)),
	)

	return s.convRepo.GetByID(ctx, conv.ID)
}

// AddMember adds a user to a group conversation. The caller must be a member.
// Adding an existing member is a no-op.
func (s *ConversationService) AddMember(ctx context.Context, callerID, conversationID, userID string) error {
	conv, err := s.authorizeMember(ctx, callerID, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return apperrors.InvalidInput("cannot modify members of a direct conversation")
	}

	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return apperrors.NotFound("user", userID)
	}

	if err := s.convRepo.AddMember(ctx, conversationID, userID); err != nil {
		return fmt.Errorf("add member: %w", err)
	}

	s.logger.InfoContext(ctx, "member added",
		slog.String("conversation_id", conversationID),
		slog.String("member_id", userID),
	)

	return nil
}

// RemoveMember removes a user from a group conversation. The caller must be a member.
func (s *ConversationService) RemoveMember(ctx context.Context, callerID, conversationID, userID string) error {
	conv, err := s.authorizeMember(ctx, callerID, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return apperrors.InvalidInput("cannot modify members of a direct conversation")
	}

	if err := s.convRepo.RemoveMember(ctx, conversationID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}

	s.logger.InfoContext(ctx, "member removed",
		slog.String("conversation_id", conversationID),
		slog.String("member_id", userID),
	)

	return nil
}

// Rename updates a group conversation's name. The caller must be a member.
func (s *ConversationService) Rename(ctx context.Context, callerID, conversationID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperrors.InvalidInput("name is required")
	}

	conv, err := s.authorizeMember(ctx, callerID, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return apperrors.InvalidInput("cannot rename a direct conversation")
	}

	if err := s.convRepo.Rename(ctx, conversationID, name); err != nil {
		return fmt.Errorf("rename conversation: %w", err)
	}

	return nil
}

// SendMessage persists a message and updates the conversation preview in one
// transaction, returning the stored message with the sender profile resolved.
// Both the REST handler and the realtime gateway call this method.
func (s *ConversationService) SendMessage(ctx context.Context, senderID, conversationID, content, msgType string) (*domain.Message, error) {
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	if !domain.ValidMessageType(msgType) {
		return nil, apperrors.InvalidInput("unsupported message type: " + msgType)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.InvalidInput("message content is required")
	}
	if len(content) > maxMessageLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("message exceeds %d characters", maxMessageLength))
	}

	if _, err := s.authorizeMember(ctx, senderID, conversationID); err != nil {
		return nil, err
	}

	sender, err := s.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("get sender: %w", err)
	}

	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.msgRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}

	profile := sender.Public()
	msg.Sender = &profile

	// Publish message event (non-blocking on failure).
	if err := s.producer.PublishMessageSent(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish message.sent event",
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
	}

	return msg, nil
}

// ListMessages returns a page of messages in ascending creation order. The
// caller must be a member of the conversation.
func (s *ConversationService) ListMessages(ctx context.Context, callerID, conversationID string, params pagination.Params) (pagination.Result[domain.Message], error) {
	if _, err := s.authorizeMember(ctx, callerID, conversationID); err != nil {
		return pagination.Result[domain.Message]{}, err
	}

	messages, total, err := s.msgRepo.ListByConversation(ctx, conversationID, params)
	if err != nil {
		return pagination.Result[domain.Message]{}, fmt.Errorf("list messages: %w", err)
	}

	return pagination.NewResult(messages, total, params), nil
}

// MarkAsRead resets the conversation's unread counter. The counter is
// conversation-wide rather than per-member, so clearing it affects everyone;
// a known limitation carried over deliberately.
func (s *ConversationService) MarkAsRead(ctx context.Context, callerID, conversationID string) error {
	if _, err := s.authorizeMember(ctx, callerID, conversationID); err != nil {
		return err
	}

	if err := s.convRepo.ResetUnread(ctx, conversationID); err != nil {
		return fmt.Errorf("mark as read: %w", err)
	}

	return nil
}

// IsMember reports whether the user belongs to the conversation. The realtime
// gateway uses this to gate room joins.
func (s *ConversationService) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	return s.convRepo.IsMember(ctx, conversationID, userID)
}

// authorizeMember loads the conversation and verifies the caller is a member.
func (s *ConversationService) authorizeMember(ctx context.Context, callerID, conversationID string) (*domain.Conversation, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("conversation", conversationID)
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	isMember, err := s.convRepo.IsMember(ctx, conversationID, callerID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !isMember {
		return nil, apperrors.Forbidden("not a member of this conversation")
	}

	return conv, nil
}
