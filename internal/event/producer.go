package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Azaz-Gori07/ChatApp/internal/domain"
	pkgkafka "github.com/Azaz-Gori07/ChatApp/pkg/kafka"
)

// Kafka topic constants for chat domain events.
const (
	TopicUserRegistered = "chat.user.registered"
	TopicUserVerified   = "chat.user.verified"
	TopicMessageSent    = "chat.message.sent"
)

// Aggregate type constants.
const (
	AggregateTypeUser    = "user"
	AggregateTypeMessage = "message"
)

// Source identifier for events originating from this server.
const SourceChatServer = "chat-server"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserVerifiedData is the payload for a user.verified event.
type UserVerifiedData struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// MessageSentData is the payload for a message.sent event.
type MessageSentData struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Type           string `json:"type"`
}

// Publisher is the kafka producer surface the event producer needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes chat domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
	}

	event, err := pkgkafka.NewEvent(TopicUserRegistered, user.ID, AggregateTypeUser, SourceChatServer, data)
	if err != nil {
		return fmt.Errorf("create user.registered event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserRegistered, event); err != nil {
		return fmt.Errorf("publish user.registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.registered event",
		slog.String("user_id", user.ID),
	)

	return nil
}

// PublishUserVerified publishes a user.verified event.
func (p *Producer) PublishUserVerified(ctx context.Context, user *domain.User) error {
	data := UserVerifiedData{
		ID:    user.ID,
		Email: user.Email,
	}

	event, err := pkgkafka.NewEvent(TopicUserVerified, user.ID, AggregateTypeUser, SourceChatServer, data)
	if err != nil {
		return fmt.Errorf("create user.verified event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserVerified, event); err != nil {
		return fmt.Errorf("publish user.verified event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.verified event",
		slog.String("user_id", user.ID),
	)

	return nil
}

// PublishMessageSent publishes a message.sent event. The payload carries no
// message content so the topic stays safe to mirror into analytics.
func (p *Producer) PublishMessageSent(ctx context.Context, msg *domain.Message) error {
	data := MessageSentData{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Type:           msg.Type,
	}

	event, err := pkgkafka.NewEvent(TopicMessageSent, msg.ConversationID, AggregateTypeMessage, SourceChatServer, data)
	if err != nil {
		return fmt.Errorf("create message.sent event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicMessageSent, event); err != nil {
		return fmt.Errorf("publish message.sent event: %w", err)
	}

	return nil
}
