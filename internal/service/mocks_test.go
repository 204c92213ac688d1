package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/Azaz-Gori07/ChatApp/internal/auth"
	"github.com/Azaz-Gori07/ChatApp/internal/domain"
	"github.com/Azaz-Gori07/ChatApp/internal/event"
	pkgkafka "github.com/Azaz-Gori07/ChatApp/pkg/kafka"
	"github.com/Azaz-Gori07/ChatApp/pkg/pagination"
)

// --- Mock User Repository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepository) List(ctx context.Context, params pagination.Params) ([]domain.User, int, error) {
	args := m.Called(ctx, params)
	return args.Get(0).([]domain.User), args.Int(1), args.Error(2)
}

func (m *mockUserRepository) Search(ctx context.Context, q string, params pagination.Params) ([]domain.User, int, error) {
	args := m.Called(ctx, q, params)
	return args.Get(0).([]domain.User), args.Int(1), args.Error(2)
}

// --- Mock Conversation Repository ---

type mockConversationRepository struct {
	mock.Mock
}

func (m *mockConversationRepository) CreateDirect(ctx context.Context, conv *domain.Conversation, userA, userB string) error {
	args := m.Called(ctx, conv, userA, userB)
	return args.Error(0)
}

func (m *mockConversationRepository) CreateGroup(ctx context.Context, conv *domain.Conversation, memberIDs []string) error {
	args := m.Called(ctx, conv, memberIDs)
	return args.Error(0)
}

func (m *mockConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *mockConversationRepository) GetDirectByPairKey(ctx context.Context, pairKey string) (*domain.Conversation, error) {
	args := m.Called(ctx, pairKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *mockConversationRepository) ListByUserID(ctx context.Context, userID string) ([]domain.Conversation, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Conversation), args.Error(1)
}

func (m *mockConversationRepository) ListMemberIDs(ctx context.Context, conversationID string) ([]string, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockConversationRepository) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockConversationRepository) AddMember(ctx context.Context, conversationID, userID string) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *mockConversationRepository) RemoveMember(ctx context.Context, conversationID, userID string) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *mockConversationRepository) Rename(ctx context.Context, conversationID, name string) error {
	args := m.Called(ctx, conversationID, name)
	return args.Error(0)
}

func (m *mockConversationRepository) ResetUnread(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

// --- Mock Message Repository ---

type mockMessageRepository struct {
	mock.Mock
}

func (m *mockMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockMessageRepository) ListByConversation(ctx context.Context, conversationID string, params pagination.Params) ([]domain.Message, int, error) {
	args := m.Called(ctx, conversationID, params)
	return args.Get(0).([]domain.Message), args.Int(1), args.Error(2)
}

// --- Mock Mailer ---

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendOTP(ctx context.Context, to, name, code string) error {
	args := m.Called(ctx, to, name, code)
	return args.Error(0)
}

// --- No-op Publisher ---

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, *pkgkafka.Event) error { return nil }

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestJWTManager() *auth.JWTManager {
	return auth.NewJWTManager("test-secret-key-for-testing", 15*time.Minute, 7*24*time.Hour)
}

func newTestEventProducer() *event.Producer {
	return event.NewProducer(noopPublisher{}, newTestLogger())
}

func strPtr(s string) *string {
	return &s
}

// hashForTest creates a bcrypt hash with cost 4 for fast tests.
func hashForTest(password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), 4)
	if err != nil {
		panic(err)
	}
	return string(h)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
