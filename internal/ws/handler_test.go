package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azaz-Gori07/ChatApp/internal/auth"
	"github.com/Azaz-Gori07/ChatApp/internal/domain"
	"github.com/Azaz-Gori07/ChatApp/internal/event"
	"github.com/Azaz-Gori07/ChatApp/internal/service"
	apperrors "github.com/Azaz-Gori07/ChatApp/pkg/errors"
	pkgkafka "github.com/Azaz-Gori07/ChatApp/pkg/kafka"
	"github.com/Azaz-Gori07/ChatApp/pkg/pagination"
)

// ---------------------------------------------------------------------------
// In-memory repository fakes backing a real ConversationService.
// ---------------------------------------------------------------------------

type fakeConvRepo struct {
	mu            sync.Mutex
	conversations map[string]*domain.Conversation
	members       map[string]map[string]bool
	memberCtx     context.Context
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{
		conversations: make(map[string]*domain.Conversation),
		members:       make(map[string]map[string]bool),
	}
}

func (r *fakeConvRepo) seed(conv *domain.Conversation, memberIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations[conv.ID] = conv
	set := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		set[id] = true
	}
	r.members[conv.ID] = set
}

func (r *fakeConvRepo) CreateDirect(_ context.Context, conv *domain.Conversation, userA, userB string) error {
	r.seed(conv, userA, userB)
	return nil
}

func (r *fakeConvRepo) CreateGroup(_ context.Context, conv *domain.Conversation, memberIDs []string) error {
	r.seed(conv, memberIDs...)
	return nil
}

func (r *fakeConvRepo) GetByID(_ context.Context, id string) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return conv, nil
}

func (r *fakeConvRepo) GetDirectByPairKey(context.Context, string) (*domain.Conversation, error) {
	return nil, apperrors.ErrNotFound
}

func (r *fakeConvRepo) ListByUserID(context.Context, string) ([]domain.Conversation, error) {
	return nil, nil
}

func (r *fakeConvRepo) ListMemberIDs(_ context.Context, conversationID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.members[conversationID]))
	for id := range r.members[conversationID] {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *fakeConvRepo) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memberCtx = ctx
	return r.members[conversationID][userID], nil
}

// lastMemberCtx returns the context the most recent IsMember call ran under.
func (r *fakeConvRepo) lastMemberCtx() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.memberCtx
}

func (r *fakeConvRepo) AddMember(_ context.Context, conversationID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[conversationID][userID] = true
	return nil
}

func (r *fakeConvRepo) RemoveMember(_ context.Context, conversationID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members[conversationID], userID)
	return nil
}

func (r *fakeConvRepo) Rename(context.Context, string, string) error { return nil }

func (r *fakeConvRepo) ResetUnread(context.Context, string) error { return nil }

type fakeMsgRepo struct {
	mu       sync.Mutex
	messages []domain.Message
}

func (r *fakeMsgRepo) Create(_ context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeMsgRepo) ListByConversation(_ context.Context, conversationID string, _ pagination.Params) ([]domain.Message, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, len(out), nil
}

func (r *fakeMsgRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

type fakeUserDirectory struct {
	users map[string]*domain.User
}

func (r *fakeUserDirectory) Create(context.Context, *domain.User) error { return nil }

func (r *fakeUserDirectory) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserDirectory) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, apperrors.ErrNotFound
}

func (r *fakeUserDirectory) Update(context.Context, *domain.User) error { return nil }

func (r *fakeUserDirectory) List(context.Context, pagination.Params) ([]domain.User, int, error) {
	return nil, 0, nil
}

func (r *fakeUserDirectory) Search(context.Context, string, pagination.Params) ([]domain.User, int, error) {
	return nil, 0, nil
}

type nilPublisher struct{}

func (nilPublisher) Publish(context.Context, string, *pkgkafka.Event) error { return nil }

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

const (
	wsUserA = "aaaaaaaa-0000-0000-0000-000000000001"
	wsUserB = "aaaaaaaa-0000-0000-0000-000000000002"
	wsUserC = "aaaaaaaa-0000-0000-0000-000000000003"
	wsConv  = "cccccccc-0000-0000-0000-000000000001"
)

type gatewayFixture struct {
	server   *httptest.Server
	hub      *Hub
	jwt      *auth.JWTManager
	messages *fakeMsgRepo
	conv     *fakeConvRepo
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	logger := testLogger()
	jwtManager := auth.NewJWTManager("test-secret-key-for-testing", 15*time.Minute, 7*24*time.Hour)

	convRepo := newFakeConvRepo()
	convRepo.seed(&domain.Conversation{ID: wsConv, IsGroup: false}, wsUserA, wsUserB)

	userRepo := &fakeUserDirectory{users: map[string]*domain.User{
		wsUserA: {ID: wsUserA, Name: "Alice", Email: "alice@example.com", IsVerified: true},
		wsUserB: {ID: wsUserB, Name: "Bob", Email: "bob@example.com", IsVerified: true},
		wsUserC: {ID: wsUserC, Name: "Carol", Email: "carol@example.com", IsVerified: true},
	}}

	msgRepo := &fakeMsgRepo{}
	producer := event.NewProducer(nilPublisher{}, logger)
	convService := service.NewConversationService(convRepo, msgRepo, userRepo, producer, logger)

	hub := NewHub(nil, logger)
	handler := NewHandler(hub, jwtManager.ValidateAccessToken, convService,
		func(*http.Request) bool { return true }, logger)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &gatewayFixture{server: server, hub: hub, jwt: jwtManager, messages: msgRepo, conv: convRepo}
}

func (f *gatewayFixture) wsURL(token string) string {
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	if token != "" {
		url += "?token=" + token
	}
	return url
}

func (f *gatewayFixture) connect(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	token, err := f.jwt.GenerateAccessToken(userID, userID+"@example.com")
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL(token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, eventName string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(Envelope{Event: eventName, Data: data})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func readEvent(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(frame, &env))
	return env
}

// joinRoom joins the conversation and waits until the hub registered the
// membership, since join has no acknowledgement frame.
func (f *gatewayFixture) joinRoom(t *testing.T, conn *websocket.Conn, want int) {
	t.Helper()
	sendEvent(t, conn, EventJoinConversation, JoinPayload{ConversationID: wsConv})
	require.Eventually(t, func() bool {
		return f.hub.RoomSize(wsConv) >= want
	}, 2*time.Second, 10*time.Millisecond, "join was not processed")
}

// ---------------------------------------------------------------------------
// Handshake
// ---------------------------------------------------------------------------

func TestGateway_RejectsMissingToken(t *testing.T) {
	f := newGatewayFixture(t)

	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL(""), nil)
	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_RejectsInvalidToken(t *testing.T) {
	f := newGatewayFixture(t)

	conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL("not-a-token"), nil)
	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

func TestGateway_JoinRequiresMembership(t *testing.T) {
	f := newGatewayFixture(t)

	conn := f.connect(t, wsUserC)
	sendEvent(t, conn, EventJoinConversation, JoinPayload{ConversationID: wsConv})

	env := readEvent(t, conn)
	require.Equal(t, EventError, env.Event)

	var p ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "not a member of this conversation", p.Message)
	assert.Equal(t, 0, f.hub.RoomSize(wsConv))
}

func TestGateway_SendMessageBroadcastsToRoom(t *testing.T) {
	f := newGatewayFixture(t)

	alice := f.connect(t, wsUserA)
	bob := f.connect(t, wsUserB)
	f.joinRoom(t, alice, 1)
	f.joinRoom(t, bob, 2)

	sendEvent(t, alice, EventSendMessage, SendMessagePayload{
		ConversationID: wsConv,
		Content:        "hello bob",
	})

	for _, conn := range []*websocket.Conn{alice, bob} {
		env := readEvent(t, conn)
		require.Equal(t, EventNewMessage, env.Event)

		var msg domain.Message
		require.NoError(t, json.Unmarshal(env.Data, &msg))
		assert.Equal(t, "hello bob", msg.Content)
		assert.Equal(t, domain.MessageTypeText, msg.Type)
		assert.Equal(t, wsUserA, msg.SenderID)
		require.NotNil(t, msg.Sender)
		assert.Equal(t, "Alice", msg.Sender.Name)
	}

	assert.Equal(t, 1, f.messages.count(), "message must be persisted once")
}

func TestGateway_SendMessageRejectsNonMember(t *testing.T) {
	f := newGatewayFixture(t)

	conn := f.connect(t, wsUserC)
	sendEvent(t, conn, EventSendMessage, SendMessagePayload{
		ConversationID: wsConv,
		Content:        "let me in",
	})

	env := readEvent(t, conn)
	require.Equal(t, EventError, env.Event)

	var p ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "not a member of this conversation", p.Message)
	assert.Equal(t, 0, f.messages.count())
}

func TestGateway_TypingStampsSender(t *testing.T) {
	f := newGatewayFixture(t)

	alice := f.connect(t, wsUserA)
	bob := f.connect(t, wsUserB)
	f.joinRoom(t, alice, 1)
	f.joinRoom(t, bob, 2)

	// A forged user_id must be overwritten with the authenticated sender.
	sendEvent(t, alice, EventTyping, TypingPayload{
		ConversationID: wsConv,
		UserID:         wsUserB,
	})

	env := readEvent(t, bob)
	require.Equal(t, EventTyping, env.Event)

	var p TypingPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, wsConv, p.ConversationID)
	assert.Equal(t, wsUserA, p.UserID)
}

func TestGateway_DisconnectCancelsEventContext(t *testing.T) {
	f := newGatewayFixture(t)

	conn := f.connect(t, wsUserA)
	f.joinRoom(t, conn, 1)

	ctx := f.conv.lastMemberCtx()
	require.NotNil(t, ctx)
	require.NoError(t, ctx.Err(), "the event context must stay live while connected")

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return ctx.Err() != nil
	}, 2*time.Second, 10*time.Millisecond, "disconnecting must cancel the per-connection context")
}

func TestGateway_MalformedFrame(t *testing.T) {
	f := newGatewayFixture(t)

	conn := f.connect(t, wsUserA)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	env := readEvent(t, conn)
	require.Equal(t, EventError, env.Event)

	var p ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "malformed event", p.Message)
}

func TestGateway_UnknownEvent(t *testing.T) {
	f := newGatewayFixture(t)

	conn := f.connect(t, wsUserA)
	sendEvent(t, conn, "subscribe", JoinPayload{ConversationID: wsConv})

	env := readEvent(t, conn)
	require.Equal(t, EventError, env.Event)

	var p ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "unknown event: subscribe", p.Message)
}
