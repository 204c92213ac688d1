package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Azaz-Gori07/ChatApp/internal/auth"
	"github.com/Azaz-Gori07/ChatApp/internal/service"
	apperrors "github.com/Azaz-Gori07/ChatApp/pkg/errors"
)

// TokenValidator verifies an access token and returns its claims.
type TokenValidator func(token string) (*auth.Claims, error)

// Handler upgrades HTTP requests to websocket connections and dispatches
// realtime events. The access token is verified before the upgrade completes;
// an invalid token never reaches the hub.
type Handler struct {
	hub          *Hub
	validate     TokenValidator
	conversation *service.ConversationService
	logger       *slog.Logger
	upgrader     websocket.Upgrader
}

// NewHandler creates a websocket handler.
func NewHandler(hub *Hub, validate TokenValidator, conversation *service.ConversationService, checkOrigin func(r *http.Request) bool, logger *slog.Logger) *Handler {
	return &Handler{
		hub:          hub,
		validate:     validate,
		conversation: conversation,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// ServeHTTP handles GET /ws.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)
	if token == "" {
		http.Error(w, "missing access token", http.StatusUnauthorized)
		return
	}

	claims, err := h.validate(token)
	if err != nil {
		http.Error(w, "invalid access token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an error response.
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	client := newClient(claims.UserID, conn)
	h.hub.Register(client)

	h.logger.Info("websocket connected",
		slog.String("user_id", client.userID),
	)

	// Every event dispatched on this connection runs under a context that is
	// cancelled when the connection drops, so in-flight database work does
	// not outlive the socket.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go client.writePump()
	h.readPump(ctx, client)
}

// readPump reads frames until the connection drops, dispatching each event.
// It runs on the handler goroutine and owns all reads.
func (h *Handler) readPump(ctx context.Context, c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.Close()
		h.logger.Info("websocket disconnected",
			slog.String("user_id", c.userID),
		)
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error",
					slog.String("user_id", c.userID),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			h.sendError(c, "malformed event")
			continue
		}

		h.dispatch(ctx, c, &env)
	}
}

func (h *Handler) dispatch(ctx context.Context, c *Client, env *Envelope) {
	switch env.Event {
	case EventJoinConversation:
		var p JoinPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ConversationID == "" {
			h.sendError(c, "malformed join_conversation payload")
			return
		}
		h.handleJoin(ctx, c, p.ConversationID)

	case EventSendMessage:
		var p SendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ConversationID == "" {
			h.sendError(c, "malformed send_message payload")
			return
		}
		h.handleSend(ctx, c, &p)

	case EventTyping:
		var p TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.ConversationID == "" {
			h.sendError(c, "malformed typing payload")
			return
		}
		h.handleTyping(ctx, c, &p)

	default:
		h.sendError(c, "unknown event: "+env.Event)
	}
}

// handleJoin adds the connection to the conversation's room after verifying
// the user is actually a member.
func (h *Handler) handleJoin(ctx context.Context, c *Client, conversationID string) {
	isMember, err := h.conversation.IsMember(ctx, conversationID, c.userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "membership check failed",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
		)
		h.sendError(c, "could not join conversation")
		return
	}
	if !isMember {
		h.sendError(c, "not a member of this conversation")
		return
	}

	h.hub.Join(conversationID, c)
}

// handleSend persists the message through the shared service path, then
// broadcasts the stored message to the room.
func (h *Handler) handleSend(ctx context.Context, c *Client, p *SendMessagePayload) {
	msg, err := h.conversation.SendMessage(ctx, c.userID, p.ConversationID, p.Content, p.Type)
	if err != nil {
		h.sendError(c, userFacingError(err))
		return
	}

	frame, err := marshalEvent(EventNewMessage, msg)
	if err != nil {
		h.logger.ErrorContext(ctx, "marshal new_message event",
			slog.String("error", err.Error()),
		)
		return
	}

	h.hub.Broadcast(ctx, p.ConversationID, frame)
}

// handleTyping relays the signal to the room without persistence. The sender
// is stamped server-side so clients cannot spoof each other.
func (h *Handler) handleTyping(ctx context.Context, c *Client, p *TypingPayload) {
	isMember, err := h.conversation.IsMember(ctx, p.ConversationID, c.userID)
	if err != nil || !isMember {
		return
	}

	p.UserID = c.userID
	frame, err := marshalEvent(EventTyping, p)
	if err != nil {
		return
	}

	h.hub.Broadcast(ctx, p.ConversationID, frame)
}

func (h *Handler) sendError(c *Client, message string) {
	frame, err := marshalEvent(EventError, ErrorPayload{Message: message})
	if err != nil {
		return
	}
	_ = c.trySend(frame)
}

// userFacingError maps service errors to messages safe to surface on the
// socket. Internal failures get a generic message.
func userFacingError(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "could not send message"
}

// tokenFromRequest extracts the access token from the query string or the
// Authorization header. Browsers cannot set headers on websocket handshakes,
// so the query form is the primary path.
func tokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
