package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Azaz-Gori07/ChatApp/internal/service"
	"github.com/Azaz-Gori07/ChatApp/pkg/httputil"
	"github.com/Azaz-Gori07/ChatApp/pkg/middleware"
	"github.com/Azaz-Gori07/ChatApp/pkg/pagination"
	"github.com/Azaz-Gori07/ChatApp/pkg/validator"
)

// MessageHandler handles HTTP requests for message endpoints.
type MessageHandler struct {
	service *service.ConversationService
	logger  *slog.Logger
}

// NewMessageHandler creates a new message HTTP handler.
func NewMessageHandler(svc *service.ConversationService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{service: svc, logger: logger}
}

// SendMessageRequest is the JSON request body for sending a message.
type SendMessageRequest struct {
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
	Content        string `json:"content" validate:"required"`
	Type           string `json:"type" validate:"omitempty,oneof=text image"`
}

// List handles GET /api/messages/{conversationId}
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := httputil.ParseUUID(w, chi.URLParam(r, "conversationId"))
	if !ok {
		return
	}

	params := pagination.FromRequest(r)
	userID := middleware.UserIDFromContext(r.Context())

	result, err := h.service.ListMessages(r.Context(), userID, conversationID.String(), params)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Send handles POST /api/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	msg, err := h.service.SendMessage(r.Context(), userID, req.ConversationID, req.Content, req.Type)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: msg})
}

// MarkAsRead handles POST /api/messages/{id}/read, where id is the conversation.
func (h *MessageHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if err := h.service.MarkAsRead(r.Context(), userID, conversationID.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "conversation marked as read"},
	})
}
