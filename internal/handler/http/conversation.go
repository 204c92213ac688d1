package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Azaz-Gori07/ChatApp/internal/service"
	"github.com/Azaz-Gori07/ChatApp/pkg/httputil"
	"github.com/Azaz-Gori07/ChatApp/pkg/middleware"
	"github.com/Azaz-Gori07/ChatApp/pkg/validator"
)

// ConversationHandler handles HTTP requests for conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *slog.Logger
}

// NewConversationHandler creates a new conversation HTTP handler.
func NewConversationHandler(svc *service.ConversationService, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{service: svc, logger: logger}
}

// CreateDirectRequest is the JSON request body for get-or-create direct conversation.
type CreateDirectRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required,uuid"`
}

// CreateGroupRequest is the JSON request body for group creation.
type CreateGroupRequest struct {
	Name      string   `json:"name" validate:"required,min=1,max=100"`
	MemberIDs []string `json:"member_ids" validate:"required,min=1,dive,uuid"`
}

// MemberRequest is the JSON request body for membership mutations.
type MemberRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

// RenameRequest is the JSON request body for renaming a group.
type RenameRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// List handles GET /api/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	conversations, err := h.service.ListConversations(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: conversations})
}

// CreateDirect handles POST /api/conversations
func (h *ConversationHandler) CreateDirect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateDirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	conv, err := h.service.CreateDirect(r.Context(), userID, req.ReceiverID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: conv})
}

// CreateGroup handles POST /api/conversations/group
func (h *ConversationHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	conv, err := h.service.CreateGroup(r.Context(), userID, req.Name, req.MemberIDs)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: conv})
}

// AddMember handles POST /api/conversations/{id}/add-member
func (h *ConversationHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	h.mutateMember(w, r, h.service.AddMember)
}

// RemoveMember handles POST /api/conversations/{id}/remove-member
func (h *ConversationHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	h.mutateMember(w, r, h.service.RemoveMember)
}

// Rename handles PATCH /api/conversations/{id}/rename
func (h *ConversationHandler) Rename(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	conversationID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if err := h.service.Rename(r.Context(), userID, conversationID.String(), req.Name); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "conversation renamed"},
	})
}

func (h *ConversationHandler) mutateMember(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, callerID, conversationID, userID string) error,
) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	conversationID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req MemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	callerID := middleware.UserIDFromContext(r.Context())
	if err := op(r.Context(), callerID, conversationID.String(), req.UserID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]string{"message": "membership updated"},
	})
}
