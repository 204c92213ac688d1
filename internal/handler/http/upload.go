package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Azaz-Gori07/ChatApp/internal/service"
	"github.com/Azaz-Gori07/ChatApp/pkg/httputil"
	"github.com/Azaz-Gori07/ChatApp/pkg/middleware"
	"github.com/Azaz-Gori07/ChatApp/pkg/validator"
)

// UploadHandler handles HTTP requests for image uploads.
type UploadHandler struct {
	service *service.UploadService
	logger  *slog.Logger
}

// NewUploadHandler creates a new upload HTTP handler.
func NewUploadHandler(svc *service.UploadService, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{service: svc, logger: logger}
}

// UploadImageRequest is the JSON request body for a base64 image upload.
type UploadImageRequest struct {
	Image string `json:"image" validate:"required"`
}

// PresignRequest is the JSON request body for a presigned-upload request.
type PresignRequest struct {
	ContentType string `json:"content_type" validate:"required"`
}

// Image handles POST /api/upload/image. Body limit is above the 5 MiB decoded
// cap to leave room for base64 expansion and the JSON envelope.
func (h *UploadHandler) Image(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 8<<20)

	var req UploadImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	url, err := h.service.UploadImage(r.Context(), userID, req.Image)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{
		Data: map[string]string{"url": url},
	})
}

// Presign handles POST /api/upload/presign
func (h *UploadHandler) Presign(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req PresignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBodyError(w, err)
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	result, err := h.service.PresignUpload(r.Context(), userID, req.ContentType)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}
