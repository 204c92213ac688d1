package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Azaz-Gori07/ChatApp/internal/storage"
	apperrors "github.com/Azaz-Gori07/ChatApp/pkg/errors"
)

// maxImageBytes is the decoded size limit for uploaded images.
const maxImageBytes = 5 << 20

// presignValidity is how long a presigned upload URL stays usable.
const presignValidity = 15 * time.Minute

var allowedImageTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// UploadService stores images and issues presigned upload URLs.
type UploadService struct {
	store  storage.Storage
	logger *slog.Logger
}

// NewUploadService creates a new upload service.
func NewUploadService(store storage.Storage, logger *slog.Logger) *UploadService {
	return &UploadService{
		store:  store,
		logger: logger,
	}
}

// UploadImage decodes a base64 image payload (raw or data-URL form), verifies
// its type and size, stores it, and returns the public URL.
func (s *UploadService) UploadImage(ctx context.Context, userID, payload string) (string, error) {
	if payload == "" {
		return "", apperrors.InvalidInput("image payload is required")
	}

	// Strip a data-URL prefix ("data:image/png;base64,...") if present.
	if idx := strings.Index(payload, ","); idx >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", apperrors.InvalidInput("image payload is not valid base64")
	}
	if len(data) > maxImageBytes {
		return "", apperrors.InvalidInput(fmt.Sprintf("image exceeds %d bytes", maxImageBytes))
	}

	// Trust the bytes, not the declared type.
	contentType := http.DetectContentType(data)
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", apperrors.InvalidInput("unsupported image type: " + contentType)
	}

	key := objectKey(userID, ext)
	url, err := s.store.Put(ctx, key, contentType, data)
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}

	s.logger.InfoContext(ctx, "image uploaded",
		slog.String("user_id", userID),
		slog.String("key", key),
		slog.Int("bytes", len(data)),
	)

	return url, nil
}

// PresignResult holds a presigned upload URL and the object's eventual public URL.
type PresignResult struct {
	UploadURL string `json:"upload_url"`
	PublicURL string `json:"public_url"`
	ExpiresIn int    `json:"expires_in_seconds"`
}

// PresignUpload returns a presigned PUT URL for a direct client upload.
func (s *UploadService) PresignUpload(ctx context.Context, userID, contentType string) (*PresignResult, error) {
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return nil, apperrors.InvalidInput("unsupported image type: " + contentType)
	}

	key := objectKey(userID, ext)
	uploadURL, publicURL, err := s.store.PresignPut(ctx, key, contentType, presignValidity)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	return &PresignResult{
		UploadURL: uploadURL,
		PublicURL: publicURL,
		ExpiresIn: int(presignValidity.Seconds()),
	}, nil
}

// objectKey builds a date-partitioned storage key.
func objectKey(userID, ext string) string {
	d := time.Now().UTC()
	return fmt.Sprintf("uploads/%d/%02d/%02d/%s-%s.%s", d.Year(), d.Month(), d.Day(), userID, uuid.New().String(), ext)
}
