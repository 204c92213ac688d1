package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
)

// UploadImage uploads raw image bytes through the server (base64 body) and
// returns the public URL of the stored object.
func (c *Client) UploadImage(ctx context.Context, data []byte) (string, error) {
	body := map[string]string{"image": base64.StdEncoding.EncodeToString(data)}

	var result struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/upload/image", body, &result); err != nil {
		return "", err
	}
	return result.URL, nil
}

// PresignUpload requests a short-lived direct-upload URL for the given content
// type. The caller PUTs the bytes to UploadURL and references PublicURL.
func (c *Client) PresignUpload(ctx context.Context, contentType string) (*PresignedUpload, error) {
	body := map[string]string{"content_type": contentType}
	var result PresignedUpload
	if err := c.do(ctx, http.MethodPost, "/api/upload/presign", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PutPresigned uploads data directly to a presigned URL obtained from
// PresignUpload. The PUT is idempotent, so it goes through the retrying
// transport with a circuit breaker rather than the session-aware path.
func (c *Client) PutPresigned(ctx context.Context, uploadURL, contentType string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	resp, err := c.uploads.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("upload to presigned URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Code: "UPLOAD_FAILED", Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}
