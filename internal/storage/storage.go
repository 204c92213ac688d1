package storage

import (
	"context"
	"time"
)

// Storage stores uploaded objects and resolves their public URLs.
type Storage interface {
	// Put stores the object under key with the given content type and returns
	// its public URL.
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)

	// PresignPut returns a presigned PUT URL for the key plus the public URL
	// the object will have once uploaded.
	PresignPut(ctx context.Context, key string, contentType string, expires time.Duration) (uploadURL string, publicURL string, err error)
}
