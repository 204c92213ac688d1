package memory

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Object is one stored blob.
type Object struct {
	ContentType string
	Data        []byte
}

// Storage is an in-memory storage.Storage used in tests and local development.
type Storage struct {
	baseURL string

	mu      sync.RWMutex
	objects map[string]Object
}

// New creates an in-memory storage whose public URLs hang off baseURL.
func New(baseURL string) *Storage {
	return &Storage{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		objects: make(map[string]Object),
	}
}

// Put stores the object and returns its public URL.
func (s *Storage) Put(_ context.Context, key string, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[key] = Object{ContentType: contentType, Data: buf}

	return s.baseURL + "/" + key, nil
}

// PresignPut returns the direct URL twice; in-memory storage has no presign
// step so clients PUT straight to the public URL.
func (s *Storage) PresignPut(_ context.Context, key string, _ string, _ time.Duration) (string, string, error) {
	url := s.baseURL + "/" + key
	return url, url, nil
}

// Get returns a stored object for test assertions.
func (s *Storage) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}
