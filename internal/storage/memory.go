package storage

import (
	"context"
	"sync"
)

// MemoryStore keeps uploads in process. Used by tests and the memory store driver.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objs    map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: baseURL, objs: make(map[string]memoryObject)}
}

func (s *MemoryStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.mu.Lock()
	s.objs[cleanKey] = memoryObject{data: buf, contentType: contentType}
	s.mu.Unlock()
	return joinURL(s.baseURL, cleanKey), nil
}

// Object returns a stored upload.
func (s *MemoryStore) Object(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objs[key]
	return obj.data, obj.contentType, ok
}

// Len returns the number of stored uploads.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objs)
}
