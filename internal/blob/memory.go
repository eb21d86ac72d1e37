package blob

import (
	"context"
	"strings"
	"sync"
)

// Object is a stored blob.
type Object struct {
	ContentType string
	Data        []byte
}

// MemoryStore keeps uploads in process; URLs point at publicBaseURL.
type MemoryStore struct {
	publicBaseURL string

	mu      sync.RWMutex
	objects map[string]Object
}

func NewMemoryStore(publicBaseURL string) *MemoryStore {
	return &MemoryStore{
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		objects:       make(map[string]Object),
	}
}

func (m *MemoryStore) Upload(_ context.Context, objectPath, contentType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectPath] = Object{ContentType: contentType, Data: append([]byte(nil), data...)}
	return m.publicBaseURL + "/" + objectPath, nil
}

// Get returns a stored object.
func (m *MemoryStore) Get(objectPath string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[objectPath]
	return obj, ok
}
