package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"clocklayer/internal/broadcast/models"
	id "clocklayer/pkg/domain"
)

// InMemoryStore keeps messages and read markers in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	messages []models.Message
	reads    map[id.IdentityID]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{reads: make(map[id.IdentityID]time.Time)}
}

func (s *InMemoryStore) Append(_ context.Context, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

// List returns up to limit messages, newest first. limit <= 0 means all.
func (s *InMemoryStore) List(_ context.Context, limit int) ([]models.Message, error) {
	s.mu.RLock()
	out := append([]models.Message(nil), s.messages...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) LastRead(_ context.Context, identityID id.IdentityID) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.reads[identityID]
	if !ok {
		return nil, nil
	}
	return &at, nil
}

func (s *InMemoryStore) MarkRead(_ context.Context, identityID id.IdentityID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.reads[identityID]; ok && prev.After(at) {
		return nil
	}
	s.reads[identityID] = at
	return nil
}
