// Package memory keeps audit events in process, in append order. Used when no
// Kafka brokers are configured and by tests.
package memory

import (
	"context"
	"slices"
	"sync"

	id "clocklayer/pkg/domain"
	audit "clocklayer/pkg/platform/audit"
)

type InMemoryStore struct {
	mu  sync.RWMutex
	log []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	s.log = append(s.log, event)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) ListByIdentity(_ context.Context, identityID id.IdentityID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, ev := range s.log {
		if ev.IdentityID == identityID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// ListAll returns a copy of every event in the order it was appended.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.log), nil
}
