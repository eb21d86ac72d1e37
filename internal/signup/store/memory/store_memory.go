package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"clocklayer/internal/signup/models"
	id "clocklayer/pkg/domain"
	"clocklayer/pkg/platform/sentinel"
)

// InMemoryStore keeps wizard sessions in process memory for development.
// Sessions are copied in and out so callers never share state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID][]byte
	expiry   map[id.SessionID]time.Time
	now      func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[id.SessionID][]byte),
		expiry:   make(map[id.SessionID]time.Time),
		now:      time.Now,
	}
}

func (s *InMemoryStore) Save(_ context.Context, session *models.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = raw
	s.expiry[session.ID] = session.ExpiresAt
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	raw, ok := s.sessions[sessionID]
	exp := s.expiry[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !exp.IsZero() && !s.now().Before(exp) {
		return nil, sentinel.ErrNotFound
	}
	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Sweep drops expired sessions and reports how many were removed.
func (s *InMemoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for sid, exp := range s.expiry {
		if !exp.IsZero() && !now.Before(exp) {
			delete(s.sessions, sid)
			delete(s.expiry, sid)
			removed++
		}
	}
	return removed
}
