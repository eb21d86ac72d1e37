package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"clocklayer/internal/profile"
	"clocklayer/internal/profile/models"
	id "clocklayer/pkg/domain"
	"clocklayer/pkg/platform/sentinel"
	"clocklayer/pkg/requestcontext"
)

// InMemoryStore is the dev/test Profile Store. Writes are serialized; live
// queries are refreshed after every write.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.IdentityID]*models.UserRecord
	feed    profile.Feed
}

func NewInMemoryStore(logger *slog.Logger) *InMemoryStore {
	return &InMemoryStore{
		records: make(map[id.IdentityID]*models.UserRecord),
		feed:    profile.Feed{Logger: logger},
	}
}

func (s *InMemoryStore) Get(_ context.Context, identityID id.IdentityID) (*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[identityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *InMemoryStore) MergeWrite(ctx context.Context, identityID id.IdentityID, patch models.Patch) (*models.UserRecord, error) {
	s.mu.Lock()
	rec, ok := s.records[identityID]
	if !ok {
		rec = &models.UserRecord{ID: identityID}
	}
	changed := rec.Apply(patch, requestcontext.Now(ctx))
	if !ok || changed {
		s.records[identityID] = rec
	}
	out := rec.Clone()
	s.mu.Unlock()

	if !ok || changed {
		s.feed.NotifyRecord(out)
	}
	return out, nil
}

// Find returns matching records oldest first, the order the waitlist grew in.
func (s *InMemoryStore) Find(_ context.Context, filter models.Filter) ([]*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.UserRecord, 0)
	for _, rec := range s.records {
		if filter.Matches(rec) {
			out = append(out, rec.Clone())
		}
	}
	// Same order as the Postgres query: created_at ASC NULLS LAST, id ASC.
	sort.Slice(out, func(i, j int) bool {
		ci, cj := out[i].CreatedAt, out[j].CreatedAt
		switch {
		case ci == nil && cj == nil:
			return out[i].ID < out[j].ID
		case ci == nil:
			return false
		case cj == nil:
			return true
		case ci.Equal(*cj):
			return out[i].ID < out[j].ID
		default:
			return ci.Before(*cj)
		}
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *InMemoryStore) Subscribe(ctx context.Context, filter models.Filter, fn func(models.Snapshot)) (profile.Subscription, error) {
	return s.feed.Subscribe(ctx, filter, s.Find, fn), nil
}
