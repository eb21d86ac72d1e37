package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a per-process sliding window. Buckets are dropped once
// their window has fully elapsed.
type InMemoryStore struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{buckets: make(map[string][]time.Time), now: time.Now}
}

func (s *InMemoryStore) Allow(_ context.Context, key string, limit Limit) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stamps := prune(s.buckets[key], now.Add(-limit.Window))

	if len(stamps) >= limit.Requests {
		s.buckets[key] = stamps
		return &Result{
			Allowed: false,
			Limit:   limit.Requests,
			ResetAt: stamps[0].Add(limit.Window),
		}, nil
	}

	stamps = append(stamps, now)
	s.buckets[key] = stamps
	return &Result{
		Allowed:   true,
		Limit:     limit.Requests,
		Remaining: limit.Requests - len(stamps),
		ResetAt:   stamps[0].Add(limit.Window),
	}, nil
}

// prune drops timestamps at or before cutoff. stamps is sorted.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}
