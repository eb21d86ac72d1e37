package profile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"clocklayer/internal/profile/models"
	id "clocklayer/pkg/domain"
)

// FindFunc re-runs a query for a live subscription.
type FindFunc func(ctx context.Context, filter models.Filter) ([]*models.UserRecord, error)

// Feed fans store changes out to live subscriptions. Each subscription
// re-queries on its own goroutine; bursts of changes collapse into a single
// refresh, so a slow consumer sees the latest state rather than every step.
type Feed struct {
	Logger *slog.Logger

	mu   sync.Mutex
	subs map[*feedSub]struct{}
}

type feedSub struct {
	filter models.Filter
	dirty  chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	remove func()

	mu         sync.Mutex
	members    map[id.IdentityID]struct{}
	refreshing bool
}

// Notify marks every subscription as needing a refresh. Used when the
// changed record is unknown, e.g. after a listener reconnect.
func (f *Feed) Notify() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs {
		s.mark()
	}
}

// NotifyRecord refreshes only the subscriptions rec can affect: those whose
// filter it now matches and those whose last snapshot held it.
func (f *Feed) NotifyRecord(rec *models.UserRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs {
		if s.filter.Matches(rec) || s.holds(rec.ID) {
			s.mark()
		}
	}
}

// Subscribers returns the number of open subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Subscribe starts a live query. fn receives the initial snapshot and one
// snapshot per refresh, never concurrently.
func (f *Feed) Subscribe(ctx context.Context, filter models.Filter, find FindFunc, fn func(models.Snapshot)) Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &feedSub{
		filter: filter,
		dirty:  make(chan struct{}, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	f.mu.Lock()
	if f.subs == nil {
		f.subs = make(map[*feedSub]struct{})
	}
	f.subs[s] = struct{}{}
	f.mu.Unlock()
	s.remove = func() {
		f.mu.Lock()
		delete(f.subs, s)
		f.mu.Unlock()
	}

	s.mark()
	go f.loop(ctx, s, find, fn)
	return s
}

func (f *Feed) loop(ctx context.Context, s *feedSub, find FindFunc, fn func(models.Snapshot)) {
	defer close(s.done)
	defer s.remove()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.dirty:
			s.setRefreshing()
			records, err := find(ctx, s.filter)
			if err != nil {
				s.remember(nil, false)
				if ctx.Err() != nil {
					return
				}
				f.logger().WarnContext(ctx, "live query refresh failed", "error", err)
				continue
			}
			s.remember(records, true)
			fn(models.Snapshot{Records: records, At: time.Now()})
		}
	}
}

func (f *Feed) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

func (s *feedSub) setRefreshing() {
	s.mu.Lock()
	s.refreshing = true
	s.mu.Unlock()
}

// remember stores the members of a fresh snapshot. A failed refresh keeps
// the previous members.
func (s *feedSub) remember(records []*models.UserRecord, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshing = false
	if !ok {
		return
	}
	s.members = make(map[id.IdentityID]struct{}, len(records))
	for _, rec := range records {
		if rec != nil {
			s.members[rec.ID] = struct{}{}
		}
	}
}

// holds reports whether identityID may be in the snapshot being delivered.
// While a query runs the answer is unknown, so it is yes.
func (s *feedSub) holds(identityID id.IdentityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshing {
		return true
	}
	_, ok := s.members[identityID]
	return ok
}

func (s *feedSub) mark() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// Close stops the subscription and waits for an in-flight callback to return.
func (s *feedSub) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}
