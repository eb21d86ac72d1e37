// Package waitlist keeps the live count of admitted users against the
// advertised slot total.
package waitlist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"clocklayer/internal/profile"
	"clocklayer/internal/profile/models"
	id "clocklayer/pkg/domain"
)

// TotalSlots is the advertised waitlist size. It is not enforced.
const TotalSlots = 30000

// State is the counter as shown to clients. Remaining goes negative once
// more than TotalSlots users are admitted.
type State struct {
	Total     int `json:"total"`
	Joined    int `json:"joined"`
	Remaining int `json:"remaining"`
}

func newState(joined int) State {
	return State{Total: TotalSlots, Joined: joined, Remaining: TotalSlots - joined}
}

// Mirror receives every state the counter settles on, e.g. to share it with
// other processes.
type Mirror interface {
	Publish(ctx context.Context, s State) error
}

// Counter tracks the size of the admitted set through a live subscription.
type Counter struct {
	profiles profile.Store
	logger   *slog.Logger
	mirror   Mirror

	mu sync.Mutex
	// admitted is the identity set of the latest snapshot. pending holds
	// admissions reported through Bump that no snapshot has shown yet.
	admitted map[id.IdentityID]struct{}
	pending  map[id.IdentityID]struct{}
	watchers map[chan State]struct{}
}

type Option func(*Counter)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Counter) {
		c.logger = logger
	}
}

func WithMirror(m Mirror) Option {
	return func(c *Counter) {
		c.mirror = m
	}
}

func New(profiles profile.Store, opts ...Option) *Counter {
	c := &Counter{
		profiles: profiles,
		logger:   slog.Default(),
		admitted: make(map[id.IdentityID]struct{}),
		pending:  make(map[id.IdentityID]struct{}),
		watchers: make(map[chan State]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run subscribes to the admitted set and blocks until ctx ends.
func (c *Counter) Run(ctx context.Context) error {
	sub, err := c.profiles.Subscribe(ctx, models.Admitted(), func(snap models.Snapshot) {
		s := c.set(snap)
		if c.mirror != nil {
			if err := c.mirror.Publish(ctx, s); err != nil && ctx.Err() == nil {
				c.logger.WarnContext(ctx, "waitlist mirror publish failed", "error", err)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe to admitted users: %w", err)
	}
	c.logger.InfoContext(ctx, "waitlist counter started", "total", TotalSlots)
	<-ctx.Done()
	return sub.Close()
}

// State returns the current counter.
func (c *Counter) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Bump shows identityID's admission before the subscription reports it. It
// is a no-op once a snapshot contains identityID, and the entry is dropped
// as soon as one does, so each admission is counted once. Admission
// decisions never read the counter.
func (c *Counter) Bump(identityID id.IdentityID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, seen := c.admitted[identityID]; seen {
		return
	}
	if _, seen := c.pending[identityID]; seen {
		return
	}
	c.pending[identityID] = struct{}{}
	c.broadcastLocked()
}

// Watch streams the current state followed by every change until ctx ends.
// Slow readers only see the latest state.
func (c *Counter) Watch(ctx context.Context) <-chan State {
	ch := make(chan State, 1)
	c.mu.Lock()
	c.watchers[ch] = struct{}{}
	ch <- c.stateLocked()
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.watchers, ch)
		close(ch)
		c.mu.Unlock()
	}()
	return ch
}

func (c *Counter) set(snap models.Snapshot) State {
	admitted := make(map[id.IdentityID]struct{}, snap.Len())
	for _, rec := range snap.Records {
		admitted[rec.ID] = struct{}{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.admitted = admitted
	for uid := range c.pending {
		if _, ok := admitted[uid]; ok {
			delete(c.pending, uid)
		}
	}
	c.broadcastLocked()
	return c.stateLocked()
}

func (c *Counter) stateLocked() State {
	return newState(len(c.admitted) + len(c.pending))
}

func (c *Counter) broadcastLocked() {
	s := c.stateLocked()
	for ch := range c.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}
