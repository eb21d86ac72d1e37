package publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "clocklayer/pkg/domain"
	audit "clocklayer/pkg/platform/audit"
	"clocklayer/pkg/platform/audit/store/memory"
)

type PublisherSuite struct {
	suite.Suite
	ctx    context.Context
	store  *memory.InMemoryStore
	logger *slog.Logger
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.NewInMemoryStore()
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *PublisherSuite) TestInlineEmitStampsTime() {
	pub := NewPublisher(s.store)
	uid := id.IdentityID("uid_inline")

	before := time.Now()
	s.Require().NoError(pub.Emit(s.ctx, audit.Event{IdentityID: uid, Action: string(audit.EventIdentityLinked)}))
	fixed := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	s.Require().NoError(pub.Emit(s.ctx, audit.Event{IdentityID: uid, Action: string(audit.EventUserCreated), Timestamp: fixed}))

	events, err := pub.List(s.ctx, uid)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.False(events[0].Timestamp.Before(before), "unset timestamps are stamped at emit")
	s.Equal(fixed, events[1].Timestamp, "caller timestamps are kept")
}

func (s *PublisherSuite) TestAsyncKeepsSignupOrderAndDrainsOnClose() {
	pub := NewPublisher(s.store, WithAsyncBuffer(16), WithLogger(s.logger))
	uid := id.IdentityID("uid_wizard")
	journey := []audit.AuditEvent{
		audit.EventIdentityLinked,
		audit.EventUserCreated,
		audit.EventProfileUpdated,
		audit.EventPhoneVerified,
		audit.EventWaitlistAdmitted,
	}
	for _, ev := range journey {
		s.Require().NoError(pub.Emit(s.ctx, audit.Event{IdentityID: uid, Action: string(ev)}))
	}
	pub.Close()

	events, err := s.store.ListByIdentity(s.ctx, uid)
	s.Require().NoError(err)
	s.Require().Len(events, len(journey))
	for i, ev := range journey {
		s.Equal(string(ev), events[i].Action)
	}
}

func (s *PublisherSuite) TestClosedPublisherRefusesEvents() {
	pub := NewPublisher(s.store, WithAsyncBuffer(1))
	pub.Close()
	pub.Close()

	s.ErrorIs(pub.Emit(s.ctx, audit.Event{Action: string(audit.EventMessageBroadcast)}), ErrClosed)
}

func (s *PublisherSuite) TestSaturatedBufferReportsFull() {
	blocked := &gatedStore{release: make(chan struct{})}
	pub := NewPublisher(blocked, WithAsyncBuffer(1), WithLogger(s.logger))

	var wg sync.WaitGroup
	var full atomic.Int32
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pub.Emit(s.ctx, audit.Event{Action: string(audit.EventUserCreated)}); err != nil {
				s.ErrorIs(err, ErrBufferFull)
				full.Add(1)
			}
		}()
	}
	wg.Wait()
	close(blocked.release)
	pub.Close()

	s.Positive(full.Load(), "one worker slot and one buffer slot cannot take eight events")
}

func (s *PublisherSuite) TestStoreFailuresDoNotStopTheWorker() {
	flaky := &flakyStore{failFirst: 2, next: s.store}
	pub := NewPublisher(flaky, WithAsyncBuffer(8), WithLogger(s.logger))
	uid := id.IdentityID("uid_flaky")
	for range 4 {
		s.Require().NoError(pub.Emit(s.ctx, audit.Event{IdentityID: uid, Action: string(audit.EventLivenessRejected)}))
	}
	pub.Close()

	events, err := s.store.ListByIdentity(s.ctx, uid)
	s.Require().NoError(err)
	s.Len(events, 2, "failed appends are dropped, later ones still land")
}

func TestListNeedsAListingStore(t *testing.T) {
	pub := NewPublisher(&gatedStore{})
	_, err := pub.List(context.Background(), "uid_x")
	require.ErrorIs(t, err, ErrNoLister)
	assert.NoError(t, pub.Emit(context.Background(), audit.Event{Action: "sink_only"}))
}

// gatedStore blocks appends until release is closed. It cannot list, like
// the Kafka sink.
type gatedStore struct {
	release chan struct{}
}

func (g *gatedStore) Append(ctx context.Context, _ audit.Event) error {
	if g.release == nil {
		return nil
	}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type flakyStore struct {
	mu        sync.Mutex
	failFirst int
	next      audit.Store
}

func (f *flakyStore) Append(ctx context.Context, ev audit.Event) error {
	f.mu.Lock()
	fail := f.failFirst > 0
	if fail {
		f.failFirst--
	}
	f.mu.Unlock()
	if fail {
		return errors.New("broker unavailable")
	}
	return f.next.Append(ctx, ev)
}
