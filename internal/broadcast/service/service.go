// Package service runs the admin broadcast feed and member inboxes.
package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"clocklayer/internal/broadcast/models"
	"clocklayer/internal/platform/metrics"
	id "clocklayer/pkg/domain"
	dErrors "clocklayer/pkg/domain-errors"
	"clocklayer/pkg/platform/audit"
	"clocklayer/pkg/requestcontext"
)

const (
	// InboxLimit caps how many messages an inbox shows.
	InboxLimit = 100

	maxTitleLength   = 200
	maxContentLength = 10000
)

// Store persists messages and read markers. LastRead returns nil for an
// identity that never opened the inbox.
type Store interface {
	Append(ctx context.Context, msg models.Message) error
	List(ctx context.Context, limit int) ([]models.Message, error)
	LastRead(ctx context.Context, identityID id.IdentityID) (*time.Time, error)
	MarkRead(ctx context.Context, identityID id.IdentityID, at time.Time) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics

	mu       sync.Mutex
	watchers map[chan struct{}]struct{}
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		logger:   slog.Default(),
		watchers: make(map[chan struct{}]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Broadcast appends a message to every member's inbox.
func (s *Service) Broadcast(ctx context.Context, title, content string) (*models.Message, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "title and content are required")
	}
	if len(title) > maxTitleLength {
		return nil, dErrors.New(dErrors.CodeValidation, "title is too long")
	}
	if len(content) > maxContentLength {
		return nil, dErrors.New(dErrors.CodeValidation, "content is too long")
	}

	msg := models.Message{
		ID:        id.NewMessageID(),
		Title:     title,
		Content:   content,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.Append(ctx, msg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save message")
	}

	s.logger.InfoContext(ctx, string(audit.EventMessageBroadcast),
		"request_id", requestcontext.RequestID(ctx),
		"message_id", msg.ID.String(),
		"event", string(audit.EventMessageBroadcast),
		"log_type", "audit",
	)
	if s.auditPublisher != nil {
		if err := s.auditPublisher.Emit(ctx, audit.Event{
			Action:    string(audit.EventMessageBroadcast),
			Subject:   msg.ID.String(),
			RequestID: requestcontext.RequestID(ctx),
			ActorID:   "admin",
		}); err != nil {
			s.logger.WarnContext(ctx, "failed to emit audit event", "error", err)
		}
	}
	if s.metrics != nil {
		s.metrics.IncrementMessagesSent()
	}
	s.notify()
	return &msg, nil
}

// Inbox returns the identity's messages, newest first, with the unread count.
func (s *Service) Inbox(ctx context.Context, identityID id.IdentityID) (*models.Inbox, error) {
	if identityID.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	messages, err := s.store.List(ctx, InboxLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load messages")
	}
	lastRead, err := s.store.LastRead(ctx, identityID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load read marker")
	}
	return models.NewInbox(messages, lastRead), nil
}

// MarkRead marks everything up to now as read and returns the updated inbox.
func (s *Service) MarkRead(ctx context.Context, identityID id.IdentityID) (*models.Inbox, error) {
	if identityID.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := s.store.MarkRead(ctx, identityID, requestcontext.Now(ctx)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark inbox read")
	}
	return s.Inbox(ctx, identityID)
}

// Watch streams the identity's inbox, then a fresh copy after every
// broadcast, until ctx ends.
func (s *Service) Watch(ctx context.Context, identityID id.IdentityID) <-chan *models.Inbox {
	out := make(chan *models.Inbox, 1)
	signal := make(chan struct{}, 1)
	signal <- struct{}{}

	s.mu.Lock()
	s.watchers[signal] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.watchers, signal)
			s.mu.Unlock()
			close(out)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
			}
			inbox, err := s.Inbox(ctx, identityID)
			if err != nil {
				s.logger.WarnContext(ctx, "inbox refresh failed", "error", err)
				continue
			}
			select {
			case out <- inbox:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (s *Service) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
