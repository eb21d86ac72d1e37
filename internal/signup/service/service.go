package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"clocklayer/internal/blob"
	"clocklayer/internal/identity"
	"clocklayer/internal/liveness"
	"clocklayer/internal/platform/metrics"
	"clocklayer/internal/profile"
	"clocklayer/internal/signup/models"
	"clocklayer/internal/taskledger"
	"clocklayer/internal/waitlist"
	id "clocklayer/pkg/domain"
	dErrors "clocklayer/pkg/domain-errors"
	"clocklayer/pkg/platform/audit"
	"clocklayer/pkg/platform/sentinel"
	"clocklayer/pkg/requestcontext"
)

// DefaultSessionTTL is how long an idle wizard session is kept.
const DefaultSessionTTL = 24 * time.Hour

// SessionStore persists wizard sessions. Get returns sentinel.ErrNotFound
// for unknown or expired sessions.
type SessionStore interface {
	Save(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
}

type ReferralResolver interface {
	Resolve(ctx context.Context, code string) (id.IdentityID, bool)
}

// Counter is the live waitlist count. Bump shows an admission before the
// subscription catches up.
type Counter interface {
	State() waitlist.State
	Bump(identityID id.IdentityID)
}

// TokenIssuer mints the access token that binds an identity to a session.
type TokenIssuer interface {
	IssueAccessToken(identityID id.IdentityID, sessionID id.SessionID) (string, time.Time, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service runs the signup wizard. Each operation loads the session, checks
// the step and caller, talks to collaborators, and saves the session only
// when the operation succeeds.
type Service struct {
	sessions  SessionStore
	gateway   identity.Gateway
	profiles  profile.Store
	blobs     blob.Store
	liveness  liveness.Judge
	ledger    taskledger.Judge
	referrals ReferralResolver
	counter   Counter
	tokens    TokenIssuer

	sessionTTL     time.Duration
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	inflight       singleflight.Group

	busyMu sync.Mutex
	busy   map[id.SessionID]struct{}
}

// Deps groups the collaborators. All fields are required.
type Deps struct {
	Sessions  SessionStore
	Gateway   identity.Gateway
	Profiles  profile.Store
	Blobs     blob.Store
	Liveness  liveness.Judge
	Ledger    taskledger.Judge
	Referrals ReferralResolver
	Counter   Counter
	Tokens    TokenIssuer
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

func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(deps Deps, opts ...Option) *Service {
	s := &Service{
		sessions:   deps.Sessions,
		gateway:    deps.Gateway,
		profiles:   deps.Profiles,
		blobs:      deps.Blobs,
		liveness:   deps.Liveness,
		ledger:     deps.Ledger,
		referrals:  deps.Referrals,
		counter:    deps.Counter,
		tokens:     deps.Tokens,
		sessionTTL: DefaultSessionTTL,
		logger:     slog.Default(),
		tracer:     otel.Tracer("clocklayer/internal/signup"),
		busy:       make(map[id.SessionID]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run wraps an operation with a span and metrics. A repeat of an operation
// already running for the same session and caller joins it and shares its
// result, whatever its payload. Any other operation on a busy session fails
// with CodeConflict.
func (s *Service) run(ctx context.Context, op string, sessionID id.SessionID, fn func(ctx context.Context) (any, error)) (any, error) {
	ctx, span := s.tracer.Start(ctx, "signup."+op, trace.WithAttributes(
		attribute.String("signup.session_id", sessionID.String()),
	))
	defer span.End()

	flightKey := sessionID.String() + "|" + op + "|" + requestcontext.IdentityID(ctx).String()
	v, err, shared := s.inflight.Do(flightKey, func() (any, error) {
		if !s.claim(sessionID) {
			return nil, dErrors.New(dErrors.CodeConflict, "step already in progress")
		}
		defer s.release(sessionID)
		return fn(ctx)
	})
	if shared {
		span.SetAttributes(attribute.Bool("signup.coalesced", true))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	s.observe(op, err)
	return v, err
}

func (s *Service) claim(sessionID id.SessionID) bool {
	s.busyMu.Lock()
	defer s.busyMu.Unlock()
	if _, taken := s.busy[sessionID]; taken {
		return false
	}
	s.busy[sessionID] = struct{}{}
	return true
}

func (s *Service) release(sessionID id.SessionID) {
	s.busyMu.Lock()
	delete(s.busy, sessionID)
	s.busyMu.Unlock()
}

func (s *Service) observe(op string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
	}
	s.metrics.ObserveStep(op, outcome)
}

func (s *Service) load(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return nil, dErrors.New(dErrors.CodeNotFound, "signup session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load signup session")
	}
	if sess.Expired(requestcontext.Now(ctx)) {
		return nil, dErrors.New(dErrors.CodeNotFound, "signup session not found")
	}
	return sess, nil
}

func (s *Service) save(ctx context.Context, sess *models.Session) error {
	sess.Touch(requestcontext.Now(ctx), s.sessionTTL)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save signup session")
	}
	return nil
}

// authorize checks that the caller holds the identity linked to sess. A
// caller who does not is sent back to the connect step.
func (s *Service) authorize(ctx context.Context, sess *models.Session) error {
	caller := requestcontext.IdentityID(ctx)
	if !sess.IdentityID.IsZero() && caller == sess.IdentityID {
		return nil
	}
	s.logger.WarnContext(ctx, "signup caller not authenticated for session, resetting to connect",
		"request_id", requestcontext.RequestID(ctx),
		"session_id", sess.ID.String(),
		"step", sess.Step.String(),
	)
	sess.ResetToConnect()
	if err := s.save(ctx, sess); err != nil {
		s.logger.ErrorContext(ctx, "failed to reset signup session", "error", err)
	}
	return dErrors.New(dErrors.CodeUnauthorized, "connect your account again to continue")
}

// prepare loads the session, authorizes the caller past the connect step
// and checks the session is on step.
func (s *Service) prepare(ctx context.Context, sessionID id.SessionID, step models.Step) (*models.Session, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Step > models.StepConnect && sess.Step != models.StepAdmitted {
		if err := s.authorize(ctx, sess); err != nil {
			return nil, err
		}
	}
	if sess.Step != step {
		return nil, dErrors.New(dErrors.CodeInvalidState,
			"operation requires step "+step.String()+", session is on "+sess.Step.String())
	}
	return sess, nil
}

func (s *Service) view(sess *models.Session) *models.View {
	v := &models.View{Session: sess}
	if s.counter != nil {
		v.Waitlist = s.counter.State()
	}
	return v
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, identityID id.IdentityID, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	args := append([]any{"identity_id", identityID.String(), "request_id", requestID, "event", string(event), "log_type", "audit"}, attributes...)
	s.logger.InfoContext(ctx, string(event), args...)
	if s.auditPublisher == nil {
		return
	}
	ev := audit.Event{
		IdentityID: identityID,
		Action:     string(event),
		RequestID:  requestID,
	}
	for i := 0; i+1 < len(attributes); i += 2 {
		key, _ := attributes[i].(string)
		val, _ := attributes[i+1].(string)
		switch key {
		case "subject":
			ev.Subject = val
		case "reason":
			ev.Reason = val
		}
	}
	if err := s.auditPublisher.Emit(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}

func asView(v any, err error) (*models.View, error) {
	if err != nil {
		return nil, err
	}
	return v.(*models.View), nil
}

func externalError(err error, msg string) error {
	return dErrors.Wrap(err, dErrors.CodeExternalService, msg)
}
