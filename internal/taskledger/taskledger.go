// Package taskledger is the task gate: it checks a user's standing on the
// external task board and records admission into the Profile Store.
package taskledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"clocklayer/internal/profile"
	"clocklayer/internal/profile/models"
	id "clocklayer/pkg/domain"
	"clocklayer/pkg/requestcontext"
)

// MinimumPoints is the board score required for admission.
const MinimumPoints = 2000

var (
	// ErrInsufficientPoints means the claimed or verified score is below MinimumPoints.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrUnknownAccount means the board has no account with the given id.
	ErrUnknownAccount = errors.New("unknown task board account")
)

// Judge confirms a task board account and admits the identity.
type Judge interface {
	Confirm(ctx context.Context, identityID id.IdentityID, externalID string, points int) error
}

// Account is the board's view of a participant.
type Account struct {
	ID     string
	Points int
}

// Board looks up participants on the task board.
type Board interface {
	Account(ctx context.Context, externalID string) (*Account, error)
}

// Service implements Judge on top of a Board and the Profile Store.
type Service struct {
	profiles profile.Store
	board    Board
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithBoard enables server-side score verification. Without a board the
// points reported by the task widget are trusted.
func WithBoard(board Board) Option {
	return func(s *Service) {
		s.board = board
	}
}

func New(profiles profile.Store, opts ...Option) *Service {
	s := &Service{
		profiles: profiles,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Confirm records admission for identityID. Confirming an already admitted
// identity is a no-op, so callers may retry.
func (s *Service) Confirm(ctx context.Context, identityID id.IdentityID, externalID string, points int) error {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return fmt.Errorf("task board account id is required: %w", ErrUnknownAccount)
	}
	if points < MinimumPoints {
		return ErrInsufficientPoints
	}

	if s.board != nil {
		acct, err := s.board.Account(ctx, externalID)
		if err != nil {
			return fmt.Errorf("look up task board account: %w", err)
		}
		if acct.Points < MinimumPoints {
			s.logger.WarnContext(ctx, "task board score below minimum",
				"request_id", requestcontext.RequestID(ctx),
				"identity_id", identityID,
				"claimed", points,
				"verified", acct.Points,
			)
			return ErrInsufficientPoints
		}
		points = acct.Points
	}

	now := requestcontext.Now(ctx)
	rec, err := s.profiles.MergeWrite(ctx, identityID, models.Admission(externalID, points, now))
	if err != nil {
		return fmt.Errorf("record admission: %w", err)
	}
	s.logger.InfoContext(ctx, "task gate passed",
		"request_id", requestcontext.RequestID(ctx),
		"identity_id", identityID,
		"points", rec.TaskLedgerPoints,
	)
	return nil
}
