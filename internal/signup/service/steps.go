package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clocklayer/internal/liveness"
	"clocklayer/internal/signup/models"
	"clocklayer/internal/taskledger"
	id "clocklayer/pkg/domain"
	dErrors "clocklayer/pkg/domain-errors"
	"clocklayer/pkg/platform/audit"
)

// Get returns the session as it stands.
func (s *Service) Get(ctx context.Context, sessionID id.SessionID) (*models.View, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// Confirm accepts the reviewed details and moves on to the liveness check.
func (s *Service) Confirm(ctx context.Context, sessionID id.SessionID) (*models.View, error) {
	return asView(s.run(ctx, "confirm", sessionID, func(ctx context.Context) (any, error) {
		sess, err := s.prepare(ctx, sessionID, models.StepConfirm)
		if err != nil {
			return nil, err
		}
		if err := sess.Advance(); err != nil {
			return nil, err
		}
		if err := s.save(ctx, sess); err != nil {
			return nil, err
		}
		return s.view(sess), nil
	}))
}

// JumpTo navigates to a step already reached. The draft is kept.
func (s *Service) JumpTo(ctx context.Context, sessionID id.SessionID, step models.Step) (*models.View, error) {
	return asView(s.run(ctx, "jump", sessionID, func(ctx context.Context) (any, error) {
		sess, err := s.loadForNavigation(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if err := sess.JumpTo(step); err != nil {
			return nil, err
		}
		if err := s.save(ctx, sess); err != nil {
			return nil, err
		}
		return s.view(sess), nil
	}))
}

// Back moves one step back. The draft is kept.
func (s *Service) Back(ctx context.Context, sessionID id.SessionID) (*models.View, error) {
	return asView(s.run(ctx, "back", sessionID, func(ctx context.Context) (any, error) {
		sess, err := s.loadForNavigation(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if err := sess.Retreat(); err != nil {
			return nil, err
		}
		if err := s.save(ctx, sess); err != nil {
			return nil, err
		}
		return s.view(sess), nil
	}))
}

// loadForNavigation loads the session for Back and JumpTo. Once an identity
// is linked only that identity may move the session around.
func (s *Service) loadForNavigation(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IdentityID.IsZero() && sess.Step != models.StepAdmitted {
		if err := s.authorize(ctx, sess); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// SubmitLiveness sends one still frame to the liveness judge. The session
// moves on only for a human verdict with confidence above the threshold.
func (s *Service) SubmitLiveness(ctx context.Context, sessionID id.SessionID, frame []byte, contentType string) (*models.View, error) {
	return asView(s.run(ctx, "submit_liveness", sessionID, func(ctx context.Context) (any, error) {
		return s.submitLiveness(ctx, sessionID, liveness.Image{ContentType: contentType, Data: frame})
	}))
}

func (s *Service) submitLiveness(ctx context.Context, sessionID id.SessionID, img liveness.Image) (*models.View, error) {
	sess, err := s.prepare(ctx, sessionID, models.StepLiveness)
	if err != nil {
		return nil, err
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}

	verdict, err := s.liveness.Evaluate(ctx, img)
	if err != nil {
		return nil, externalError(err, "something went wrong during verification")
	}
	if !verdict.Passes() {
		s.logAudit(ctx, audit.EventLivenessRejected, sess.IdentityID,
			"reason", fmt.Sprintf("human=%t confidence=%.2f", verdict.IsHuman, verdict.Confidence))
		return nil, dErrors.New(dErrors.CodeVerdictRejected, "could not verify you as a human, please try again")
	}

	if err := sess.Advance(); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// CompleteTasks handles the task widget's connect callback. Scores below the
// minimum are rejected without contacting the ledger. Confirmation is
// idempotent, so a retried callback is safe.
func (s *Service) CompleteTasks(ctx context.Context, sessionID id.SessionID, tc models.TaskConnect) (*models.View, error) {
	return asView(s.run(ctx, "complete_tasks", sessionID, func(ctx context.Context) (any, error) {
		return s.completeTasks(ctx, sessionID, tc)
	}))
}

func (s *Service) completeTasks(ctx context.Context, sessionID id.SessionID, tc models.TaskConnect) (*models.View, error) {
	sess, err := s.prepare(ctx, sessionID, models.StepTasks)
	if err != nil {
		return nil, err
	}
	externalID := strings.TrimSpace(tc.ExternalID)
	if externalID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "task board account is required")
	}
	if tc.Points < taskledger.MinimumPoints {
		return nil, insufficientPoints(tc.Points)
	}

	if err := s.ledger.Confirm(ctx, sess.IdentityID, externalID, tc.Points); err != nil {
		switch {
		case errors.Is(err, taskledger.ErrInsufficientPoints):
			return nil, dErrors.Wrap(err, dErrors.CodeVerdictRejected,
				fmt.Sprintf("the task board reports fewer than %d points", taskledger.MinimumPoints))
		case errors.Is(err, taskledger.ErrUnknownAccount):
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "task board account not found")
		}
		return nil, externalError(err, "could not complete task verification")
	}

	sess.Admit()
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	if s.counter != nil {
		s.counter.Bump(sess.IdentityID)
	}
	s.logAudit(ctx, audit.EventWaitlistAdmitted, sess.IdentityID, "subject", externalID)
	if s.metrics != nil {
		s.metrics.IncrementAdmissions()
	}
	return s.view(sess), nil
}

func insufficientPoints(points int) error {
	return dErrors.New(dErrors.CodeVerdictRejected,
		fmt.Sprintf("you have %d points, but you need %d, complete more tasks", points, taskledger.MinimumPoints))
}
