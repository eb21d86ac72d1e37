package service

import (
	"context"
	"errors"
	"strings"

	"clocklayer/internal/identity"
	profilemodels "clocklayer/internal/profile/models"
	"clocklayer/internal/signup/models"
	id "clocklayer/pkg/domain"
	dErrors "clocklayer/pkg/domain-errors"
	"clocklayer/pkg/platform/audit"
)

// RequestPhoneCode sends a one-time code to phone. A failed send spends the
// challenge token; the client must solve a fresh challenge before retrying.
func (s *Service) RequestPhoneCode(ctx context.Context, sessionID id.SessionID, phone, challengeToken string) (*models.View, error) {
	return asView(s.run(ctx, "request_phone_code", sessionID, func(ctx context.Context) (any, error) {
		return s.requestPhoneCode(ctx, sessionID, phone, challengeToken)
	}))
}

func (s *Service) requestPhoneCode(ctx context.Context, sessionID id.SessionID, phone, challengeToken string) (*models.View, error) {
	sess, err := s.prepare(ctx, sessionID, models.StepPhone)
	if err != nil {
		return nil, err
	}
	if sess.Phone.Subphase != models.PhoneRequest {
		return nil, dErrors.New(dErrors.CodeInvalidState, "a code was already sent, change the number to request another")
	}

	phone = identity.NormalizePhone(phone)
	if phone == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "phone number is required")
	}
	if !identity.ValidPhone(phone) {
		return nil, dErrors.New(dErrors.CodeValidation, "phone number must be in international format, e.g. +15551234567")
	}
	challengeToken = strings.TrimSpace(challengeToken)
	if !sess.Challenge.Active() || challengeToken == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "challenge token is required")
	}
	if challengeToken == sess.Challenge.Spent {
		return nil, dErrors.New(dErrors.CodeValidation, "challenge expired, please solve it again")
	}

	handle, err := s.gateway.SendPhoneCode(ctx, phone, challengeToken)
	if err != nil {
		sess.ResetChallenge(challengeToken)
		if saveErr := s.save(ctx, sess); saveErr != nil {
			s.logger.ErrorContext(ctx, "failed to save challenge reset", "error", saveErr)
		}
		switch {
		case errors.Is(err, identity.ErrInvalidPhone):
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "please check the phone number and try again")
		case errors.Is(err, identity.ErrChallengeRejected):
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "challenge failed, please try again")
		}
		return nil, externalError(err, "failed to send the code")
	}

	sess.AwaitCode(phone, string(handle))
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

// VerifyPhoneCode checks the code, stores the number and moves to confirm.
func (s *Service) VerifyPhoneCode(ctx context.Context, sessionID id.SessionID, code string) (*models.View, error) {
	return asView(s.run(ctx, "verify_phone_code", sessionID, func(ctx context.Context) (any, error) {
		return s.verifyPhoneCode(ctx, sessionID, code)
	}))
}

func (s *Service) verifyPhoneCode(ctx context.Context, sessionID id.SessionID, code string) (*models.View, error) {
	sess, err := s.prepare(ctx, sessionID, models.StepPhone)
	if err != nil {
		return nil, err
	}
	if sess.Phone.Subphase != models.PhoneVerify || sess.Phone.Handle == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "verification failed, please request a new code")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "code is required")
	}

	if err := s.gateway.VerifyPhoneCode(ctx, identity.ConfirmationHandle(sess.Phone.Handle), code); err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCode):
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "the code you entered is incorrect")
		case errors.Is(err, identity.ErrCodeExpired):
			sess.ChangePhone()
			if saveErr := s.save(ctx, sess); saveErr != nil {
				s.logger.ErrorContext(ctx, "failed to save expired code", "error", saveErr)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "the code has expired, please request a new one")
		}
		return nil, externalError(err, "could not verify the code")
	}

	phone := sess.Phone.PendingNumber
	if _, err := s.profiles.MergeWrite(ctx, sess.IdentityID, profilemodels.Patch{Phone: &phone}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save phone number")
	}
	sess.Draft.Phone = phone
	if err := sess.Advance(); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventPhoneVerified, sess.IdentityID)
	return s.view(sess), nil
}

// ChangePhoneNumber abandons the code in flight and returns to entering a number.
func (s *Service) ChangePhoneNumber(ctx context.Context, sessionID id.SessionID) (*models.View, error) {
	return asView(s.run(ctx, "change_phone", sessionID, func(ctx context.Context) (any, error) {
		sess, err := s.prepare(ctx, sessionID, models.StepPhone)
		if err != nil {
			return nil, err
		}
		sess.ChangePhone()
		if err := s.save(ctx, sess); err != nil {
			return nil, err
		}
		return s.view(sess), nil
	}))
}
