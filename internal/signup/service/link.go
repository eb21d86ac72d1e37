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
	"clocklayer/pkg/platform/sentinel"
	"clocklayer/pkg/requestcontext"
)

const (
	defaultName     = "Pioneer"
	usernamePrefix  = "pioneer_"
	dashboardPath   = "/dashboard"
	avatarSizeToken = "_normal"
)

// Start opens a wizard on the connect step.
func (s *Service) Start(ctx context.Context, referralCode string) (*models.View, error) {
	sess := models.NewSession(id.NewSessionID(), strings.TrimSpace(referralCode), requestcontext.Now(ctx), s.sessionTTL)
	return asView(s.run(ctx, "start", sess.ID, func(ctx context.Context) (any, error) {
		if err := s.save(ctx, sess); err != nil {
			return nil, err
		}
		return s.view(sess), nil
	}))
}

// LinkIdentity connects a social account on the connect step. Users who
// already passed the task gate skip straight to the dashboard; everyone else
// gets a profile record seeded from the provider and moves to the profile step.
func (s *Service) LinkIdentity(ctx context.Context, sessionID id.SessionID, req models.LinkRequest) (*models.LinkOutcome, error) {
	v, err := s.run(ctx, "link_identity", sessionID, func(ctx context.Context) (any, error) {
		return s.linkIdentity(ctx, sessionID, req)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.LinkOutcome), nil
}

func (s *Service) linkIdentity(ctx context.Context, sessionID id.SessionID, req models.LinkRequest) (*models.LinkOutcome, error) {
	switch req.Provider {
	case identity.ProviderTwitter, identity.ProviderGoogle:
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "unsupported identity provider")
	}
	if strings.TrimSpace(req.Credential) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "provider credential is required")
	}

	sess, err := s.prepare(ctx, sessionID, models.StepConnect)
	if err != nil {
		return nil, err
	}

	linked, err := s.gateway.LinkViaPopup(ctx, req.Provider, req.Credential)
	if err != nil {
		if errors.Is(err, identity.ErrAccountExists) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict,
				"an account already exists with the same email address, sign in with the original method")
		}
		return nil, externalError(err, "could not connect your account, please try again")
	}

	existing, err := s.profiles.Get(ctx, linked.ID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	if existing != nil && existing.Admitted() {
		return s.welcomeBack(ctx, sess, existing)
	}

	now := requestcontext.Now(ctx)
	name, username, photo := defaultsFrom(linked)
	userAgent := requestcontext.UserAgent(ctx)
	patch := profilemodels.Patch{
		Name:            &name,
		Username:        &username,
		ProfileImageURL: photo,
		SignupUserAgent: &userAgent,
		LastLoginAt:     &now,
	}
	created := existing == nil
	var referrer id.IdentityID
	if created {
		patch.CreatedAt = &now
		if ref, ok := s.referrals.Resolve(ctx, sess.ReferralCode); ok && ref != linked.ID {
			referrer = ref
			patch.ReferredBy = &referrer
		}
	}

	rec, err := s.profiles.MergeWrite(ctx, linked.ID, patch)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save profile")
	}

	sess.Link(linked.ID, draftFrom(rec))
	if err := sess.Advance(); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	token, expiresAt, err := s.tokens.IssueAccessToken(linked.ID, sess.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}

	kind := "existing"
	if created {
		kind = "new"
		s.logAudit(ctx, audit.EventUserCreated, linked.ID)
		if s.metrics != nil {
			s.metrics.IncrementUsersCreated()
		}
	}
	s.logAudit(ctx, audit.EventIdentityLinked, linked.ID, "reason", kind, "provider", req.Provider)
	if !referrer.IsZero() {
		s.logAudit(ctx, audit.EventReferralAttributed, linked.ID, "subject", referrer.String())
	}
	if s.metrics != nil {
		s.metrics.IncrementIdentityLinks(kind)
	}

	return &models.LinkOutcome{
		View:        s.view(sess),
		AccessToken: token,
		ExpiresAt:   expiresAt,
	}, nil
}

// welcomeBack finishes the wizard for an admitted user without touching
// their record.
func (s *Service) welcomeBack(ctx context.Context, sess *models.Session, rec *profilemodels.UserRecord) (*models.LinkOutcome, error) {
	sess.Link(rec.ID, draftFrom(rec))
	sess.Admit()
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	token, expiresAt, err := s.tokens.IssueAccessToken(rec.ID, sess.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}
	s.logAudit(ctx, audit.EventIdentityLinked, rec.ID, "reason", "returning")
	if s.metrics != nil {
		s.metrics.IncrementIdentityLinks("returning")
	}
	return &models.LinkOutcome{
		View:        s.view(sess),
		AccessToken: token,
		ExpiresAt:   expiresAt,
		Returning:   true,
		Redirect:    dashboardPath,
	}, nil
}

func defaultsFrom(linked *identity.LinkResult) (name, username string, photo *string) {
	name = strings.TrimSpace(linked.DisplayName)
	if name == "" {
		name = defaultName
	}
	username = strings.TrimSpace(linked.Handle)
	if username == "" {
		username = usernamePrefix + linked.ID.Short(4)
	}
	if linked.AvatarURL != "" {
		p := strings.Replace(linked.AvatarURL, avatarSizeToken, "", 1)
		photo = &p
	}
	return name, username, photo
}

func draftFrom(rec *profilemodels.UserRecord) models.Draft {
	d := models.Draft{
		Name:            rec.Name,
		Username:        rec.Username,
		ProfileImageURL: rec.ProfileImageURL,
	}
	if rec.Phone != nil {
		d.Phone = *rec.Phone
	}
	return d
}
