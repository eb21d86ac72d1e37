// Package dashboard serves a member's profile card and the people they
// referred.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"clocklayer/internal/identity"
	"clocklayer/internal/profile"
	"clocklayer/internal/profile/models"
	"clocklayer/internal/referral"
	id "clocklayer/pkg/domain"
	dErrors "clocklayer/pkg/domain-errors"
	"clocklayer/pkg/platform/sentinel"
	"clocklayer/pkg/requestcontext"
)

const (
	avatarFallback = "https://placehold.co/100x100.png?text="
	maxNameLength  = 100
)

// Card is the member's own profile as shown on the dashboard.
type Card struct {
	ID               id.IdentityID `json:"id"`
	Name             string        `json:"name"`
	Username         string        `json:"username"`
	AvatarURL        string        `json:"avatarUrl"`
	Phone            string        `json:"phone,omitempty"`
	Admitted         bool          `json:"admitted"`
	TaskLedgerPoints int           `json:"taskLedgerPoints"`
	ReferralLink     string        `json:"referralLink"`
	Device           Device        `json:"signupDevice"`
	CreatedAt        *time.Time    `json:"createdAt,omitempty"`
	AdmittedAt       *time.Time    `json:"admittedAt,omitempty"`
}

// Referral is one person who signed up with the member's code.
type Referral struct {
	ID        id.IdentityID `json:"id"`
	Name      string        `json:"name"`
	Username  string        `json:"username"`
	AvatarURL string        `json:"avatarUrl"`
	Admitted  bool          `json:"admitted"`
	JoinedAt  *time.Time    `json:"joinedAt,omitempty"`
}

// Update edits the card. Nil fields are left alone.
type Update struct {
	Name     *string `json:"name"`
	Username *string `json:"username"`
	Phone    *string `json:"phone"`
}

type Service struct {
	profiles      profile.Store
	publicBaseURL string
	logger        *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(profiles profile.Store, publicBaseURL string, opts ...Option) *Service {
	s := &Service{
		profiles:      profiles,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Me(ctx context.Context, identityID id.IdentityID) (*Card, error) {
	if identityID.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	rec, err := s.profiles.Get(ctx, identityID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load profile")
	}
	return s.card(rec), nil
}

// UpdateMe merge-writes the edited fields. The record must already exist;
// the dashboard never creates profiles.
func (s *Service) UpdateMe(ctx context.Context, identityID id.IdentityID, upd Update) (*Card, error) {
	if _, err := s.Me(ctx, identityID); err != nil {
		return nil, err
	}
	patch, err := upd.patch()
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return s.Me(ctx, identityID)
	}
	rec, err := s.profiles.MergeWrite(ctx, identityID, patch)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update profile")
	}
	s.logger.InfoContext(ctx, "profile edited from dashboard",
		"request_id", requestcontext.RequestID(ctx),
		"identity_id", identityID.String(),
	)
	return s.card(rec), nil
}

func (s *Service) Referrals(ctx context.Context, identityID id.IdentityID) ([]Referral, error) {
	if identityID.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	recs, err := s.profiles.Find(ctx, referredBy(identityID))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load referrals")
	}
	return toReferrals(recs), nil
}

// WatchReferrals streams the referral list, then a new list after every
// change, until ctx ends. Slow readers only see the latest list.
func (s *Service) WatchReferrals(ctx context.Context, identityID id.IdentityID) (<-chan []Referral, error) {
	if identityID.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	out := make(chan []Referral, 1)
	sub, err := s.profiles.Subscribe(ctx, referredBy(identityID), func(snap models.Snapshot) {
		select {
		case <-out:
		default:
		}
		out <- toReferrals(snap.Records)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to watch referrals")
	}
	go func() {
		<-ctx.Done()
		// Close waits for a callback in progress, so nothing sends after it.
		_ = sub.Close()
		close(out)
	}()
	return out, nil
}

func (s *Service) card(rec *models.UserRecord) *Card {
	c := &Card{
		ID:               rec.ID,
		Name:             rec.Name,
		Username:         rec.Username,
		AvatarURL:        avatarFor(rec),
		Admitted:         rec.Admitted(),
		TaskLedgerPoints: rec.TaskLedgerPoints,
		Device:           DescribeDevice(rec.SignupUserAgent),
		CreatedAt:        rec.CreatedAt,
		AdmittedAt:       rec.AdmittedAt,
	}
	if rec.Phone != nil {
		c.Phone = *rec.Phone
	}
	if rec.Username != "" {
		c.ReferralLink = s.publicBaseURL + "/waitlist?ref=" + url.QueryEscape(rec.Username)
	}
	return c
}

func (u Update) patch() (models.Patch, error) {
	var p models.Patch
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return p, dErrors.New(dErrors.CodeValidation, "name is required")
		}
		if utf8.RuneCountInString(name) > maxNameLength {
			return p, dErrors.New(dErrors.CodeValidation, "name is too long")
		}
		p.Name = &name
	}
	if u.Username != nil {
		username := strings.TrimSpace(*u.Username)
		if !referral.ValidCode(username) {
			return p, dErrors.New(dErrors.CodeValidation, "username may only contain letters, digits, '_' and '.'")
		}
		p.Username = &username
	}
	if u.Phone != nil {
		phone := identity.NormalizePhone(*u.Phone)
		if !identity.ValidPhone(phone) {
			return p, dErrors.New(dErrors.CodeValidation, "phone number must be in international format, e.g. +15551234567")
		}
		p.Phone = &phone
	}
	return p, nil
}

func referredBy(identityID id.IdentityID) models.Filter {
	return models.Filter{ReferredBy: &identityID}
}

func toReferrals(recs []*models.UserRecord) []Referral {
	out := make([]Referral, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Referral{
			ID:        rec.ID,
			Name:      rec.Name,
			Username:  rec.Username,
			AvatarURL: avatarFor(rec),
			Admitted:  rec.Admitted(),
			JoinedAt:  rec.CreatedAt,
		})
	}
	return out
}

func avatarFor(rec *models.UserRecord) string {
	if rec.ProfileImageURL != nil && *rec.ProfileImageURL != "" {
		return *rec.ProfileImageURL
	}
	initial := "?"
	if r, _ := utf8.DecodeRuneInString(strings.TrimSpace(rec.Name)); r != utf8.RuneError {
		initial = string(r)
	}
	return avatarFallback + url.QueryEscape(initial)
}
