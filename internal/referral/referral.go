// Package referral attributes new sign-ups to the user whose username was
// used as the referral code.
package referral

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"clocklayer/internal/profile"
	"clocklayer/internal/profile/models"
	id "clocklayer/pkg/domain"
	"clocklayer/pkg/requestcontext"
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_.]{1,64}$`)

// ValidCode reports whether code could be a username used as a referral
// code.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// Resolver maps referral codes to referrer identities.
type Resolver struct {
	profiles profile.Store
	logger   *slog.Logger
}

func New(profiles profile.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{profiles: profiles, logger: logger}
}

// Resolve returns the id of the user whose username equals code. Blank or
// malformed codes and lookup failures resolve to nothing; a referral never
// blocks account creation.
func (r *Resolver) Resolve(ctx context.Context, code string) (id.IdentityID, bool) {
	code = strings.TrimSpace(code)
	if !ValidCode(code) {
		return "", false
	}
	recs, err := r.profiles.Find(ctx, models.Filter{Username: code, Limit: 1})
	if err != nil {
		r.logger.WarnContext(ctx, "referral lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"code", code,
			"error", err,
		)
		return "", false
	}
	if len(recs) == 0 {
		return "", false
	}
	return recs[0].ID, true
}
