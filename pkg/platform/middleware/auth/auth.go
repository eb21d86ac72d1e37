package auth

import (
	"log/slog"
	"net/http"
	"strings"

	id "clocklayer/pkg/domain"
	dErrors "clocklayer/pkg/domain-errors"
	"clocklayer/pkg/platform/httputil"
	request "clocklayer/pkg/platform/middleware/request"
	"clocklayer/pkg/requestcontext"
)

// JWTValidator validates access tokens issued after the identity step.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims is the subset of token claims the middleware needs.
type JWTClaims struct {
	IdentityID string
	SessionID  string
}

var (
	errMissingToken = dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header")
	errBadToken     = dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token")
)

func bearer(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return token, ok && token != ""
}

// authenticate returns r with a context carrying the token's identity and, when the
// claim parses, its wizard session. reason is set on failure for logging.
func authenticate(r *http.Request, validator JWTValidator) (authed *http.Request, reason string, err error) {
	token, ok := bearer(r)
	if !ok {
		return nil, "missing token", errMissingToken
	}
	claims, verr := validator.ValidateToken(token)
	if verr != nil {
		return nil, "invalid token: " + verr.Error(), errBadToken
	}
	identityID, perr := id.ParseIdentityID(claims.IdentityID)
	if perr != nil {
		return nil, "malformed identity claim", errBadToken
	}
	c := requestcontext.WithIdentityID(r.Context(), identityID)
	if sid, serr := id.ParseSessionID(claims.SessionID); serr == nil {
		c = requestcontext.WithSessionID(c, sid)
	}
	return r.WithContext(c), "", nil
}

// RequireAuth rejects requests without a valid bearer token and stores the
// token's identity and wizard session in the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authed, reason, err := authenticate(r, validator)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized request",
					"reason", reason,
					"path", r.URL.Path,
					"request_id", request.GetRequestID(r.Context()),
				)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, authed)
		})
	}
}

// OptionalAuth behaves like RequireAuth when an Authorization header is sent
// and passes anonymous requests through untouched. Signup routes use it
// because the first steps run before any token exists.
func OptionalAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		required := RequireAuth(validator, logger)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			required.ServeHTTP(w, r)
		})
	}
}
