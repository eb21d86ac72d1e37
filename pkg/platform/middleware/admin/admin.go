// Package admin gates operator-only routes.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "clocklayer/pkg/domain-errors"
	"clocklayer/pkg/platform/httputil"
	"clocklayer/pkg/requestcontext"
)

// TokenHeader carries the broadcast panel's shared secret.
const TokenHeader = "X-Admin-Token"

// RequireAdminToken admits requests whose TokenHeader equals secret. An empty
// secret turns the panel off, so every request is refused.
func RequireAdminToken(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	want := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(TokenHeader))
			if len(want) > 0 && subtle.ConstantTimeCompare(got, want) == 1 {
				next.ServeHTTP(w, r)
				return
			}
			logger.WarnContext(r.Context(), "admin request refused",
				"request_id", requestcontext.RequestID(r.Context()),
				"panel_enabled", len(want) > 0,
				"path", r.URL.Path,
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin token required"))
		})
	}
}
