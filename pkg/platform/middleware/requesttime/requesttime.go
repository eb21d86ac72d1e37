// Package requesttime pins a single "now" for the whole request so that
// timestamps written by one signup step (createdAt, lastLoginAt, admittedAt)
// agree with each other.
package requesttime

import (
	"net/http"
	"time"

	"clocklayer/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
