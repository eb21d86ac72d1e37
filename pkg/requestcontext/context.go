// Package requestcontext carries request-scoped values through a context.
// Middleware writes them and services read them, so this package must not
// import net/http.
package requestcontext

import (
	"context"
	"time"

	id "clocklayer/pkg/domain"
)

type key int

const (
	keyIdentity key = iota
	keySession
	keyClientIP
	keyUserAgent
	keyRequestID
	keyNow
)

func value[T any](ctx context.Context, k key) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}

// IdentityID is the identity proven by the access token, or empty for
// anonymous requests.
func IdentityID(ctx context.Context) id.IdentityID {
	v, _ := value[id.IdentityID](ctx, keyIdentity)
	return v
}

func WithIdentityID(ctx context.Context, identityID id.IdentityID) context.Context {
	return context.WithValue(ctx, keyIdentity, identityID)
}

// SessionID is the wizard session named in the access token.
func SessionID(ctx context.Context) id.SessionID {
	v, _ := value[id.SessionID](ctx, keySession)
	return v
}

func WithSessionID(ctx context.Context, sessionID id.SessionID) context.Context {
	return context.WithValue(ctx, keySession, sessionID)
}

func ClientIP(ctx context.Context) string {
	v, _ := value[string](ctx, keyClientIP)
	return v
}

func UserAgent(ctx context.Context) string {
	v, _ := value[string](ctx, keyUserAgent)
	return v
}

// WithClientMetadata stores the caller's address and User-Agent. Rate
// limiting and audit read them back.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	return context.WithValue(context.WithValue(ctx, keyClientIP, clientIP), keyUserAgent, userAgent)
}

func RequestID(ctx context.Context) string {
	v, _ := value[string](ctx, keyRequestID)
	return v
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// Now is the instant the request started. Background jobs without one get
// the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := value[time.Time](ctx, keyNow); ok {
		return t
	}
	return time.Now()
}

// WithTime pins Now for the rest of the request. Tests use it to freeze time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, keyNow, t)
}
