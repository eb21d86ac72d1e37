package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"clocklayer/pkg/platform/httputil"
	request "clocklayer/pkg/platform/middleware/request"
	"clocklayer/pkg/requestcontext"
)

// Observer counts rejected requests; the platform metrics implement it.
type Observer interface {
	ObserveRateLimited(class string)
}

// Middleware applies per-class limits keyed by the client IP recorded by the
// metadata middleware.
type Middleware struct {
	store    Store
	limits   map[Class]Limit
	logger   *slog.Logger
	observer Observer
	disabled bool
}

type Option func(*Middleware)

// WithLimit overrides the default limit for class.
func WithLimit(class Class, limit Limit) Option {
	return func(m *Middleware) {
		if limit.Requests > 0 && limit.Window > 0 {
			m.limits[class] = limit
		}
	}
}

func WithObserver(o Observer) Option {
	return func(m *Middleware) {
		m.observer = o
	}
}

// WithDisabled turns every limit into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(store Store, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{store: store, logger: logger, limits: make(map[Class]Limit, len(DefaultLimits))}
	for class, limit := range DefaultLimits {
		m.limits[class] = limit
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit returns middleware enforcing class. Store failures let the request
// through.
func (m *Middleware) Limit(class Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limit, ok := m.limits[class]
		if m.disabled || !ok {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			if ip == "" {
				ip = "unknown"
			}

			result, err := m.store.Allow(ctx, Key(class, ip), limit)
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed",
					"class", class,
					"error", err,
					"request_id", request.GetRequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				if m.observer != nil {
					m.observer.ObserveRateLimited(string(class))
				}
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"class", class,
					"request_id", request.GetRequestID(ctx),
				)
				retry := result.RetryAfter(time.Now())
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
					"error":             "rate_limit_exceeded",
					"error_description": "too many requests, try again later",
					"retry_after":       retry,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
