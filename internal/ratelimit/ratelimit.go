// Package ratelimit throttles the signup endpoints that cost money or leak
// information: SMS code sends and identity linking. Limits are sliding
// windows keyed by client IP.
package ratelimit

import (
	"context"
	"time"
)

// Class groups endpoints that share a limit.
type Class string

const (
	ClassPhoneCode Class = "phone_code"
	ClassIdentity  Class = "identity"
	ClassSignup    Class = "signup"
)

// Limit allows Requests per sliding Window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// DefaultLimits are applied when no override is configured.
var DefaultLimits = map[Class]Limit{
	ClassPhoneCode: {Requests: 5, Window: 15 * time.Minute},
	ClassIdentity:  {Requests: 20, Window: time.Minute},
	ClassSignup:    {Requests: 30, Window: time.Minute},
}

// Result describes one admission decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the oldest request in the
// window expires, at least one.
func (r *Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// Store records requests and decides whether the next one fits the window.
type Store interface {
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)
}

// Key builds the bucket key for a class and client.
func Key(class Class, client string) string {
	return "ratelimit:" + string(class) + ":" + client
}
