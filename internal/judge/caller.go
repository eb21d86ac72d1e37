package judge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"clocklayer/pkg/platform/circuit"
)

// Observer receives call outcomes; the platform metrics implement it.
type Observer interface {
	ObserveJudgeCall(name, outcome string, d time.Duration)
	ObserveBreakerChange(name string, open bool)
}

// Caller applies bounded retry with exponential backoff, a per-attempt
// timeout and a circuit breaker to calls against one collaborator.
//
// While the breaker is open each call gets a single attempt and no retries;
// those attempts double as trials that close the breaker again.
type Caller struct {
	name            string
	breaker         *circuit.Breaker
	maxAttempts     int
	attemptTimeout  time.Duration
	initialInterval time.Duration
	maxInterval     time.Duration
	logger          *slog.Logger
	observer        Observer
}

type CallerOption func(*Caller)

func WithMaxAttempts(n int) CallerOption {
	return func(c *Caller) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithAttemptTimeout(d time.Duration) CallerOption {
	return func(c *Caller) {
		if d > 0 {
			c.attemptTimeout = d
		}
	}
}

func WithBackoff(initial, max time.Duration) CallerOption {
	return func(c *Caller) {
		if initial > 0 {
			c.initialInterval = initial
		}
		if max > 0 {
			c.maxInterval = max
		}
	}
}

func WithBreaker(b *circuit.Breaker) CallerOption {
	return func(c *Caller) {
		c.breaker = b
	}
}

func WithLogger(logger *slog.Logger) CallerOption {
	return func(c *Caller) {
		c.logger = logger
	}
}

func WithObserver(o Observer) CallerOption {
	return func(c *Caller) {
		c.observer = o
	}
}

func NewCaller(name string, opts ...CallerOption) *Caller {
	c := &Caller{
		name:            name,
		maxAttempts:     3,
		attemptTimeout:  10 * time.Second,
		initialInterval: 200 * time.Millisecond,
		maxInterval:     2 * time.Second,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = circuit.New(name)
	}
	return c
}

// Breaker exposes the breaker for health reporting.
func (c *Caller) Breaker() *circuit.Breaker { return c.breaker }

// Do runs fn under the call policy. Non-retryable errors stop immediately and
// are returned unchanged; the last retryable error is returned when attempts
// run out.
func (c *Caller) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := c.maxAttempts
	if c.breaker.IsOpen() {
		attempts = 1
	}
	return c.attempt(ctx, attempts, fn)
}

// Once runs fn a single time with the attempt timeout and breaker
// accounting. Calls that must not be repeated, such as sending an SMS or
// spending a one-time token, go through Once.
func (c *Caller) Once(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.attempt(ctx, 1, fn)
}

func (c *Caller) attempt(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	start := time.Now()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval
	policy.MaxInterval = c.maxInterval
	policy.MaxElapsedTime = 0

	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
		defer cancel()
		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = NewProviderError(ErrorTimeout, c.name, "attempt timed out", err)
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		c.logger.WarnContext(ctx, "collaborator call failed, may retry",
			"collaborator", c.name,
			"category", string(GetCategory(err)),
			"error", err,
		)
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx))
	c.record(err, time.Since(start))
	return err
}

func (c *Caller) record(err error, d time.Duration) {
	outcome := "success"
	switch {
	case err == nil:
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.Info("circuit closed", "collaborator", c.name)
			c.breakerChanged(false)
		}
	case IsRetryable(err) || errors.Is(err, context.DeadlineExceeded):
		outcome = "unavailable"
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.Warn("circuit opened", "collaborator", c.name)
			c.breakerChanged(true)
		}
	default:
		// The collaborator answered; a rejected request says nothing about its health.
		outcome = "rejected"
	}
	if c.observer != nil {
		c.observer.ObserveJudgeCall(c.name, outcome, d)
	}
}

func (c *Caller) breakerChanged(open bool) {
	if c.observer != nil {
		c.observer.ObserveBreakerChange(c.name, open)
	}
}
