package judge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clocklayer/pkg/platform/circuit"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
	opened   int
}

func (o *recordingObserver) ObserveJudgeCall(_, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) ObserveBreakerChange(_ string, open bool) {
	if open {
		o.mu.Lock()
		o.opened++
		o.mu.Unlock()
	}
}

func newTestCaller(opts ...CallerOption) *Caller {
	base := []CallerOption{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithBackoff(time.Millisecond, 2*time.Millisecond),
		WithAttemptTimeout(50 * time.Millisecond),
	}
	return NewCaller("test", append(base, opts...)...)
}

func TestCallerRetriesRetryableErrors(t *testing.T) {
	c := newTestCaller(WithMaxAttempts(3))
	calls := 0
	err := c.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return NewProviderError(ErrorProviderOutage, "test", "down", nil)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestCallerStopsOnPermanentError(t *testing.T) {
	c := newTestCaller(WithMaxAttempts(5))
	calls := 0
	err := c.Do(context.Background(), func(context.Context) error {
		calls++
		return NewProviderError(ErrorBadData, "test", "bad image", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, ErrorBadData, GetCategory(err))
}

func TestCallerGivesUpAfterMaxAttempts(t *testing.T) {
	c := newTestCaller(WithMaxAttempts(2))
	calls := 0
	err := c.Do(context.Background(), func(context.Context) error {
		calls++
		return NewProviderError(ErrorRateLimited, "test", "slow down", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, IsRetryable(err))
}

func TestCallerClassifiesAttemptTimeout(t *testing.T) {
	c := newTestCaller(WithMaxAttempts(1), WithAttemptTimeout(5*time.Millisecond))
	err := c.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, ErrorTimeout, GetCategory(err))
}

func TestCallerOpenBreakerAllowsSingleTrial(t *testing.T) {
	obs := &recordingObserver{}
	b := circuit.New("test", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(1))
	c := newTestCaller(WithMaxAttempts(3), WithBreaker(b), WithObserver(obs))

	failing := func(context.Context) error { return NewProviderError(ErrorProviderOutage, "test", "down", nil) }
	require.Error(t, c.Do(context.Background(), failing))
	assert.True(t, b.IsOpen())
	assert.Equal(t, 1, obs.opened)

	calls := 0
	require.Error(t, c.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return failing(ctx)
	}))
	assert.Equal(t, 1, calls, "open breaker disables retries")

	require.NoError(t, c.Do(context.Background(), func(context.Context) error { return nil }))
	assert.False(t, b.IsOpen())
}

func TestCallerPermanentErrorsDoNotTripBreaker(t *testing.T) {
	b := circuit.New("test", circuit.WithFailureThreshold(1))
	c := newTestCaller(WithBreaker(b))
	_ = c.Do(context.Background(), func(context.Context) error {
		return NewProviderError(ErrorBadData, "test", "nope", nil)
	})
	assert.False(t, b.IsOpen())
}

func TestPostJSONClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorCategory
	}{
		{http.StatusServiceUnavailable, ErrorProviderOutage},
		{http.StatusTooManyRequests, ErrorRateLimited},
		{http.StatusUnauthorized, ErrorAuthentication},
		{http.StatusBadRequest, ErrorBadData},
		{http.StatusNotFound, ErrorNotFound},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"X"}}`))
			}))
			defer srv.Close()

			err := PostJSON(context.Background(), srv.Client(), "p", srv.URL, nil, map[string]string{"a": "b"}, nil)
			require.Error(t, err)
			assert.Equal(t, tt.want, GetCategory(err))
			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.StatusCode)
			assert.JSONEq(t, `{"error":{"message":"X"}}`, string(se.Body))
		})
	}
}

func TestPostJSONDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := PostJSON(context.Background(), srv.Client(), "p", srv.URL, http.Header{"X-Api-Key": {"k"}}, struct{}{}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestPostJSONContractMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	var out map[string]any
	err := PostJSON(context.Background(), srv.Client(), "p", srv.URL, nil, struct{}{}, &out)
	assert.Equal(t, ErrorContractMismatch, GetCategory(err))
}

func TestCategoryRetryable(t *testing.T) {
	retry := map[ErrorCategory]bool{
		ErrorTimeout:          true,
		ErrorProviderOutage:   true,
		ErrorRateLimited:      true,
		ErrorBadData:          false,
		ErrorAuthentication:   false,
		ErrorNotFound:         false,
		ErrorContractMismatch: false,
		ErrorInternal:         false,
	}
	for category, want := range retry {
		assert.Equal(t, want, category.Retryable(), category)
		assert.Equal(t, want, IsRetryable(fmt.Errorf("wrapped: %w", NewProviderError(category, "liveness", "x", nil))), category)
	}
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.Equal(t, ErrorInternal, GetCategory(errors.New("plain")))
}
