package ratelimit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

type TestContext interface {
	POST(path string, body any) error
	GetSessionID() string
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(key string) string
	GetResponseField(field string) (any, error)
}

// RegisterSteps registers throttling steps for the phone code endpoint.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I request a code for phone "([^"]*)" (\d+) times$`, steps.requestCodeNTimes)
	ctx.Step(`^every request should have been accepted$`, steps.allAccepted)
	ctx.Step(`^the response should carry a Retry-After header$`, steps.retryAfterHeader)
	ctx.Step(`^the response field "retry_after" should be positive$`, steps.retryAfterPositive)
}

type ratelimitSteps struct {
	tc       TestContext
	statuses []int
}

func (s *ratelimitSteps) requestCodeNTimes(ctx context.Context, phone string, n int) error {
	s.statuses = s.statuses[:0]
	path := "/signup/sessions/" + s.tc.GetSessionID() + "/phone/code"
	for i := 0; i < n; i++ {
		if err := s.tc.POST(path, map[string]string{
			"phone":          phone,
			"challengeToken": "e2e-challenge",
		}); err != nil {
			return err
		}
		s.statuses = append(s.statuses, s.tc.GetLastResponseStatus())
	}
	return nil
}

func (s *ratelimitSteps) allAccepted(ctx context.Context) error {
	for i, status := range s.statuses {
		if status == 429 {
			return fmt.Errorf("request %d was throttled", i+1)
		}
	}
	return nil
}

func (s *ratelimitSteps) retryAfterHeader(ctx context.Context) error {
	v := s.tc.GetLastResponseHeader("Retry-After")
	if v == "" {
		return fmt.Errorf("missing Retry-After header: %s", s.tc.GetLastResponseBody())
	}
	if _, err := strconv.Atoi(v); err != nil {
		return fmt.Errorf("Retry-After is not a number of seconds: %q", v)
	}
	return nil
}

func (s *ratelimitSteps) retryAfterPositive(ctx context.Context) error {
	v, err := s.tc.GetResponseField("retry_after")
	if err != nil {
		return err
	}
	if n, ok := v.(float64); !ok || n <= 0 {
		return fmt.Errorf("retry_after should be positive, got %v", v)
	}
	return nil
}
