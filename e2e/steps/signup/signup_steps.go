package signup

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// fakeCode is the one-time code the development identity gateway accepts.
const fakeCode = "123456"

type TestContext interface {
	POST(path string, body any) error
	POSTForm(path string, fields map[string]string) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetSessionID() string
	SetSessionID(sessionID string)
	GetAccessToken() string
	SetAccessToken(token string)
}

// RegisterSteps registers the signup wizard steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &signupSteps{tc: tc}

	ctx.Step(`^I start a signup session$`, steps.startSession)
	ctx.Step(`^I start a signup session with referral code "([^"]*)"$`, steps.startSessionWithReferral)
	ctx.Step(`^I link my "([^"]*)" account with credential "([^"]*)"$`, steps.linkIdentity)
	ctx.Step(`^I submit the profile name "([^"]*)" and username "([^"]*)"$`, steps.submitProfile)
	ctx.Step(`^I request a code for phone "([^"]*)"$`, steps.requestPhoneCode)
	ctx.Step(`^I request a code for phone "([^"]*)" without a challenge token$`, steps.requestPhoneCodeWithoutChallenge)
	ctx.Step(`^I verify the phone code$`, steps.verifyPhoneCode)
	ctx.Step(`^I verify the phone code "([^"]*)"$`, steps.verifyPhoneCodeWith)
	ctx.Step(`^I confirm my details$`, steps.confirm)
	ctx.Step(`^I go back one step$`, steps.back)
	ctx.Step(`^I jump to step (\d+)$`, steps.jump)
	ctx.Step(`^I fetch my signup session$`, steps.fetchSession)
	ctx.Step(`^I forget my access token$`, steps.forgetToken)
	ctx.Step(`^the session should be on step (\d+)$`, steps.sessionOnStep)
	ctx.Step(`^I should hold an access token$`, steps.holdAccessToken)
}

type signupSteps struct {
	tc TestContext
}

func (s *signupSteps) path(suffix string) string {
	return "/signup/sessions/" + s.tc.GetSessionID() + suffix
}

func (s *signupSteps) startSession(ctx context.Context) error {
	return s.start(nil)
}

func (s *signupSteps) startSessionWithReferral(ctx context.Context, code string) error {
	return s.start(map[string]string{"referralCode": code})
}

func (s *signupSteps) start(body any) error {
	if err := s.tc.POST("/signup/sessions", body); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 201 {
		return fmt.Errorf("start session: status %d: %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	sessionID, err := s.tc.GetResponseField("id")
	if err != nil {
		return err
	}
	s.tc.SetSessionID(fmt.Sprint(sessionID))
	return nil
}

func (s *signupSteps) linkIdentity(ctx context.Context, provider, credential string) error {
	if err := s.tc.POST(s.path("/identity"), map[string]string{
		"provider":   provider,
		"credential": credential,
	}); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 200 {
		return nil
	}
	token, err := s.tc.GetResponseField("accessToken")
	if err != nil {
		return err
	}
	s.tc.SetAccessToken(fmt.Sprint(token))
	return nil
}

func (s *signupSteps) submitProfile(ctx context.Context, name, username string) error {
	return s.tc.POSTForm(s.path("/profile"), map[string]string{
		"name":     name,
		"username": username,
	})
}

func (s *signupSteps) requestPhoneCode(ctx context.Context, phone string) error {
	return s.tc.POST(s.path("/phone/code"), map[string]string{
		"phone":          phone,
		"challengeToken": "e2e-challenge",
	})
}

func (s *signupSteps) requestPhoneCodeWithoutChallenge(ctx context.Context, phone string) error {
	return s.tc.POST(s.path("/phone/code"), map[string]string{"phone": phone})
}

func (s *signupSteps) verifyPhoneCode(ctx context.Context) error {
	return s.verifyPhoneCodeWith(ctx, fakeCode)
}

func (s *signupSteps) verifyPhoneCodeWith(ctx context.Context, code string) error {
	return s.tc.POST(s.path("/phone/verify"), map[string]string{"code": code})
}

func (s *signupSteps) confirm(ctx context.Context) error {
	return s.tc.POST(s.path("/confirm"), nil)
}

func (s *signupSteps) back(ctx context.Context) error {
	return s.tc.POST(s.path("/back"), nil)
}

func (s *signupSteps) jump(ctx context.Context, step int) error {
	return s.tc.POST(s.path("/jump"), map[string]int{"step": step})
}

func (s *signupSteps) fetchSession(ctx context.Context) error {
	return s.tc.GET(s.path(""), nil)
}

func (s *signupSteps) forgetToken(ctx context.Context) error {
	s.tc.SetAccessToken("")
	return nil
}

func (s *signupSteps) sessionOnStep(ctx context.Context, expected int) error {
	// Link responses nest the session view.
	v, err := s.tc.GetResponseField("step")
	if err != nil {
		if v, err = s.tc.GetResponseField("session.step"); err != nil {
			return err
		}
	}
	n, ok := v.(float64)
	if !ok || int(n) != expected {
		return fmt.Errorf("expected step %d, got %v: %s", expected, v, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *signupSteps) holdAccessToken(ctx context.Context) error {
	if s.tc.GetAccessToken() == "" {
		return fmt.Errorf("no access token was issued: %s", s.tc.GetLastResponseBody())
	}
	return nil
}
