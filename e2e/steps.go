package e2e

import (
	"github.com/cucumber/godog"

	"clocklayer/e2e/steps/common"
	"clocklayer/e2e/steps/ratelimit"
	"clocklayer/e2e/steps/signup"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	signup.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
}
