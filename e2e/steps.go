package e2e

import (
	"github.com/cucumber/godog"

	"cardforge/e2e/steps/auth"
	"cardforge/e2e/steps/cards"
	"cardforge/e2e/steps/common"
	"cardforge/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	auth.RegisterSteps(ctx, tc)
	cards.RegisterSteps(ctx, tc)
	ratelimit.RegisterSteps(ctx, tc)
}
