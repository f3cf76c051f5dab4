package e2e

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures runs the scenarios under features/ against CARDFORGE_E2E_URL.
// The suite signs in once per scenario, so the server should run with
// RATE_LIMIT_LOGIN and RATE_LIMIT_REGISTER raised to around 50. Resave
// scenarios need CARDFORGE_E2E_ADMIN_TOKEN to match the server's ADMIN_TOKEN.
func TestFeatures(t *testing.T) {
	baseURL := os.Getenv("CARDFORGE_E2E_URL")
	if baseURL == "" {
		t.Skip("CARDFORGE_E2E_URL not set")
	}
	tc := NewTestContext(baseURL, os.Getenv("CARDFORGE_E2E_ADMIN_TOKEN"))

	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
				tc.Reset()
				return ctx, nil
			})
			RegisterSteps(ctx, tc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			Tags:     os.Getenv("CARDFORGE_E2E_TAGS"),
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("feature scenarios failed")
	}
}
