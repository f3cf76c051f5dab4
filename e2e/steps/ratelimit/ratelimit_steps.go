package ratelimit

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GetLastResponseStatus() int
	GetLastResponseHeader(key string) string
}

// RegisterSteps registers rate-limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I fail to log in as "([^"]*)" (\d+) times$`, steps.failLoginNTimes)
	ctx.Step(`^I fail to log in as "([^"]*)" until I am throttled$`, steps.failUntilThrottled)
	ctx.Step(`^the response should carry rate limit headers$`, steps.responseShouldCarryHeaders)
}

type ratelimitSteps struct {
	tc TestContext
}

func (s *ratelimitSteps) failOnce(email string) error {
	return s.tc.POST("/api/auth/login", map[string]string{
		"email":    email,
		"password": "definitely-not-it",
	})
}

func (s *ratelimitSteps) failLoginNTimes(ctx context.Context, email string, times int) error {
	for range times {
		if err := s.failOnce(email); err != nil {
			return err
		}
	}
	return nil
}

// failUntilThrottled stops at the first 429.
func (s *ratelimitSteps) failUntilThrottled(ctx context.Context, email string) error {
	const maxAttempts = 100
	for range maxAttempts {
		if err := s.failOnce(email); err != nil {
			return err
		}
		if s.tc.GetLastResponseStatus() == http.StatusTooManyRequests {
			return nil
		}
	}
	return fmt.Errorf("not throttled after %d attempts", maxAttempts)
}

func (s *ratelimitSteps) responseShouldCarryHeaders(ctx context.Context) error {
	for _, h := range []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"} {
		if s.tc.GetLastResponseHeader(h) == "" {
			return fmt.Errorf("missing %s header", h)
		}
	}
	return nil
}
