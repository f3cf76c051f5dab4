package auth

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cucumber/godog"
)

var accountSeq atomic.Int64

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetAccessToken() string
	SetAccessToken(token string)
}

// RegisterSteps registers account and session step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc}

	ctx.Step(`^I register as "([^"]*)" with email "([^"]*)" and password "([^"]*)"$`, steps.register)
	ctx.Step(`^I log in with email "([^"]*)" and password "([^"]*)"$`, steps.login)
	ctx.Step(`^I am signed in as "([^"]*)"$`, steps.signedInAs)
	ctx.Step(`^I log out$`, steps.logout)
	ctx.Step(`^I log out everywhere$`, steps.logoutEverywhere)
}

type authSteps struct {
	tc TestContext
}

func (s *authSteps) register(ctx context.Context, username, email, password string) error {
	return s.tc.POST("/api/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
}

// login keeps the returned token so later steps act as this user.
func (s *authSteps) login(ctx context.Context, email, password string) error {
	if err := s.tc.POST("/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 200 {
		return nil
	}
	token, err := s.tc.GetResponseField("token")
	if err != nil {
		return err
	}
	s.tc.SetAccessToken(fmt.Sprint(token))
	return nil
}

// signedInAs registers a fresh account based on username and logs in. The
// suffix keeps accounts unique against a long-lived server.
func (s *authSteps) signedInAs(ctx context.Context, username string) error {
	suffix := strconv.FormatInt(time.Now().UnixNano(), 36) + strconv.FormatInt(accountSeq.Add(1), 36)
	email := fmt.Sprintf("%s-%s@example.com", username, suffix)
	if err := s.register(ctx, username+"-"+suffix, email, "correct horse battery"); err != nil {
		return err
	}
	if got := s.tc.GetLastResponseStatus(); got != 201 {
		return fmt.Errorf("register %s: status %d", username, got)
	}
	if err := s.login(ctx, email, "correct horse battery"); err != nil {
		return err
	}
	if s.tc.GetAccessToken() == "" {
		return fmt.Errorf("login %s: no token issued", username)
	}
	return nil
}

func (s *authSteps) logout(ctx context.Context) error {
	return s.tc.POST("/api/auth/logout", nil)
}

func (s *authSteps) logoutEverywhere(ctx context.Context) error {
	return s.tc.POST("/api/auth/logout/all", nil)
}
