package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"cardforge/internal/audit"
	"cardforge/internal/auth/models"
	"cardforge/internal/auth/store/session"
	"cardforge/internal/auth/store/user"
	"cardforge/internal/auth/token"
	"cardforge/internal/platform/metrics"
	id "cardforge/pkg/domain"
	dErrors "cardforge/pkg/domain-errors"
	"cardforge/pkg/platform/sentinel"
	"cardforge/pkg/requestcontext"
)

type recordingAudit struct{ events []audit.Event }

func (r *recordingAudit) Emit(_ context.Context, e audit.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recordingAudit) actions() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

type failingSessions struct{ *session.InMemorySessionStore }

func (failingSessions) Create(context.Context, *models.Session) error {
	return errors.New("redis: connection refused")
}

type AuthServiceSuite struct {
	suite.Suite
	users    *user.InMemoryUserStore
	sessions *session.InMemorySessionStore
	tokens   *token.Service
	audit    *recordingAudit
	metrics  *metrics.Metrics
	service  *Service
	now      time.Time
	ctx      context.Context
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceSuite))
}

func (s *AuthServiceSuite) SetupTest() {
	s.users = user.New()
	s.sessions = session.New()
	s.tokens = token.NewService("test-key", "cardforge-test")
	s.audit = &recordingAudit{}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Now().UTC().Truncate(time.Second)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	var err error
	s.service, err = s.newService(s.sessions)
	s.Require().NoError(err)
}

func (s *AuthServiceSuite) newService(sessions SessionStore) (*Service, error) {
	return New(s.users, sessions, s.tokens,
		WithBcryptCost(bcrypt.MinCost),
		WithAuditPublisher(s.audit),
		WithMetrics(s.metrics),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func (s *AuthServiceSuite) register(username, email string) *models.User {
	u, err := s.service.Register(s.ctx, models.Registration{Username: username, Email: email, Password: "correct horse"})
	s.Require().NoError(err)
	return u
}

// =============================================================================
// Construction
// =============================================================================

func (s *AuthServiceSuite) TestNewRequiresDependencies() {
	_, err := New(nil, s.sessions, s.tokens)
	s.Error(err)
	_, err = New(s.users, nil, s.tokens)
	s.Error(err)
	_, err = New(s.users, s.sessions, nil)
	s.Error(err)
	_, err = New(s.users, s.sessions, s.tokens, WithBcryptCost(99))
	s.Error(err)
}

// =============================================================================
// Register
// =============================================================================

func (s *AuthServiceSuite) TestRegister() {
	s.Run("hashes the password and normalizes the email", func() {
		u, err := s.service.Register(s.ctx, models.Registration{
			Username: "  jane ",
			Email:    " Jane@Example.COM ",
			Password: "correct horse",
		})
		s.Require().NoError(err)
		s.Equal("jane", u.Username)
		s.Equal("jane@example.com", u.Email)
		s.NotEqual("correct horse", u.PasswordHash)
		s.NoError(bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("correct horse")))
		s.Equal(s.now, u.CreatedAt)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.UsersCreated))
		s.Equal([]string{"user_registered"}, s.audit.actions())
	})

	s.Run("duplicate email is a conflict", func() {
		_, err := s.service.Register(s.ctx, models.Registration{Username: "janet", Email: "jane@example.com", Password: "correct horse"})
		s.Equal(dErrors.CodeConflict, dErrors.CodeOf(err))
	})

	s.Run("missing fields are a validation error", func() {
		_, err := s.service.Register(s.ctx, models.Registration{Username: "bob", Email: "bob@example.com"})
		s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
	})

	s.Run("short password", func() {
		_, err := s.service.Register(s.ctx, models.Registration{Username: "bob", Email: "bob@example.com", Password: "short"})
		s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
	})

	s.Run("malformed email", func() {
		_, err := s.service.Register(s.ctx, models.Registration{Username: "bob", Email: "not-an-email", Password: "correct horse"})
		s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
	})
}

// =============================================================================
// Login / Authenticate
// =============================================================================

func (s *AuthServiceSuite) TestLogin() {
	u := s.register("jane", "jane@example.com")

	s.Run("opens a seven day session", func() {
		login, err := s.service.Login(s.ctx, models.Credentials{
			Email:     "JANE@example.com",
			Password:  "correct horse",
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
		})
		s.Require().NoError(err)
		s.Equal(u.ID, login.User.ID)
		s.Equal(s.now.Add(7*24*time.Hour), login.Session.ExpiresAt)
		s.Contains(login.Session.Device, "Firefox")
		s.NotEmpty(login.Token)

		stored, err := s.sessions.FindByID(s.ctx, login.Session.ID)
		s.Require().NoError(err)
		s.Equal(login.Session.TokenJTI, stored.TokenJTI)

		claims, err := s.tokens.Validate(login.Token)
		s.Require().NoError(err)
		s.Equal(stored.TokenJTI, claims.ID)
	})

	s.Run("wrong password", func() {
		_, err := s.service.Login(s.ctx, models.Credentials{Email: "jane@example.com", Password: "wrong horse"})
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials"))
	})

	s.Run("unknown email gets the same error", func() {
		_, err := s.service.Login(s.ctx, models.Credentials{Email: "ghost@example.com", Password: "correct horse"})
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials"))
	})

	s.Run("missing fields", func() {
		_, err := s.service.Login(s.ctx, models.Credentials{Email: "jane@example.com"})
		s.Equal(dErrors.CodeValidation, dErrors.CodeOf(err))
	})

	s.Equal(1.0, testutil.ToFloat64(s.metrics.LoginsSucceeded))
	s.Equal(2.0, testutil.ToFloat64(s.metrics.LoginsFailed))
	s.Equal([]string{"user_registered", "session_created", "auth_failed", "auth_failed"}, s.audit.actions())
}

func (s *AuthServiceSuite) TestLoginSessionStoreFailure() {
	s.register("jane", "jane@example.com")
	svc, err := s.newService(failingSessions{session.New()})
	s.Require().NoError(err)

	_, err = svc.Login(s.ctx, models.Credentials{Email: "jane@example.com", Password: "correct horse"})
	s.Equal(dErrors.CodeInternal, dErrors.CodeOf(err))
}

func (s *AuthServiceSuite) TestAuthenticate() {
	u := s.register("jane", "jane@example.com")
	login, err := s.service.Login(s.ctx, models.Credentials{Email: "jane@example.com", Password: "correct horse"})
	s.Require().NoError(err)

	s.Run("live session", func() {
		userID, sessionID, err := s.service.Authenticate(s.ctx, login.Token)
		s.Require().NoError(err)
		s.Equal(u.ID, userID)
		s.Equal(login.Session.ID, sessionID)
	})

	s.Run("garbage token", func() {
		_, _, err := s.service.Authenticate(s.ctx, "nope")
		s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))
	})

	s.Run("token for another session's jti", func() {
		forged, _, err := s.tokens.Issue(u.ID, login.Session.ID, s.now, s.now.Add(time.Hour))
		s.Require().NoError(err)
		_, _, err = s.service.Authenticate(s.ctx, forged)
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeUnauthorized, "invalid session"))
	})

	s.Run("expired session is removed", func() {
		later := requestcontext.WithTime(s.ctx, login.Session.ExpiresAt.Add(time.Minute))
		_, _, err := s.service.Authenticate(later, login.Token)
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeUnauthorized, "session expired"))

		_, err = s.sessions.FindByID(s.ctx, login.Session.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("removed session", func() {
		_, _, err := s.service.Authenticate(s.ctx, login.Token)
		s.Require().ErrorIs(err, dErrors.New(dErrors.CodeUnauthorized, "invalid session"))
	})
}

func (s *AuthServiceSuite) TestAuthenticateUnknownUser() {
	ghost := id.NewUserID()
	sessionID := id.NewSessionID()
	signed, jti, err := s.tokens.Issue(ghost, sessionID, s.now, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Require().NoError(s.sessions.Create(s.ctx, &models.Session{
		ID: sessionID, UserID: ghost, TokenJTI: jti, CreatedAt: s.now, ExpiresAt: s.now.Add(time.Hour),
	}))

	_, _, err = s.service.Authenticate(s.ctx, signed)
	s.Require().ErrorIs(err, dErrors.New(dErrors.CodeUnauthorized, "user not found"))
	_, err = s.sessions.FindByID(s.ctx, sessionID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// =============================================================================
// Logout / Me
// =============================================================================

func (s *AuthServiceSuite) TestLogout() {
	u := s.register("jane", "jane@example.com")
	login, err := s.service.Login(s.ctx, models.Credentials{Email: "jane@example.com", Password: "correct horse"})
	s.Require().NoError(err)
	ctx := requestcontext.WithUserID(s.ctx, u.ID)

	s.Require().NoError(s.service.Logout(ctx, login.Session.ID))
	_, err = s.sessions.FindByID(s.ctx, login.Session.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Run("is idempotent", func() {
		s.NoError(s.service.Logout(ctx, login.Session.ID))
		s.NoError(s.service.Logout(ctx, id.SessionID{}))
	})
	s.Equal(1.0, testutil.ToFloat64(s.metrics.SessionsRevoked))
}

func (s *AuthServiceSuite) TestLogoutEverywhere() {
	u := s.register("jane", "jane@example.com")
	for range 3 {
		_, err := s.service.Login(s.ctx, models.Credentials{Email: "jane@example.com", Password: "correct horse"})
		s.Require().NoError(err)
	}

	removed, err := s.service.LogoutEverywhere(requestcontext.WithUserID(s.ctx, u.ID))
	s.Require().NoError(err)
	s.Equal(3, removed)

	_, err = s.service.LogoutEverywhere(s.ctx)
	s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}

func (s *AuthServiceSuite) TestMe() {
	u := s.register("jane", "jane@example.com")

	me, err := s.service.Me(requestcontext.WithUserID(s.ctx, u.ID))
	s.Require().NoError(err)
	s.Equal(u.Email, me.Email)

	_, err = s.service.Me(s.ctx)
	s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))

	_, err = s.service.Me(requestcontext.WithUserID(s.ctx, id.NewUserID()))
	s.Equal(dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}
