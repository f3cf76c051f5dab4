package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"cardforge/internal/auth/service"
	"cardforge/internal/auth/store/session"
	"cardforge/internal/auth/store/user"
	"cardforge/internal/auth/token"
	authmw "cardforge/pkg/platform/middleware/auth"
)

type AuthHandlerSuite struct {
	suite.Suite
	sessions *session.InMemorySessionStore
	router   chi.Router
}

func TestAuthHandlerSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerSuite))
}

func (s *AuthHandlerSuite) SetupTest() {
	s.sessions = session.New()
	svc, err := service.New(user.New(), s.sessions, token.NewService("test-key", "cardforge-test"),
		service.WithBcryptCost(bcrypt.MinCost),
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	s.Require().NoError(err)

	s.router = chi.NewRouter()
	New(svc, svc, slog.New(slog.NewTextHandler(io.Discard, nil)), true).Register(s.router, nil)
}

func (s *AuthHandlerSuite) do(method, path, body string, decorate ...func(*http.Request)) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, d := range decorate {
		d(req)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(c *http.Cookie) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value}) }
}

func sessionCookieFrom(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == authmw.CookieName {
			return c
		}
	}
	return nil
}

func (s *AuthHandlerSuite) registerAndLogin() (*LoginResponse, *http.Cookie) {
	rec := s.do(http.MethodPost, "/api/auth/register", `{"username":"ada","email":"ada@example.com","password":"correct horse"}`)
	s.Require().Equal(http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"correct horse"}`)
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp LoginResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return &resp, sessionCookieFrom(rec)
}

// =============================================================================
// Registration
// =============================================================================

func (s *AuthHandlerSuite) TestRegister() {
	s.Run("creates an account", func() {
		rec := s.do(http.MethodPost, "/api/auth/register", `{"username":"ada","email":"Ada@Example.com","password":"correct horse"}`)

		s.Equal(http.StatusCreated, rec.Code)
		var resp UserEnvelope
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("ada", resp.User.Username)
		s.Equal("ada@example.com", resp.User.Email)
		s.NotEmpty(resp.User.ID)
		s.NotContains(rec.Body.String(), "password")
	})

	s.Run("duplicate email conflicts", func() {
		rec := s.do(http.MethodPost, "/api/auth/register", `{"username":"lovelace","email":"ada@example.com","password":"correct horse"}`)

		s.Equal(http.StatusConflict, rec.Code)
		s.JSONEq(`{"error":"conflict","error_description":"username or email already exists"}`, rec.Body.String())
	})

	s.Run("missing fields", func() {
		rec := s.do(http.MethodPost, "/api/auth/register", `{"username":"bob"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("short password", func() {
		rec := s.do(http.MethodPost, "/api/auth/register", `{"username":"bob","email":"bob@example.com","password":"short"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

// =============================================================================
// Login
// =============================================================================

func (s *AuthHandlerSuite) TestLogin() {
	s.Run("sets the session cookie and returns the token", func() {
		resp, cookie := s.registerAndLogin()

		s.Require().NotNil(cookie)
		s.Equal(resp.Token, cookie.Value)
		s.True(cookie.HttpOnly)
		s.True(cookie.Secure)
		s.Equal(http.SameSiteLaxMode, cookie.SameSite)
		s.Equal("/", cookie.Path)
		s.Equal(7*24*60*60, cookie.MaxAge)
		s.Equal("ada", resp.User.Username)
	})

	s.Run("wrong password", func() {
		rec := s.do(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"wrong horse"}`)

		s.Equal(http.StatusUnauthorized, rec.Code)
		s.JSONEq(`{"error":"unauthorized","error_description":"invalid credentials"}`, rec.Body.String())
		s.Nil(sessionCookieFrom(rec))
	})

	s.Run("missing password", func() {
		rec := s.do(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com"}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

// =============================================================================
// Session endpoints
// =============================================================================

func (s *AuthHandlerSuite) TestMe() {
	resp, cookie := s.registerAndLogin()

	s.Run("with cookie", func() {
		rec := s.do(http.MethodGet, "/api/auth/me", "", withCookie(cookie))

		s.Equal(http.StatusOK, rec.Code)
		var me UserEnvelope
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &me))
		s.Equal(resp.User.ID, me.User.ID)
	})

	s.Run("with bearer token", func() {
		rec := s.do(http.MethodGet, "/api/auth/me", "", bearer(resp.Token))
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("anonymous", func() {
		rec := s.do(http.MethodGet, "/api/auth/me", "")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("tampered token", func() {
		rec := s.do(http.MethodGet, "/api/auth/me", "", bearer(resp.Token+"x"))
		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func (s *AuthHandlerSuite) TestLogout() {
	resp, cookie := s.registerAndLogin()

	rec := s.do(http.MethodPost, "/api/auth/logout", "", withCookie(cookie))

	s.Equal(http.StatusNoContent, rec.Code)
	cleared := sessionCookieFrom(rec)
	s.Require().NotNil(cleared)
	s.Empty(cleared.Value)
	s.Equal(-1, cleared.MaxAge)

	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", "", bearer(resp.Token)).Code)

	s.Run("repeat logout succeeds", func() {
		rec := s.do(http.MethodPost, "/api/auth/logout", "", withCookie(cookie))
		s.Equal(http.StatusNoContent, rec.Code)
	})

	s.Run("anonymous logout succeeds", func() {
		rec := s.do(http.MethodPost, "/api/auth/logout", "")
		s.Equal(http.StatusNoContent, rec.Code)
	})
}

func (s *AuthHandlerSuite) TestLogoutAll() {
	first, _ := s.registerAndLogin()
	rec := s.do(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"correct horse"}`)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/logout/all", "", bearer(first.Token))

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"revoked":2}`, rec.Body.String())
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", "", bearer(first.Token)).Code)
}

func (s *AuthHandlerSuite) TestCredentialLimit() {
	svc, err := service.New(user.New(), session.New(), token.NewService("test-key", "cardforge-test"),
		service.WithBcryptCost(bcrypt.MinCost),
	)
	s.Require().NoError(err)
	var scopes []string
	limit := func(scope string) func(http.Handler) http.Handler {
		scopes = append(scopes, scope)
		return func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("X-Scope", scope)
				w.WriteHeader(http.StatusTooManyRequests)
			})
		}
	}
	s.router = chi.NewRouter()
	New(svc, svc, slog.New(slog.NewTextHandler(io.Discard, nil)), false).Register(s.router, limit)

	s.ElementsMatch([]string{ScopeRegister, ScopeLogin}, scopes)
	rec := s.do(http.MethodPost, "/api/auth/register", `{}`)
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal(ScopeRegister, rec.Header().Get("X-Scope"))
	rec = s.do(http.MethodPost, "/api/auth/login", `{}`)
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal(ScopeLogin, rec.Header().Get("X-Scope"))
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", "").Code)
}
