package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cardforge/internal/auth/models"
	id "cardforge/pkg/domain"
	dErrors "cardforge/pkg/domain-errors"
	"cardforge/pkg/platform/httputil"
	authmw "cardforge/pkg/platform/middleware/auth"
	"cardforge/pkg/requestcontext"
)

// Rate-limit scopes for the credential endpoints.
const (
	ScopeRegister = "register"
	ScopeLogin    = "login"
)

// LimitFunc returns the rate-limit middleware for a scope.
type LimitFunc func(scope string) func(http.Handler) http.Handler

// Service defines the account operations the handler exposes.
type Service interface {
	Register(ctx context.Context, reg models.Registration) (*models.User, error)
	Login(ctx context.Context, creds models.Credentials) (*models.Login, error)
	Logout(ctx context.Context, sessionID id.SessionID) error
	LogoutEverywhere(ctx context.Context) (int, error)
	Me(ctx context.Context) (*models.User, error)
}

// Handler wires account endpoints to the auth service.
type Handler struct {
	service      Service
	authn        authmw.Authenticator
	logger       *slog.Logger
	secureCookie bool
}

// New constructs an auth handler. secureCookie marks the session cookie
// Secure and should be set whenever the server sits behind TLS.
func New(service Service, authn authmw.Authenticator, logger *slog.Logger, secureCookie bool) *Handler {
	return &Handler{
		service:      service,
		authn:        authn,
		logger:       logger,
		secureCookie: secureCookie,
	}
}

// Register mounts account endpoints on the router. limit, when non-nil, guards
// the credential endpoints.
func (h *Handler) Register(r chi.Router, limit LimitFunc) {
	r.Route("/api/auth", func(r chi.Router) {
		r.With(limited(limit, ScopeRegister)...).Post("/register", h.HandleRegister)
		r.With(limited(limit, ScopeLogin)...).Post("/login", h.HandleLogin)
		r.With(authmw.OptionalAuth(h.authn, h.logger)).Post("/logout", h.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireAuth(h.authn, h.logger))
			r.Post("/logout/all", h.HandleLogoutAll)
			r.Get("/me", h.HandleMe)
		})
	})
}

// HandleRegister handles POST /api/auth/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	user, err := h.service.Register(ctx, req.Registration())
	if err != nil {
		h.logFailure(ctx, "register failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, &UserEnvelope{User: fromUser(user)})
}

// HandleLogin handles POST /api/auth/login. The token is set as an http-only
// cookie and also returned in the body.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	login, err := h.service.Login(ctx, models.Credentials{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.logFailure(ctx, "login failed", err)
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(login.Token, login.Session.ExpiresAt))
	httputil.WriteJSON(w, http.StatusOK, &LoginResponse{
		User:      fromUser(login.User),
		Token:     login.Token,
		Device:    login.Session.Device,
		ExpiresAt: login.Session.ExpiresAt,
	})
}

// HandleLogout handles POST /api/auth/logout. It always clears the cookie,
// even when the session is already gone.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Logout(ctx, requestcontext.SessionID(ctx)); err != nil {
		h.logFailure(ctx, "logout failed", err)
		httputil.WriteError(w, err)
		return
	}
	http.SetCookie(w, h.clearedCookie())
	w.WriteHeader(http.StatusNoContent)
}

// HandleLogoutAll handles POST /api/auth/logout/all.
func (h *Handler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	revoked, err := h.service.LogoutEverywhere(ctx)
	if err != nil {
		h.logFailure(ctx, "logout everywhere failed", err)
		httputil.WriteError(w, err)
		return
	}
	http.SetCookie(w, h.clearedCookie())
	httputil.WriteJSON(w, http.StatusOK, &LogoutAllResponse{Revoked: revoked})
}

// HandleMe handles GET /api/auth/me.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.service.Me(ctx)
	if err != nil {
		h.logFailure(ctx, "load current user failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &UserEnvelope{User: fromUser(user)})
}

func limited(limit LimitFunc, scope string) []func(http.Handler) http.Handler {
	if limit == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{limit(scope)}
}

func (h *Handler) sessionCookie(token string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     authmw.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(models.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *Handler) clearedCookie() *http.Cookie {
	return &http.Cookie{
		Name:     authmw.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	level := slog.LevelDebug
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
