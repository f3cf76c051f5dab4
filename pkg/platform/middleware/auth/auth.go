package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	id "cardforge/pkg/domain"
	dErrors "cardforge/pkg/domain-errors"
	"cardforge/pkg/platform/httputil"
	"cardforge/pkg/requestcontext"
)

// CookieName is the cookie that carries the access token for browser clients.
const CookieName = "session"

// Authenticator resolves an access token to a live session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (id.UserID, id.SessionID, error)
}

// TokenFromRequest returns the bearer token, falling back to the session
// cookie. It returns "" when neither is present.
func TokenFromRequest(r *http.Request) string {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth rejects requests without a valid token and live session.
func RequireAuth(authn Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token := TokenFromRequest(r)
			if token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}

			userID, sessionID, err := authn.Authenticate(ctx, token)
			if err != nil {
				if dErrors.CodeOf(err) == dErrors.CodeInternal {
					logger.ErrorContext(ctx, "failed to authenticate request",
						"request_id", requestID,
						"error", err,
					)
				} else {
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"request_id", requestID,
						"error", err,
					)
				}
				httputil.WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(ctx, userID, sessionID)))
		})
	}
}

// OptionalAuth attaches the caller's identity when a valid token is present
// and otherwise lets the request through anonymously.
func OptionalAuth(authn Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, sessionID, err := authn.Authenticate(ctx, token)
			if err != nil {
				logger.DebugContext(ctx, "ignoring invalid token",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(withIdentity(ctx, userID, sessionID)))
		})
	}
}

func withIdentity(ctx context.Context, userID id.UserID, sessionID id.SessionID) context.Context {
	ctx = requestcontext.WithUserID(ctx, userID)
	return requestcontext.WithSessionID(ctx, sessionID)
}
