package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"cardforge/internal/audit"
	"cardforge/internal/platform/metrics"
	"cardforge/internal/ratelimit/models"
	dErrors "cardforge/pkg/domain-errors"
	"cardforge/pkg/platform/httputil"
	"cardforge/pkg/requestcontext"
)

type Limiter interface {
	Check(ctx context.Context, scope, caller string) (*models.Result, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

type Middleware struct {
	limiter        Limiter
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	disabled       bool
}

type Option func(*Middleware)

// WithDisabled turns the middleware into a pass-through (local development).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(m *Middleware) {
		m.auditPublisher = p
	}
}

func New(limiter Limiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit applies scope's policy keyed by client IP. Limiter failures let the
// request through.
func (m *Middleware) Limit(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result, err := m.limiter.Check(ctx, scope, ip)
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed, allowing request",
					"request_id", requestcontext.RequestID(ctx),
					"scope", scope,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.reject(ctx, w, scope, ip, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) reject(ctx context.Context, w http.ResponseWriter, scope, ip string, result *models.Result) {
	m.metrics.IncrementRateLimited(scope)
	m.logger.WarnContext(ctx, "rate limit exceeded",
		"request_id", requestcontext.RequestID(ctx),
		"scope", scope,
		"retry_after", result.RetryAfter,
	)
	if m.auditPublisher != nil {
		if err := m.auditPublisher.Emit(ctx, audit.Event{
			Subject: ip,
			Action:  string(audit.EventRateLimitExceeded),
			Reason:  scope,
		}); err != nil {
			m.logger.WarnContext(ctx, "failed to emit audit event", "error", err)
		}
	}

	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteError(w, dErrors.New(dErrors.CodeTooManyRequests, "too many requests, try again later"))
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if result.Degraded {
		w.Header().Set("X-RateLimit-Status", "degraded")
	}
}
