// Package service decides whether a caller may proceed under a fixed-window
// policy, falling back to process-local counters while the shared store is
// unhealthy.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cardforge/internal/ratelimit/models"
	"cardforge/pkg/platform/circuit"
	"cardforge/pkg/requestcontext"
)

// Store counts hits per fixed window.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error)
}

type Service struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	policies map[string]models.Policy
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithFallback answers checks from fallback once the primary store has
// failed enough times in a row to open the circuit.
func WithFallback(fallback Store, opts ...circuit.Option) Option {
	return func(s *Service) {
		s.fallback = fallback
		s.breaker = circuit.New("ratelimit", opts...)
	}
}

func New(primary Store, policies map[string]models.Policy, opts ...Option) (*Service, error) {
	if primary == nil {
		return nil, errors.New("rate limit store is required")
	}
	for scope, p := range policies {
		if p.Limit <= 0 || p.Window <= 0 {
			return nil, fmt.Errorf("invalid rate limit policy for %q", scope)
		}
	}
	s := &Service{
		primary:  primary,
		policies: policies,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Check records a hit for caller under scope and reports whether it is
// within the scope's policy.
func (s *Service) Check(ctx context.Context, scope, caller string) (*models.Result, error) {
	policy, ok := s.policies[scope]
	if !ok {
		return nil, fmt.Errorf("unknown rate limit scope %q", scope)
	}
	key := models.Key(scope, caller)
	now := requestcontext.Now(ctx)

	count, resetAt, err := s.primary.Increment(ctx, key, policy.Window, now)
	if err == nil {
		if s.breaker != nil {
			if _, change := s.breaker.RecordSuccess(); change.Closed {
				s.logger.InfoContext(ctx, "rate limit store recovered")
			}
		}
		return models.NewResult(policy, count, resetAt, now), nil
	}
	if s.breaker == nil {
		return nil, err
	}

	useFallback, change := s.breaker.RecordFailure()
	if change.Opened {
		s.logger.WarnContext(ctx, "rate limit store unavailable, using in-memory fallback", "error", err)
	}
	if !useFallback {
		return nil, err
	}
	count, resetAt, ferr := s.fallback.Increment(ctx, key, policy.Window, now)
	if ferr != nil {
		return nil, errors.Join(err, ferr)
	}
	res := models.NewResult(policy, count, resetAt, now)
	res.Degraded = true
	return res, nil
}
