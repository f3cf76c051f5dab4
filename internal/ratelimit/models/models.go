package models

import (
	"strings"
	"time"
)

// Policy is a fixed-window allowance: at most Limit requests per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Result is the outcome of one limiter check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is the whole seconds until the window resets, at least 1.
	RetryAfter int
	// Degraded is set when the check was answered by the in-memory fallback.
	Degraded bool
}

// NewResult derives a result from the hit count within the current window.
func NewResult(p Policy, count int64, resetAt, now time.Time) *Result {
	remaining := p.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	retry := int(resetAt.Sub(now).Round(time.Second) / time.Second)
	if retry < 1 {
		retry = 1
	}
	return &Result{
		Allowed:    count <= int64(p.Limit),
		Limit:      p.Limit,
		Remaining:  remaining,
		ResetAt:    resetAt,
		RetryAfter: retry,
	}
}

// WindowStart truncates now to the start of its fixed window.
func WindowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

// Key builds the counter key for a scope and caller.
func Key(scope, caller string) string {
	return "ratelimit:" + SanitizeKeySegment(scope) + ":" + SanitizeKeySegment(caller)
}

// SanitizeKeySegment escapes the key delimiter so a caller-controlled segment
// cannot spill into an adjacent one. IPv6 addresses are the usual offender.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}
