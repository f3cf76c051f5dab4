package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
// These describe the state of a resource, not a validation failure:
//   - ErrNotFound: row or key does not exist
//   - ErrAlreadyUsed: a unique value (username, email) is taken
//   - ErrExpired: session has passed its expiry
//   - ErrUnavailable: backing service cannot be reached
//
// For bad input, use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	ErrExpired     = errors.New("expired")
	ErrUnavailable = errors.New("unavailable")
)
