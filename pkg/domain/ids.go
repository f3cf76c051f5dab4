// Package domain holds typed identifiers shared across bounded contexts.
//
// Each identifier is a distinct named type over uuid.UUID, so a CardID cannot
// be passed where a UserID is expected. Parse* functions are the trust
// boundary: they reject empty, malformed, and nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "cardforge/pkg/domain-errors"
)

type (
	UserID    uuid.UUID
	SessionID uuid.UUID
	CardID    uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return parsed, nil
}

// ParseUserID validates and returns a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user ID", s)
	return UserID(u), err
}

// ParseSessionID validates and returns a SessionID.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID("session ID", s)
	return SessionID(u), err
}

// ParseCardID validates and returns a CardID.
func ParseCardID(s string) (CardID, error) {
	u, err := parseUUID("card ID", s)
	return CardID(u), err
}

func NewUserID() UserID       { return UserID(uuid.New()) }
func NewSessionID() SessionID { return SessionID(uuid.New()) }
func NewCardID() CardID       { return CardID(uuid.New()) }

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id CardID) String() string    { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id CardID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// Text encodings make the IDs serialize as canonical UUID strings instead of
// byte arrays.

func (id UserID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id SessionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id CardID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *SessionID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CardID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
