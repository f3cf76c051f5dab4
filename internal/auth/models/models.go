package models

import (
	"net/mail"
	"strings"
	"time"

	id "cardforge/pkg/domain"
	dErrors "cardforge/pkg/domain-errors"
)

// SessionTTL is how long a login stays valid.
const SessionTTL = 7 * 24 * time.Hour

const (
	minUsernameLength = 3
	maxUsernameLength = 32
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordLength = 72
)

// User is an account that can author cards.
type User struct {
	ID           id.UserID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is a server-side login. A session outlives neither its expiry nor
// a logout.
type Session struct {
	ID        id.SessionID `json:"id"`
	UserID    id.UserID    `json:"user_id"`
	TokenJTI  string       `json:"token_jti"`
	Device    string       `json:"device"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// IsExpired reports whether the session has passed its expiry at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Registration is a validated sign-up request.
type Registration struct {
	Username string
	Email    string
	Password string
}

// Normalize trims whitespace and lowercases the email.
func (r *Registration) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// Validate checks the registration fields.
func (r *Registration) Validate() error {
	if r.Username == "" || r.Email == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "username, email and password are required")
	}
	if n := len(r.Username); n < minUsernameLength || n > maxUsernameLength {
		return dErrors.New(dErrors.CodeValidation, "username must be between 3 and 32 characters")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	if n := len(r.Password); n < minPasswordLength || n > maxPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be between 8 and 72 characters")
	}
	return nil
}

// Credentials is a login attempt. UserAgent labels the resulting session.
type Credentials struct {
	Email     string
	Password  string
	UserAgent string
}

// Login is the outcome of a successful login.
type Login struct {
	User    *User
	Session *Session
	Token   string
}
