package handler

import (
	"time"

	"cardforge/internal/auth/models"
)

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func fromUser(u *models.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// UserEnvelope wraps a user for register and me.
type UserEnvelope struct {
	User *UserResponse `json:"user"`
}

// LoginResponse carries the access token for clients that do not use the
// session cookie.
type LoginResponse struct {
	User      *UserResponse `json:"user"`
	Token     string        `json:"token"`
	Device    string        `json:"device"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// LogoutAllResponse reports how many sessions were ended.
type LogoutAllResponse struct {
	Revoked int `json:"revoked"`
}
