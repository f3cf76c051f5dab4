// Package token issues and validates the signed access tokens handed out at
// login. A token only proves which session it was minted for; the session
// store remains the authority on whether that session is still live.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "cardforge/pkg/domain"
	dErrors "cardforge/pkg/domain-errors"
)

// Claims are the access token claims.
type Claims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Subject returns the typed user and session IDs carried by the token.
func (c *Claims) Subject() (id.UserID, id.SessionID, error) {
	userID, err := id.ParseUserID(c.UserID)
	if err != nil {
		return id.UserID{}, id.SessionID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	sessionID, err := id.ParseSessionID(c.SessionID)
	if err != nil {
		return id.UserID{}, id.SessionID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return userID, sessionID, nil
}

// Service signs and validates HS256 tokens.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey, issuer string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// Issue signs a token for the session. It returns the token and its jti.
func (s *Service) Issue(userID id.UserID, sessionID id.SessionID, issuedAt, expiresAt time.Time) (string, string, error) {
	jti := uuid.NewString()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    userID.String(),
		SessionID: sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Issuer:    s.issuer,
			ID:        jti,
		},
	})

	signed, err := t.SignedString(s.signingKey)
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

// Validate checks the signature, issuer and expiry.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}
