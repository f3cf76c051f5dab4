package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cardforge/internal/audit"
	"cardforge/internal/auth/device"
	"cardforge/internal/auth/models"
	"cardforge/internal/auth/token"
	"cardforge/internal/platform/metrics"
	id "cardforge/pkg/domain"
	dErrors "cardforge/pkg/domain-errors"
	"cardforge/pkg/platform/sentinel"
	"cardforge/pkg/requestcontext"
)

// DefaultBcryptCost matches the cost accounts have always been hashed with.
const DefaultBcryptCost = 12

type UserStore interface {
	Save(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
	DeleteByUser(ctx context.Context, userID id.UserID) (int, error)
}

type TokenService interface {
	Issue(userID id.UserID, sessionID id.SessionID, issuedAt, expiresAt time.Time) (string, string, error)
	Validate(tokenString string) (*token.Claims, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service handles registration, login and session validation.
type Service struct {
	users          UserStore
	sessions       SessionStore
	tokens         TokenService
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	bcryptCost     int
	// dummyHash is compared against on unknown emails so both failure paths
	// cost one bcrypt comparison.
	dummyHash []byte
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

// New constructs the auth service.
func New(users UserStore, sessions SessionStore, tokens TokenService, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	s := &Service{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		logger:     slog.Default(),
		bcryptCost: DefaultBcryptCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bcryptCost < bcrypt.MinCost || s.bcryptCost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("cardforge-dummy-password"), s.bcryptCost)
	if err != nil {
		return nil, err
	}
	s.dummyHash = dummy
	return s, nil
}

// Register creates an account.
func (s *Service) Register(ctx context.Context, reg models.Registration) (*models.User, error) {
	reg.Normalize()
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	now := requestcontext.Now(ctx).UTC()
	user := &models.User{
		ID:           id.NewUserID(),
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "username or email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save user")
	}

	s.metrics.IncrementUsersCreated()
	s.emit(ctx, audit.EventUserRegistered, user.ID, user.ID.String(), "")
	s.logger.InfoContext(ctx, "user registered",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", user.ID.String(),
	)
	return user, nil
}

// Login checks the credentials and opens a session.
func (s *Service) Login(ctx context.Context, creds models.Credentials) (*models.Login, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(creds.Email)))
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(creds.Password))
		return nil, s.rejectLogin(ctx, "unknown_email")
	case err != nil:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, s.rejectLogin(ctx, "wrong_password")
	}

	now := requestcontext.Now(ctx).UTC()
	session := &models.Session{
		ID:        id.NewSessionID(),
		UserID:    user.ID,
		Device:    device.ParseUserAgent(creds.UserAgent),
		CreatedAt: now,
		ExpiresAt: now.Add(models.SessionTTL),
	}
	signed, jti, err := s.tokens.Issue(user.ID, session.ID, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	session.TokenJTI = jti
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create session")
	}

	s.metrics.IncrementLogins(true)
	s.emit(ctx, audit.EventSessionCreated, user.ID, session.ID.String(), "")
	s.logger.InfoContext(ctx, "user logged in",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", user.ID.String(),
		"session_id", session.ID.String(),
	)
	return &models.Login{User: user, Session: session, Token: signed}, nil
}

func (s *Service) rejectLogin(ctx context.Context, reason string) error {
	s.metrics.IncrementLogins(false)
	s.emit(ctx, audit.EventAuthFailed, id.UserID{}, requestcontext.ClientIP(ctx), reason)
	return dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
}

// Logout ends the session. Ending a session that is already gone succeeds.
func (s *Service) Logout(ctx context.Context, sessionID id.SessionID) error {
	if sessionID.IsNil() {
		return nil
	}
	err := s.sessions.Delete(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to end session")
	}
	s.metrics.IncrementSessionsRevoked(1)
	s.emit(ctx, audit.EventSessionRevoked, requestcontext.UserID(ctx), sessionID.String(), "logout")
	return nil
}

// LogoutEverywhere ends every session of the caller.
func (s *Service) LogoutEverywhere(ctx context.Context) (int, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	removed, err := s.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to end sessions")
	}
	s.metrics.IncrementSessionsRevoked(removed)
	s.emit(ctx, audit.EventSessionRevoked, userID, userID.String(), "logout_all")
	return removed, nil
}

// Me returns the authenticated caller.
func (s *Service) Me(ctx context.Context) (*models.User, error) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "user not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}

// Authenticate resolves an access token to a live session. The token must
// match the session it was issued for, and the session must be unexpired and
// belong to an existing user. Dead sessions are removed on sight.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (id.UserID, id.SessionID, error) {
	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		return id.UserID{}, id.SessionID{}, err
	}
	userID, sessionID, err := claims.Subject()
	if err != nil {
		return id.UserID{}, id.SessionID{}, err
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return id.UserID{}, id.SessionID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session")
	}
	if err != nil {
		return id.UserID{}, id.SessionID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	if session.UserID != userID || session.TokenJTI != claims.ID {
		return id.UserID{}, id.SessionID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid session")
	}
	if session.IsExpired(requestcontext.Now(ctx)) {
		s.dropSession(ctx, sessionID)
		return id.UserID{}, id.SessionID{}, dErrors.New(dErrors.CodeUnauthorized, "session expired")
	}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.dropSession(ctx, sessionID)
			return id.UserID{}, id.SessionID{}, dErrors.New(dErrors.CodeUnauthorized, "user not found")
		}
		return id.UserID{}, id.SessionID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return userID, sessionID, nil
}

func (s *Service) dropSession(ctx context.Context, sessionID id.SessionID) {
	if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to remove dead session",
			"session_id", sessionID.String(),
			"error", err,
		)
	}
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, userID id.UserID, subject, reason string) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		UserID:  userID,
		Subject: subject,
		Action:  string(event),
		Reason:  reason,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", string(event),
			"error", err,
		)
	}
}
