package user

import (
	"context"
	"strings"
	"sync"

	"cardforge/internal/auth/models"
	id "cardforge/pkg/domain"
	"cardforge/pkg/platform/sentinel"
)

// InMemoryUserStore keeps users in a map. Username and email are unique
// case-insensitively, mirroring the PostgreSQL constraints.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[id.UserID]*models.User
}

// New returns an empty in-memory user store.
func New() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[id.UserID]*models.User)}
}

func (s *InMemoryUserStore) Save(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.ID == user.ID {
			continue
		}
		if strings.EqualFold(existing.Username, user.Username) || strings.EqualFold(existing.Email, user.Email) {
			return sentinel.ErrAlreadyUsed
		}
	}
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[userID]; ok {
		found := *u
		return &found, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			found := *u
			return &found, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
