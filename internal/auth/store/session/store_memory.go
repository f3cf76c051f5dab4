package session

import (
	"context"
	"sync"

	"cardforge/internal/auth/models"
	id "cardforge/pkg/domain"
	"cardforge/pkg/platform/sentinel"
)

// InMemorySessionStore keeps sessions in a map. Expired sessions stay until
// deleted; callers check expiry on read.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
}

// New returns an empty in-memory session store.
func New() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[id.SessionID]*models.Session)}
}

func (s *InMemorySessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *session
	s.sessions[session.ID] = &stored
	return nil
}

func (s *InMemorySessionStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, ok := s.sessions[sessionID]; ok {
		found := *session
		return &found, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemorySessionStore) Delete(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// DeleteByUser removes every session of the user and reports how many went.
func (s *InMemorySessionStore) DeleteByUser(_ context.Context, userID id.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed, nil
}
