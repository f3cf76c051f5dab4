package window

import (
	"context"
	"sync"
	"time"

	"cardforge/internal/ratelimit/models"
)

// pruneThreshold bounds how many counters accumulate before stale windows
// are swept.
const pruneThreshold = 4096

type counter struct {
	start time.Time
	count int64
}

// InMemoryStore counts hits per fixed window in process memory. Counters are
// not shared between replicas.
type InMemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter
}

func New() *InMemoryStore {
	return &InMemoryStore{counters: make(map[string]*counter)}
}

// Increment records a hit and returns the count within the current window.
func (s *InMemoryStore) Increment(_ context.Context, key string, window time.Duration, now time.Time) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := models.WindowStart(now, window)
	c, ok := s.counters[key]
	if !ok || !c.start.Equal(start) {
		if len(s.counters) >= pruneThreshold {
			s.prune(start)
		}
		c = &counter{start: start}
		s.counters[key] = c
	}
	c.count++
	return c.count, start.Add(window), nil
}

// prune drops counters from windows before current.
func (s *InMemoryStore) prune(current time.Time) {
	for k, c := range s.counters {
		if c.start.Before(current) {
			delete(s.counters, k)
		}
	}
}
