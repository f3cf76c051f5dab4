package store

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"cardforge/internal/card/models"
	id "cardforge/pkg/domain"
	"cardforge/pkg/platform/sentinel"
)

// InMemoryStore is a map-backed card store for tests and local runs. It
// evaluates the same predicates as the PostgreSQL store.
type InMemoryStore struct {
	mu    sync.RWMutex
	cards map[id.CardID]*models.Card
}

// NewInMemory constructs an empty in-memory card store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{cards: make(map[id.CardID]*models.Card)}
}

func (s *InMemoryStore) FindByID(_ context.Context, cardID id.CardID) (*models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	card, ok := s.cards[cardID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneCard(card), nil
}

func (s *InMemoryStore) Insert(_ context.Context, card *models.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[card.ID] = cloneCard(card)
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, card *models.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.cards[card.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	next := cloneCard(card)
	next.OwnerID = existing.OwnerID
	next.CreatedAt = existing.CreatedAt
	s.cards[card.ID] = next
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, cardID id.CardID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cards[cardID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.cards, cardID)
	return nil
}

func (s *InMemoryStore) Query(_ context.Context, preds []Predicate, page models.Page) ([]id.CardID, int, error) {
	s.mu.RLock()
	matched := make([]*models.Card, 0, len(s.cards))
	for _, card := range s.cards {
		if MatchAll(preds, card) {
			matched = append(matched, card)
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(matched)
	window := pageWindow(matched, page)
	ids := make([]id.CardID, 0, len(window))
	for _, card := range window {
		ids = append(ids, card.ID)
	}
	return ids, len(matched), nil
}

func (s *InMemoryStore) ListSummaries(_ context.Context, page models.Page) ([]models.Summary, int, error) {
	s.mu.RLock()
	all := make([]*models.Card, 0, len(s.cards))
	for _, card := range s.cards {
		all = append(all, card)
	}
	s.mu.RUnlock()

	sortNewestFirst(all)
	window := pageWindow(all, page)
	summaries := make([]models.Summary, 0, len(window))
	for _, card := range window {
		summaries = append(summaries, models.Summary{ID: card.ID, Name: card.Name, Category: card.Category})
	}
	return summaries, len(all), nil
}

func sortNewestFirst(cards []*models.Card) {
	sort.Slice(cards, func(i, j int) bool {
		if !cards[i].CreatedAt.Equal(cards[j].CreatedAt) {
			return cards[i].CreatedAt.After(cards[j].CreatedAt)
		}
		return bytes.Compare(cards[i].ID[:], cards[j].ID[:]) > 0
	})
}

func pageWindow(cards []*models.Card, page models.Page) []*models.Card {
	start := page.Offset()
	if start >= len(cards) {
		return nil
	}
	end := start + page.Size
	if end > len(cards) {
		end = len(cards)
	}
	return cards[start:end]
}

func cloneCard(c *models.Card) *models.Card {
	out := *c
	if c.Accessory != nil {
		acc := *c.Accessory
		out.Accessory = &acc
	}
	out.Tags = append([]string{}, c.Tags...)
	return &out
}
