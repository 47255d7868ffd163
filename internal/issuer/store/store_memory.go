package store

import (
	"context"
	"sort"
	"sync"

	"certreg/internal/issuer/models"
	"certreg/pkg/domain"
	"certreg/pkg/platform/sentinel"
)

// InMemoryStore keeps allow-list entries in a map.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[domain.Principal]models.Entry
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{entries: make(map[domain.Principal]models.Entry)}
}

// Add inserts or replaces the entry for its principal.
func (s *InMemoryStore) Add(_ context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Principal] = *entry
	return nil
}

func (s *InMemoryStore) Remove(_ context.Context, principal domain.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[principal]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.entries, principal)
	return nil
}

func (s *InMemoryStore) Contains(_ context.Context, principal domain.Principal) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[principal]
	return ok, nil
}

// List returns entries ordered by principal.
func (s *InMemoryStore) List(_ context.Context) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entry := e
		out = append(out, &entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Principal < out[j].Principal })
	return out, nil
}
