package store

import (
	"context"
	"sync"

	"sarathi/internal/audit"
)

// InMemoryStore keeps the trail in insertion order, for development and tests.
type InMemoryStore struct {
	mu     sync.Mutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByToken(_ context.Context, identityToken string) ([]audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Event, 0)
	for _, event := range s.events {
		if event.IdentityToken == identityToken {
			out = append(out, event)
		}
	}
	return out, nil
}
