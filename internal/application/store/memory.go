package store

import (
	"context"
	"sync"

	"sarathi/internal/application/models"
	"sarathi/pkg/platform/sentinel"
)

// InMemoryStore keeps applications keyed by identity token. One application
// per token; a second Create for the same token conflicts.
type InMemoryStore struct {
	mu      sync.RWMutex
	byToken map[string]*models.Application
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byToken: make(map[string]*models.Application)}
}

func (s *InMemoryStore) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byToken[app.IdentityToken]; exists {
		return sentinel.ErrConflict
	}
	clone := *app
	s.byToken[app.IdentityToken] = &clone
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, identityToken string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.byToken[identityToken]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *app
	return &clone, nil
}

func (s *InMemoryStore) ListByStage(_ context.Context, stage models.Stage) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Application
	for _, app := range s.byToken {
		if app.Stage == stage {
			clone := *app
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byToken[app.IdentityToken]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *app
	s.byToken[app.IdentityToken] = &clone
	return nil
}
