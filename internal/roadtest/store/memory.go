package store

import (
	"context"
	"sync"
	"time"

	"sarathi/internal/roadtest"
	"sarathi/pkg/platform/sentinel"
)

// InMemorySessionStore keys one-time code sessions by identity token. Put
// evicts stale entries so abandoned codes do not accumulate.
type InMemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]roadtest.Session
	now      func() time.Time

	// retention keeps an expired session visible long enough for a late
	// verification attempt to be told the code expired rather than that it
	// never existed.
	retention time.Duration
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions:  make(map[string]roadtest.Session),
		now:       time.Now,
		retention: time.Hour,
	}
}

func (s *InMemorySessionStore) Put(_ context.Context, identityToken string, session roadtest.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.retention)
	for token, existing := range s.sessions {
		if existing.ExpiresAt.Before(cutoff) {
			delete(s.sessions, token)
		}
	}
	s.sessions[identityToken] = session
	return nil
}

func (s *InMemorySessionStore) Get(_ context.Context, identityToken string) (*roadtest.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[identityToken]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := session
	return &out, nil
}

func (s *InMemorySessionStore) Delete(_ context.Context, identityToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, identityToken)
	return nil
}
