package store

import (
	"context"
	"sync"

	"sarathi/internal/assessment"
	"sarathi/pkg/platform/sentinel"
)

// InMemoryAttemptStore keeps submission history per identity token and type.
type InMemoryAttemptStore struct {
	mu       sync.RWMutex
	attempts map[attemptKey][]assessment.Attempt
}

type attemptKey struct {
	identityToken string
	typ           assessment.Type
}

func NewInMemoryAttemptStore() *InMemoryAttemptStore {
	return &InMemoryAttemptStore{attempts: make(map[attemptKey][]assessment.Attempt)}
}

func (s *InMemoryAttemptStore) Record(_ context.Context, attempt assessment.Attempt) error {
	key := attemptKey{attempt.IdentityToken, attempt.Type}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[key] = append(s.attempts[key], attempt)
	return nil
}

func (s *InMemoryAttemptStore) Count(_ context.Context, identityToken string, typ assessment.Type) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts[attemptKey{identityToken, typ}]), nil
}

func (s *InMemoryAttemptStore) Latest(_ context.Context, identityToken string, typ assessment.Type) (*assessment.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.attempts[attemptKey{identityToken, typ}]
	if len(history) == 0 {
		return nil, sentinel.ErrNotFound
	}
	latest := history[len(history)-1]
	return &latest, nil
}

// InMemorySequenceStore issues gap-free ordinals per credential type and year.
type InMemorySequenceStore struct {
	mu   sync.Mutex
	next map[sequenceKey]int
}

type sequenceKey struct {
	credentialType string
	year           int
}

func NewInMemorySequenceStore() *InMemorySequenceStore {
	return &InMemorySequenceStore{next: make(map[sequenceKey]int)}
}

func (s *InMemorySequenceStore) Next(_ context.Context, credentialType string, year int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sequenceKey{credentialType, year}
	s.next[key]++
	return s.next[key], nil
}
