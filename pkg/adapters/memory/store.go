// Package memory provides in-memory implementations of the state and record
// stores, used by tests and single-process runs.
package memory

import (
	"context"
	"sync"

	"github.com/cadenzahq/cadenza/pkg/domain"
)

// Store implements ports.StateStore in memory. Safe for concurrent use.
type Store struct {
	data map[string]*domain.State
	mu   sync.RWMutex
}

// NewStore creates a new in-memory state store.
func NewStore() *Store {
	return &Store{data: make(map[string]*domain.State)}
}

// Save persists the state in memory. The state is cloned on write so callers
// cannot mutate stored snapshots through retained pointers.
func (s *Store) Save(ctx context.Context, sessionID string, state *domain.State) error {
	clone := state.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = clone
	return nil
}

// Load retrieves a clone of the stored state.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return state.Clone(), nil
}

// Delete removes the state.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns active session IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	return sessions, nil
}
