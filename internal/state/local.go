package state

import (
	"context"
	"sync"
)

// LocalStore implements Store with an in-memory map.
// This is suitable for single-instance deployments; phases do not survive a
// restart, which only means an in-flight conversation falls back to idle.
type LocalStore struct {
	mu     sync.RWMutex
	phases map[int64]Phase
}

// NewLocalStore creates a new in-memory phase store.
func NewLocalStore() *LocalStore {
	return &LocalStore{
		phases: make(map[int64]Phase),
	}
}

// Get retrieves the phase for a chat.
func (s *LocalStore) Get(ctx context.Context, chatID int64) (Phase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	phase, ok := s.phases[chatID]
	if !ok {
		return PhaseIdle, nil
	}
	return phase, nil
}

// Set stores the phase for a chat.
func (s *LocalStore) Set(ctx context.Context, chatID int64, phase Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if phase == PhaseIdle {
		delete(s.phases, chatID)
		return nil
	}
	s.phases[chatID] = phase
	return nil
}

// Close is a no-op for the local store.
func (s *LocalStore) Close() error {
	return nil
}
