package cart

import (
	"context"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store implementation. The server keeps carts
// here as a mirror of the client-held state; tests use it to observe exactly
// when checkout clears a cart.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]Snapshot
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]Snapshot)}
}

// Get returns the stored snapshot for the user, or an empty one.
func (s *MemoryStore) Get(_ context.Context, userID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.carts[userID], nil
}

// Set replaces the stored snapshot for the user.
func (s *MemoryStore) Set(_ context.Context, userID string, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[userID] = snap
	return nil
}

// Clear removes the stored snapshot for the user.
func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}
