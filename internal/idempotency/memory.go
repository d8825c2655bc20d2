package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded in-memory Store for tests and local runs.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]time.Time // key -> expiry; zero time means no expiry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]time.Time)}
}

// Acquire claims key for ttl with first-caller-wins semantics.
func (s *MemoryStore) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if exp, ok := s.items[key]; ok && (exp.IsZero() || exp.After(now)) {
		return false, nil
	}
	if ttl > 0 {
		s.items[key] = now.Add(ttl)
	} else {
		s.items[key] = time.Time{}
	}
	return true, nil
}

// Release drops a claim early.
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}
