// Package presence tracks the ephemeral per-user online flag. Entries
// expire after the idle TTL unless refreshed by pings; absence means
// offline. Explicit SetOffline exists only for immediacy on graceful
// disconnect.
package presence

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps presence in-process with lazy expiry: reads treat an
// expired entry as offline and remove it.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // userID -> expiry
	ttl     time.Duration
}

// NewMemoryStore creates an in-memory presence store with the given TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &MemoryStore{
		entries: make(map[string]time.Time),
		ttl:     ttl,
	}
}

// SetOnline marks the user online until the TTL elapses.
func (s *MemoryStore) SetOnline(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = time.Now().Add(s.ttl)
	return nil
}

// Refresh touches the TTL without changing semantics.
func (s *MemoryStore) Refresh(ctx context.Context, userID string) error {
	return s.SetOnline(ctx, userID)
}

// SetOffline removes the entry immediately.
func (s *MemoryStore) SetOffline(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}

// IsOnline reports whether a live, unexpired entry exists.
func (s *MemoryStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, exists := s.entries[userID]
	if !exists {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(s.entries, userID)
		return false, nil
	}
	return true, nil
}
