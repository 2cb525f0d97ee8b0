package challenge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shardauth/pkg/platform/sentinel"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-process TokenStore for development and tests.
// Expired entries are dropped lazily on read.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithStoreClock overrides the clock used for expiry.
func WithStoreClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Set(_ context.Context, hashedID, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[Key(hashedID)] = memoryEntry{value: token, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, hashedID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := Key(hashedID)
	e, ok := s.entries[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", key, sentinel.ErrNotFound)
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return "", fmt.Errorf("%s expired: %w", key, sentinel.ErrNotFound)
	}
	return e.value, nil
}

func (s *MemoryStore) Consume(_ context.Context, hashedID, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := Key(hashedID)
	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.expiresAt) || e.value != expected {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, hashedID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, Key(hashedID))
	return nil
}
