package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a concurrency-safe in-memory Repository. Used as the test
// fake and as the degraded fallback when no durable backend is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	payload   []byte
	createdAt time.Time
}

// MemoryConfig holds configuration for the in-memory cache store.
type MemoryConfig struct {
	TTL time.Duration
	Now func() time.Time
}

// NewMemoryStore creates an empty in-memory cache.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries: make(map[Key]memoryEntry),
		ttl:     ttl,
		now:     now,
	}
}

// Get implements Repository. Expired entries stay stored until Prune.
func (s *MemoryStore) Get(_ context.Context, key Key) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if s.now().UTC().Sub(e.createdAt) > s.ttl {
		return nil, false, nil
	}
	return e.payload, true, nil
}

// Put implements Repository.
func (s *MemoryStore) Put(_ context.Context, key Key, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{payload: payload, createdAt: s.now().UTC()}
	return nil
}

// Prune implements Repository.
func (s *MemoryStore) Prune(_ context.Context, retention time.Duration) error {
	cutoff := s.now().UTC().Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		if e.createdAt.Before(cutoff) {
			delete(s.entries, key)
		}
	}
	return nil
}

// Close implements Repository.
func (s *MemoryStore) Close() error { return nil }

// Len reports the number of physically stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
