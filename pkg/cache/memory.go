package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store bounded by entry count. Suitable for
// single-node deployments and tests; a multi-replica deployment needs the
// Redis backend so invalidations reach every node.
type MemoryStore struct {
	lru *expirable.LRU[string, memoryEntry]
}

// NewMemoryStore creates an in-process store holding at most maxEntries
// values. defaultTTL is a backstop expiry applied by the underlying LRU; the
// per-call TTL from Set is honored at read time.
func NewMemoryStore(maxEntries int, defaultTTL time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	return &MemoryStore{
		lru: expirable.NewLRU[string, memoryEntry](maxEntries, nil, defaultTTL),
	}
}

// Get returns the value for key, or ErrMiss when absent or expired.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	entry, ok := s.lru.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.lru.Remove(key)
		return nil, ErrMiss
	}
	return entry.value, nil
}

// Set stores value under key with the given TTL.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.lru.Add(key, entry)
	return nil
}

// Delete removes the given keys.
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		s.lru.Remove(key)
	}
	return nil
}

// Ping always succeeds for the in-process store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close purges all entries.
func (s *MemoryStore) Close() error {
	s.lru.Purge()
	return nil
}

// Len returns the number of cached entries.
func (s *MemoryStore) Len() int {
	return s.lru.Len()
}
