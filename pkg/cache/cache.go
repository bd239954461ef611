// Package cache provides a process-local TTL cache keyed by string.
//
// The store keeps the last written value per key together with its write
// time. Staleness is evaluated lazily on read against a caller-supplied TTL;
// there is no background eviction, so an expired entry stays readable until
// it is overwritten or invalidated. That is deliberate: callers that fail to
// refresh can still serve the last known value.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// Store is a concurrency-safe TTL cache for values of type V.
type Store[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]

	now func() time.Time
}

// New returns an empty store.
func New[V any]() *Store[V] {
	return &Store[V]{
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

// Put stores value under key, stamping it with the current time.
func (s *Store[V]) Put(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[V]{value: value, fetchedAt: s.now()}
}

// Get returns the cached value regardless of age. The second return is false
// when the key has never been written or was invalidated.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Fresh reports whether key holds an entry younger than ttl. A missing key is
// never fresh.
func (s *Store[V]) Fresh(key string, ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	return s.now().Sub(e.fetchedAt) < ttl
}

// Invalidate drops the entry for key if present.
func (s *Store[V]) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}
