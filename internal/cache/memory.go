package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore is a process-local Store backed by go-cache. Counters are not
// shared between server instances.
type MemoryStore struct {
	mu    sync.Mutex
	items *gocache.Cache
}

// NewMemoryStore creates a store whose expired entries are purged every
// cleanupInterval.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &MemoryStore{items: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

func (s *MemoryStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if err := s.items.Add(key, int64(1), window); err == nil {
		return 1, window, nil
	}

	count, err := s.items.IncrementInt64(key, 1)
	if err != nil {
		// The entry holds a foreign type; restart the window.
		s.items.Set(key, int64(1), window)
		return 1, window, nil
	}

	_, expiresAt, _ := s.items.GetWithExpiration(key)
	ttl := window
	if !expiresAt.IsZero() {
		ttl = expiresAt.Sub(now)
	}
	return count, ttl, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok := s.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	value, ok := raw.([]byte)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		s.items.Delete(key)
	}
	return nil
}

// Flush drops every entry.
func (s *MemoryStore) Flush() {
	s.items.Flush()
}
