package kv

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
)

// ErrClosed is returned by a MemoryStore after Close.
var ErrClosed = errors.New("store closed")

// MemoryStore is an in-process Store for running without Redis.
// Contents do not survive a restart.
type MemoryStore struct {
	cache  *ristretto.Cache
	closed atomic.Bool
}

// NewMemoryStore creates a MemoryStore holding up to maxBytes of values.
func NewMemoryStore(maxBytes int64) (*MemoryStore, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}

	return &MemoryStore{cache: cache}, nil
}

// Get returns a copy of the value stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	v, ok := s.cache.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Set stores a copy of value under key. The write is visible to subsequent
// Gets once Set returns.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if ttl < 0 {
		ttl = 0
	}

	data := append([]byte(nil), value...)
	cost := int64(len(data))
	if cost == 0 {
		cost = 1
	}

	if !s.cache.SetWithTTL(key, data, cost, ttl) {
		return fmt.Errorf("memory set %s: write rejected", key)
	}
	s.cache.Wait()
	return nil
}

// Ping reports whether the store is still open.
func (s *MemoryStore) Ping(_ context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Close releases the cache. Further calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.cache.Close()
	}
	return nil
}
