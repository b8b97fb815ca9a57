// Package stub provides an in-memory kv.Store with injectable failures for
// tests.
package stub

import (
	"context"
	"sync"
	"time"

	"github.com/polyinsider/whalewatch/internal/kv"
)

// Store implements kv.Store for testing.
type Store struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration

	// GetErr, SetErr and PingErr are returned by the matching call when set.
	GetErr  error
	SetErr  error
	PingErr error

	Gets int
	Sets int
}

// NewStore creates an empty stub store.
func NewStore() *Store {
	return &Store{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
	}
}

// Get returns the stored value or kv.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Gets++
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := s.data[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores value under key, remembering the ttl.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Sets++
	if s.SetErr != nil {
		return s.SetErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data[key] = append([]byte(nil), value...)
	s.ttls[key] = ttl
	return nil
}

// Ping returns PingErr.
func (s *Store) Ping(_ context.Context) error {
	return s.PingErr
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// Put stores a raw value directly, bypassing failure injection.
func (s *Store) Put(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
}

// Raw returns the raw stored value and whether it exists.
func (s *Store) Raw(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// TTL returns the ttl the key was last written with.
func (s *Store) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttls[key]
}

// Counts returns the number of Get and Set calls made so far.
func (s *Store) Counts() (gets, sets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Gets, s.Sets
}

// SetFailures replaces the injected Get and Set errors.
func (s *Store) SetFailures(getErr, setErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetErr = getErr
	s.SetErr = setErr
}
