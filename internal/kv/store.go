// Package kv provides the key-value store clients used for persistence.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("key not found")

// Store is a minimal key-value store with optional per-key expiry.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
