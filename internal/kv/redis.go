package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the Redis instance at url (redis:// or rediss://)
// and verifies the connection. The caller owns the returned store and must
// Close it.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	s, err := OpenRedisStore(url)
	if err != nil {
		return nil, err
	}

	if err := s.Ping(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return s, nil
}

// OpenRedisStore builds a client for url without contacting the server. The
// client connects on first use and reconnects after failures.
func OpenRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// Get returns the value stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Set stores value under key, expiring after ttl when ttl is positive.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
