// Package accumulator persists the accumulated whale-trade collection as a
// single JSON blob in a key-value store.
package accumulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/polyinsider/whalewatch/internal/detector"
	"github.com/polyinsider/whalewatch/internal/kv"
	"github.com/polyinsider/whalewatch/internal/store"
)

const (
	// DefaultKey is the store key holding the collection.
	DefaultKey = "whale_trades"
	// DefaultTimeout bounds each store call.
	DefaultTimeout = 3 * time.Second
)

var (
	// ErrStoreRead is returned when the collection could not be read.
	ErrStoreRead = errors.New("store read failed")
	// ErrCorrupt is returned when the stored blob cannot be decoded.
	// It also matches ErrStoreRead.
	ErrCorrupt = fmt.Errorf("%w: corrupt collection", ErrStoreRead)
	// ErrStoreWrite is returned when the collection could not be written.
	ErrStoreWrite = errors.New("store write failed")
)

// Collection is the set of accumulated whale trades.
type Collection []store.Trade

// Keys returns the set of deduplication keys in the collection.
func (c Collection) Keys() map[string]struct{} {
	keys := make(map[string]struct{}, len(c))
	for _, t := range c {
		keys[detector.DedupKey(t)] = struct{}{}
	}
	return keys
}

// Adapter loads and saves the collection under one key.
type Adapter struct {
	kv      kv.Store
	key     string
	timeout time.Duration
}

// NewAdapter creates an Adapter over s. An empty key selects DefaultKey and a
// zero timeout selects DefaultTimeout.
func NewAdapter(s kv.Store, key string, timeout time.Duration) *Adapter {
	if key == "" {
		key = DefaultKey
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Adapter{kv: s, key: key, timeout: timeout}
}

// Key returns the store key the adapter reads and writes.
func (a *Adapter) Key() string {
	return a.key
}

// Load reads the collection. An absent key yields an empty collection.
// Members that cannot be keyed are dropped.
func (a *Adapter) Load(ctx context.Context) (Collection, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	data, err := a.kv.Get(ctx, a.key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return Collection{}, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrStoreRead, err)
	}

	var trades []store.Trade
	if err := json.Unmarshal(data, &trades); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	coll := make(Collection, 0, len(trades))
	dropped := 0
	for _, t := range trades {
		if !detector.Keyable(t) {
			dropped++
			continue
		}
		coll = append(coll, t)
	}
	if dropped > 0 {
		slog.Warn("collection_members_dropped", "key", a.key, "count", dropped)
	}

	return coll, nil
}

// Save replaces the stored collection with c.
func (a *Adapter) Save(ctx context.Context, c Collection) error {
	if c == nil {
		c = Collection{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrStoreWrite, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.kv.Set(ctx, a.key, data, 0); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	return nil
}
