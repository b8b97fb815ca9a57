// Package engine runs the whale-trade refresh cycle: fetch recent trades,
// keep the whales, merge them into the accumulated collection, enforce the
// retention bounds and persist the result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/polyinsider/whalewatch/internal/accumulator"
	"github.com/polyinsider/whalewatch/internal/detector"
	"github.com/polyinsider/whalewatch/internal/store"
)

var (
	// ErrTotalFailure is returned when neither the feed nor any previously
	// accumulated data was available. It is distinct from an empty result.
	ErrTotalFailure = errors.New("total failure: upstream and store unavailable")
	// ErrInvalidParams is returned for thresholds or bounds that cannot be
	// applied.
	ErrInvalidParams = errors.New("invalid refresh parameters")
)

// Feed fetches recent raw trades.
type Feed interface {
	FetchTrades(ctx context.Context, limit int) ([]store.Trade, error)
}

// Accumulator loads and saves the accumulated collection.
type Accumulator interface {
	Load(ctx context.Context) (accumulator.Collection, error)
	Save(ctx context.Context, c accumulator.Collection) error
}

// Params are the per-cycle threshold and retention bounds.
type Params struct {
	MinAmount float64
	MaxAge    time.Duration
	MaxCount  int

	// Previous is the collection from an earlier cycle, used when the store
	// cannot be read.
	Previous *accumulator.Collection
}

// Validate checks that the parameters can be applied.
func (p Params) Validate() error {
	if !detector.ValidMinAmount(p.MinAmount) {
		return fmt.Errorf("%w: minimum amount must be a positive number, got %v", ErrInvalidParams, p.MinAmount)
	}
	if p.MaxAge <= 0 {
		return fmt.Errorf("%w: max age must be positive, got %s", ErrInvalidParams, p.MaxAge)
	}
	if p.MaxCount <= 0 {
		return fmt.Errorf("%w: max count must be positive, got %d", ErrInvalidParams, p.MaxCount)
	}
	return nil
}

// Stats summarises one cycle.
type Stats struct {
	NewCount   int           `json:"new"`
	TotalCount int           `json:"total"`
	Duration   time.Duration `json:"-"`
	Persisted  bool          `json:"persisted"`
}

// DurationMs returns the cycle duration in milliseconds.
func (s Stats) DurationMs() int64 {
	return s.Duration.Milliseconds()
}

// Result is the outcome of one cycle.
type Result struct {
	// Trades are the retained whale trades, largest notional first.
	Trades []store.Trade
	// Collection holds the same members, most recent first.
	Collection accumulator.Collection
	OK         bool
	Stats      Stats

	// FetchErr, LoadErr and SaveErr record failures the cycle recovered from.
	FetchErr error
	LoadErr  error
	SaveErr  error
}

// Degraded reports whether any dependency failed during the cycle.
func (r Result) Degraded() bool {
	return r.FetchErr != nil || r.LoadErr != nil || r.SaveErr != nil
}

// Observer is notified after every cycle, including failed ones (OK false).
type Observer func(Result)

// Option configures an Engine.
type Option func(*Engine)

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// WithClock replaces the clock used for age eviction.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithPageSize sets how many trades are requested per fetch.
func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// Engine runs refresh cycles. Cycles on one Engine never overlap.
type Engine struct {
	feed      Feed
	acc       Accumulator
	pageSize  int
	now       func() time.Time
	observers []Observer
	gate      *semaphore.Weighted
}

// New creates an Engine.
func New(feed Feed, acc Accumulator, opts ...Option) *Engine {
	e := &Engine{
		feed:     feed,
		acc:      acc,
		pageSize: 500,
		now:      time.Now,
		gate:     semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Refresh runs one cycle. Failures of the feed, the store read or the store
// write are recovered from and recorded on the Result; only when no data at
// all is available does Refresh return an error wrapping ErrTotalFailure.
func (e *Engine) Refresh(ctx context.Context, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	// Serialize the read-modify-write against the shared collection key.
	if err := e.gate.Acquire(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("waiting for refresh: %w", err)
	}
	defer e.gate.Release(1)

	start := time.Now()
	var res Result

	// Fetch and filter
	fetched, err := e.feed.FetchTrades(ctx, e.pageSize)
	if err != nil {
		res.FetchErr = err
		slog.Warn("upstream_fetch_failed", "error", err)
	}

	fresh := make([]store.Trade, 0, len(fetched))
	for _, t := range fetched {
		if detector.IsWhale(t, p.MinAmount) && detector.Keyable(t) {
			fresh = append(fresh, t)
		}
	}

	// Load existing
	existing, err := e.acc.Load(ctx)
	storeReachable := true
	if err != nil {
		res.LoadErr = err
		storeReachable = errors.Is(err, accumulator.ErrCorrupt)
		existing = nil
		if p.Previous != nil {
			existing = *p.Previous
			slog.Warn("store_read_failed", "error", err, "fallback", "previous", "previous_count", len(existing))
		} else {
			slog.Warn("store_read_failed", "error", err, "fallback", "empty")
		}
	}

	if res.FetchErr != nil && res.LoadErr != nil && p.Previous == nil {
		res.Stats.Duration = time.Since(start)
		slog.Error("refresh_failed", "fetch_error", res.FetchErr, "load_error", res.LoadErr)
		e.notify(res)
		return res, fmt.Errorf("%w: %w", ErrTotalFailure, errors.Join(res.FetchErr, res.LoadErr))
	}

	// Merge, retain and persist
	kept := merge(existing, fresh, p.MinAmount)
	kept = retain(kept, e.now(), p.MaxAge, p.MaxCount)

	changed := len(fresh) > 0 || !sameMembers(existing, kept)
	switch {
	case !changed:
	case !storeReachable:
		slog.Warn("store_write_skipped", "reason", "store unreadable this cycle")
	default:
		if err := e.acc.Save(ctx, kept); err != nil {
			res.SaveErr = err
			slog.Warn("store_write_failed", "error", err)
		} else {
			res.Stats.Persisted = true
		}
	}

	res.Collection = kept
	res.Trades = byNotional(kept)
	res.OK = true
	res.Stats.NewCount = len(fresh)
	res.Stats.TotalCount = len(kept)
	res.Stats.Duration = time.Since(start)

	slog.Info("refresh_complete",
		"new", res.Stats.NewCount,
		"total", res.Stats.TotalCount,
		"fetched", len(fetched),
		"persisted", res.Stats.Persisted,
		"degraded", res.Degraded(),
		"ms", res.Stats.DurationMs(),
	)

	e.notify(res)
	return res, nil
}

func (e *Engine) notify(res Result) {
	for _, o := range e.observers {
		o(res)
	}
}

// merge re-validates existing members against minAmount and overlays fresh
// trades on top, keyed by deduplication key.
func merge(existing, fresh []store.Trade, minAmount float64) []store.Trade {
	byKey := make(map[string]store.Trade, len(existing)+len(fresh))
	for _, t := range existing {
		if detector.IsWhale(t, minAmount) {
			byKey[detector.DedupKey(t)] = t
		}
	}
	for _, t := range fresh {
		byKey[detector.DedupKey(t)] = t
	}

	out := make([]store.Trade, 0, len(byKey))
	for _, t := range byKey {
		out = append(out, t)
	}
	return out
}

// retain drops members older than maxAge, orders the rest most recent first
// and keeps at most maxCount.
func retain(trades []store.Trade, now time.Time, maxAge time.Duration, maxCount int) accumulator.Collection {
	cutoff := now.Add(-maxAge).Unix()

	kept := make(accumulator.Collection, 0, len(trades))
	for _, t := range trades {
		if t.Timestamp >= cutoff {
			kept = append(kept, t)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Timestamp != kept[j].Timestamp {
			return kept[i].Timestamp > kept[j].Timestamp
		}
		return detector.DedupKey(kept[i]) < detector.DedupKey(kept[j])
	})

	if len(kept) > maxCount {
		kept = kept[:maxCount]
	}
	return kept
}

// byNotional returns a copy of trades ordered by notional, largest first.
func byNotional(trades []store.Trade) []store.Trade {
	out := make([]store.Trade, len(trades))
	copy(out, trades)

	sort.SliceStable(out, func(i, j int) bool {
		ni, nj := detector.Notional(out[i]), detector.Notional(out[j])
		if ni != nj {
			return ni > nj
		}
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}

// sameMembers reports whether a and b hold the same deduplication keys.
func sameMembers(a, b []store.Trade) bool {
	if len(a) != len(b) {
		return false
	}
	keys := accumulator.Collection(a).Keys()
	if len(keys) != len(a) {
		return false
	}
	for _, t := range b {
		if _, ok := keys[detector.DedupKey(t)]; !ok {
			return false
		}
	}
	return true
}
