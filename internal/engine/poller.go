package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultInterval is the default refresh cadence.
const DefaultInterval = 30 * time.Second

// Refresher runs a single cycle.
type Refresher interface {
	Refresh(ctx context.Context, p Params) (Result, error)
}

// Poller runs refresh cycles on a fixed interval, carrying each cycle's
// collection into the next as the store-read fallback.
type Poller struct {
	refresher Refresher
	params    Params
	interval  time.Duration
	prev      *Result
}

// NewPoller creates a Poller. A zero interval selects DefaultInterval.
func NewPoller(r Refresher, p Params, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	p.Previous = nil
	return &Poller{
		refresher: r,
		params:    p,
		interval:  interval,
	}
}

// Start runs an initial cycle, then one per interval until ctx is done.
func (p *Poller) Start(ctx context.Context) {
	slog.Info("starting_refresh_poller", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("refresh_poller_stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll runs one cycle.
func (p *Poller) poll(ctx context.Context) {
	params := p.params
	if p.prev != nil {
		coll := p.prev.Collection
		params.Previous = &coll
	}

	res, err := p.refresher.Refresh(ctx, params)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.Warn("refresh_cycle_failed", "error", err)
		return
	}
	p.prev = &res
}
