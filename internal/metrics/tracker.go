// Package metrics tracks refresh-cycle health for the dashboard and the
// Prometheus endpoint.
package metrics

import (
	"sync"
	"time"

	"github.com/polyinsider/whalewatch/internal/engine"
	"github.com/polyinsider/whalewatch/internal/store"
)

// Snapshot is a point-in-time view of the tracker.
type Snapshot struct {
	Cycles        int64
	Failures      int64
	Degraded      int64
	NewTotal      int64
	LastStats     engine.Stats
	LastOK        bool
	LastRefresh   time.Time
	LastSuccess   time.Time
	UpstreamErr   string
	StoreReadErr  string
	StoreWriteErr string
	Whales        []store.Trade
	Uptime        time.Duration
}

// Tracker records the outcome of every refresh cycle. It is safe for
// concurrent use.
type Tracker struct {
	mu          sync.RWMutex
	cycles      int64
	failures    int64
	degraded    int64
	newTotal    int64
	lastStats   engine.Stats
	lastOK      bool
	lastRefresh time.Time
	lastSuccess time.Time
	fetchErr    string
	loadErr     string
	saveErr     string
	whales      []store.Trade
	startTime   time.Time
	prom        *Prometheus
}

// NewTracker creates a Tracker. prom may be nil.
func NewTracker(prom *Prometheus) *Tracker {
	return &Tracker{
		startTime: time.Now(),
		prom:      prom,
	}
}

// Observe records a cycle result. It has the engine.Observer signature.
func (m *Tracker) Observe(res engine.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.cycles++
	m.lastRefresh = now
	m.lastOK = res.OK
	m.lastStats = res.Stats
	m.fetchErr = errString(res.FetchErr)
	m.loadErr = errString(res.LoadErr)
	m.saveErr = errString(res.SaveErr)

	if !res.OK {
		m.failures++
	} else {
		m.lastSuccess = now
		m.newTotal += int64(res.Stats.NewCount)
		m.whales = res.Trades
		if res.Degraded() {
			m.degraded++
		}
	}

	if m.prom != nil {
		m.prom.Observe(res)
	}
}

// Snapshot returns a point-in-time snapshot of the tracker.
func (m *Tracker) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	whales := make([]store.Trade, len(m.whales))
	copy(whales, m.whales)

	return Snapshot{
		Cycles:        m.cycles,
		Failures:      m.failures,
		Degraded:      m.degraded,
		NewTotal:      m.newTotal,
		LastStats:     m.lastStats,
		LastOK:        m.lastOK,
		LastRefresh:   m.lastRefresh,
		LastSuccess:   m.lastSuccess,
		UpstreamErr:   m.fetchErr,
		StoreReadErr:  m.loadErr,
		StoreWriteErr: m.saveErr,
		Whales:        whales,
		Uptime:        time.Since(m.startTime),
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
