// Package ui provides terminal user interface components.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polyinsider/whalewatch/internal/engine"
	"github.com/polyinsider/whalewatch/internal/metrics"
)

const resultBuffer = 16

// App is the main TUI application.
type App struct {
	app    *tview.Application
	layout *tview.Flex

	// Views
	marketOverview *MarketOverviewView
	cycleAlerts    *CycleAlertsView
	whaleFeed      *WhaleFeedView
	statsDashboard *StatsDashboardView
	topTraders     *TopTradersView

	// Data
	results chan engine.Result
	tracker *metrics.Tracker
	refresh time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates a new TUI application. refresh is the stats redraw interval.
func NewApp(tracker *metrics.Tracker, refresh time.Duration) *App {
	ctx, cancel := context.WithCancel(context.Background())

	if refresh <= 0 {
		refresh = 500 * time.Millisecond
	}

	app := &App{
		app:     tview.NewApplication(),
		results: make(chan engine.Result, resultBuffer),
		tracker: tracker,
		refresh: refresh,
		ctx:     ctx,
		cancel:  cancel,
	}

	// Initialize views
	app.marketOverview = NewMarketOverviewView()
	app.cycleAlerts = NewCycleAlertsView()
	app.whaleFeed = NewWhaleFeedView()
	app.statsDashboard = NewStatsDashboardView()
	app.topTraders = NewTopTradersView()

	app.setupLayout()
	app.setupKeyboard()

	return app
}

// Observe queues a cycle result for display. It has the engine.Observer
// signature and never blocks the refresh cycle.
func (a *App) Observe(res engine.Result) {
	select {
	case a.results <- res:
	default:
		slog.Debug("ui_result_dropped", "reason", "buffer full")
	}
}

// setupLayout creates the 5-panel layout.
func (a *App) setupLayout() {
	// Top row: Whale Markets (left) | Refresh Cycles (right)
	topRow := tview.NewFlex().
		AddItem(a.marketOverview.Widget(), 0, 1, false).
		AddItem(a.cycleAlerts.Widget(), 0, 2, false)

	// Middle row: Whale Trades (full width)
	middleRow := a.whaleFeed.Widget()

	// Bottom row: Stats Dashboard (left) | Top Traders (right)
	bottomRow := tview.NewFlex().
		AddItem(a.statsDashboard.Widget(), 0, 1, false).
		AddItem(a.topTraders.Widget(), 0, 1, false)

	a.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 2, false).
		AddItem(middleRow, 0, 3, false).
		AddItem(bottomRow, 0, 2, false)

	a.app.SetRoot(a.layout, true)
}

// setupKeyboard configures keyboard shortcuts.
func (a *App) setupKeyboard() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			a.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q', 'Q':
				a.Stop()
				return nil
			case 'r', 'R':
				a.redraw()
				return nil
			}
		}
		return event
	})
}

// Run starts the TUI application (blocking).
func (a *App) Run() error {
	go a.processResults()
	go a.updateLoop()

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("app run failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// Done is closed once the application has been stopped.
func (a *App) Done() <-chan struct{} {
	return a.ctx.Done()
}

// processResults applies queued cycle results to the views.
func (a *App) processResults() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case res := <-a.results:
			at := time.Now()
			a.app.QueueUpdateDraw(func() {
				a.cycleAlerts.Add(at, res)
				if res.OK {
					a.whaleFeed.Update(res.Trades)
					a.marketOverview.Update(res.Trades)
					a.topTraders.Update(res.Trades)
				}
			})
		}
	}
}

// updateLoop periodically refreshes the stats panel.
func (a *App) updateLoop() {
	ticker := time.NewTicker(a.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			snapshot := a.tracker.Snapshot()

			a.app.QueueUpdateDraw(func() {
				a.statsDashboard.Update(snapshot)
			})
		}
	}
}

// redraw rebuilds every view from the tracker.
func (a *App) redraw() {
	snapshot := a.tracker.Snapshot()

	a.app.QueueUpdateDraw(func() {
		a.statsDashboard.Update(snapshot)
		a.whaleFeed.Update(snapshot.Whales)
		a.marketOverview.Update(snapshot.Whales)
		a.topTraders.Update(snapshot.Whales)
		a.cycleAlerts.Refresh()
	})
}
