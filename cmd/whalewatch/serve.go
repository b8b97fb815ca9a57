package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/polyinsider/whalewatch/internal/api"
	"github.com/polyinsider/whalewatch/internal/engine"
	"github.com/polyinsider/whalewatch/internal/live"
	"github.com/polyinsider/whalewatch/internal/metrics"
	"github.com/polyinsider/whalewatch/internal/shares"
	"github.com/polyinsider/whalewatch/internal/ui"
)

// ShutdownTimeout bounds the graceful HTTP shutdown.
const ShutdownTimeout = 5 * time.Second

var serveTUI bool

var serveCMD = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the refresh poller",
	Long: `Serve the whale feed, sync, share, leaderboard, whale profile and
market endpoints, push updates to websocket clients and refresh the
collection on a fixed interval.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCMD.Flags().BoolVar(&serveTUI, "tui", false, "show the terminal dashboard (overrides ENABLE_TUI)")
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	prom := metrics.NewPrometheus("whalewatch")
	tracker := metrics.NewTracker(prom)
	hub := live.NewHub(cfg.FeedLimit)

	observers := []engine.Option{
		engine.WithObserver(tracker.Observe),
		engine.WithObserver(hub.Publish),
	}

	var app *ui.App
	if cfg.EnableTUI {
		app = ui.NewApp(tracker, cfg.UIRefreshRate)
		observers = append(observers, engine.WithObserver(app.Observe))
	}

	// The handler remembers the latest collection as its store-read fallback.
	var handler *api.Handler
	observers = append(observers, engine.WithObserver(func(res engine.Result) {
		handler.Observe(res)
	}))

	eng, adapter := newEngine(cfg, store, observers...)
	params := refreshParams(cfg)

	handler = api.NewHandler(eng, adapter, shares.NewService(store, cfg.ShareTTL, cfg.StoreTimeout), params, cfg.FeedLimit)
	health := api.NewHealthHandler(store, cfg.StoreTimeout)
	explore := api.NewExplorerHandler(newExplorer(cfg))
	server := api.NewServer(cfg.HTTPPort, api.NewRouter(handler, explore, health, prom.Handler(), hub))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	poller := engine.NewPoller(eng, params, cfg.RefreshInterval)
	go poller.Start(ctx)

	slog.Info("whalewatch_started",
		"http_port", cfg.HTTPPort,
		"store", storeKind(),
		"tui_enabled", cfg.EnableTUI,
	)

	var appDone <-chan struct{}
	if app != nil {
		appDone = app.Done()
		go func() {
			if err := app.Run(); err != nil {
				slog.Error("tui_error", "error", err)
				stop()
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown_signal_received")
	case <-appDone:
		slog.Info("tui_closed")
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	stop()
	if app != nil {
		app.Stop()
	}
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}

	slog.Info("shutdown_complete")
	return runErr
}

func storeKind() string {
	if cfg.RedisURL == "" {
		return "memory"
	}
	return "redis"
}
