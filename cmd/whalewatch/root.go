package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/polyinsider/whalewatch/internal/accumulator"
	"github.com/polyinsider/whalewatch/internal/config"
	"github.com/polyinsider/whalewatch/internal/engine"
	"github.com/polyinsider/whalewatch/internal/explorer"
	"github.com/polyinsider/whalewatch/internal/ingest"
	"github.com/polyinsider/whalewatch/internal/kv"
)

const version = "1.0.0"

// tuiLogFile receives logs while the terminal UI owns stdout.
const tuiLogFile = "whalewatch.log"

var (
	configPath string
	cfg        *config.Config
	logFile    *os.File
)

var rootCMD = &cobra.Command{
	Use:   "whalewatch",
	Short: "Polymarket whale trade tracker",
	Long: `Polls the Polymarket trade feed, keeps the large buy-side trades in a
bounded collection and serves them over HTTP and websockets.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if cmd.Flags().Changed("tui") {
			cfg.EnableTUI = serveTUI
		}

		// sync prints its report on stdout
		out := os.Stdout
		if cmd.Name() == syncCMD.Name() {
			out = os.Stderr
		}
		if cmd.Name() == serveCMD.Name() && cfg.EnableTUI {
			logFile, err = os.OpenFile(tuiLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			out = logFile
		}
		slog.SetDefault(setupLogger(cfg.LogLevel, out))

		slog.Info("config_loaded",
			"version", version,
			"config_file", cfg.ConfigFile,
			"data_api_url", truncateURL(cfg.DataAPIURL),
			"gamma_api_url", truncateURL(cfg.GammaAPIURL),
			"redis_url", cfg.MaskedRedisURL(),
			"collection_key", cfg.CollectionKey,
			"min_amount_usd", cfg.MinAmountUSD,
			"max_stored_trades", cfg.MaxStoredTrades,
			"max_age", cfg.MaxAge,
			"page_size", cfg.PageSize,
			"refresh_interval", cfg.RefreshInterval,
		)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCMD.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCMD.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $"+config.FileEnvVar+")")
	rootCMD.AddCommand(serveCMD, syncCMD)
}

// openStore connects to Redis, or falls back to an in-memory store when no
// REDIS_URL is configured. An unreachable Redis is logged and the store is
// returned anyway; refresh cycles degrade until it comes back. The caller
// must Close the store.
func openStore(ctx context.Context, c *config.Config) (kv.Store, error) {
	if c.RedisURL == "" {
		slog.Warn("redis_not_configured", "fallback", "memory", "note", "collection is lost on restart")
		return kv.NewMemoryStore(0)
	}

	s, err := kv.OpenRedisStore(c.RedisURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.StoreTimeout)
	defer cancel()

	if err := s.Ping(ctx); err != nil {
		slog.Warn("redis_unreachable", "redis_url", c.MaskedRedisURL(), "error", err, "note", "starting degraded")
		return s, nil
	}
	slog.Info("redis_connected", "redis_url", c.MaskedRedisURL())
	return s, nil
}

// newEngine builds the refresh engine over store.
func newEngine(c *config.Config, store kv.Store, opts ...engine.Option) (*engine.Engine, *accumulator.Adapter) {
	feed := newFeedClient(c)
	adapter := accumulator.NewAdapter(store, c.CollectionKey, c.StoreTimeout)

	opts = append([]engine.Option{engine.WithPageSize(c.PageSize)}, opts...)
	return engine.New(feed, adapter, opts...), adapter
}

func newFeedClient(c *config.Config) *ingest.FeedClient {
	return ingest.NewFeedClient(c.DataAPIURL, c.UpstreamTimeout)
}

// newExplorer builds the on-demand trader and market lookups.
func newExplorer(c *config.Config) *explorer.Service {
	return explorer.NewService(newFeedClient(c), ingest.NewMarketClient(c.GammaAPIURL, c.UpstreamTimeout))
}

// refreshParams returns the configured threshold and retention bounds.
func refreshParams(c *config.Config) engine.Params {
	return engine.Params{
		MinAmount: c.MinAmountUSD,
		MaxAge:    c.MaxAge,
		MaxCount:  c.MaxStoredTrades,
	}
}
