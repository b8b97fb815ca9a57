package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/polyinsider/whalewatch/internal/config"
	"github.com/polyinsider/whalewatch/internal/kv"
)

// errSyncNeedsRedis is returned by sync when there is nowhere durable to
// merge into.
var errSyncNeedsRedis = errors.New("sync requires REDIS_URL: an in-memory collection is discarded on exit")

type syncReport struct {
	OK        bool  `json:"ok"`
	Persisted bool  `json:"persisted"`
	New       int   `json:"new,omitempty"`
	Total     int   `json:"total,omitempty"`
	Ms        int64 `json:"ms,omitempty"`
}

var syncCMD = &cobra.Command{
	Use:   "sync",
	Short: "Run a single refresh cycle",
	Long: `Fetch the latest trades once, merge the whales into the stored
collection and print the cycle stats. Requires REDIS_URL. Exits non-zero on
total failure.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context(), cfg, os.Stdout)
	},
}

// openSyncStore connects to Redis and fails when it is unset or unreachable.
func openSyncStore(ctx context.Context, c *config.Config) (kv.Store, error) {
	if c.RedisURL == "" {
		return nil, errSyncNeedsRedis
	}

	ctx, cancel := context.WithTimeout(ctx, c.StoreTimeout)
	defer cancel()

	s, err := kv.NewRedisStore(ctx, c.RedisURL)
	if err != nil {
		return nil, err
	}
	slog.Info("redis_connected", "redis_url", c.MaskedRedisURL())
	return s, nil
}

func runSync(ctx context.Context, c *config.Config, out io.Writer) error {
	store, err := openSyncStore(ctx, c)
	if err != nil {
		return err
	}
	defer store.Close()

	eng, _ := newEngine(c, store)

	res, err := eng.Refresh(ctx, refreshParams(c))
	report := syncReport{OK: err == nil}
	if err == nil {
		report.Persisted = res.Stats.Persisted
		report.New = res.Stats.NewCount
		report.Total = res.Stats.TotalCount
		report.Ms = res.Stats.DurationMs()
		if res.LoadErr != nil || res.SaveErr != nil {
			slog.Warn("sync_not_persisted", "load_error", res.LoadErr, "save_error", res.SaveErr)
		}
	}

	if encErr := json.NewEncoder(out).Encode(report); encErr != nil {
		return fmt.Errorf("write report: %w", encErr)
	}
	return err
}
