// Package explorer looks up trader profiles, market holders and the market
// catalogue on demand. Nothing it reads is persisted.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/polyinsider/whalewatch/internal/ingest"
	"github.com/polyinsider/whalewatch/internal/store"
)

const (
	// MaxHolders is the number of holders returned for a market
	MaxHolders = 20
	// RecentActivity is the number of activity entries on a profile
	RecentActivity = 20
	// MaxMarkets caps the markets list
	MaxMarkets = 100
	// DefaultCategory is shown for markets without one
	DefaultCategory = "General"
)

// Market list sort keys.
const (
	SortVolume24h = "volume24hr"
	SortVolume    = "volume"
	SortLiquidity = "liquidity"
)

var (
	// ErrInvalidAddress is returned for a wallet that is not a 0x address.
	ErrInvalidAddress = errors.New("invalid wallet address")
	// ErrInvalidMarket is returned for an empty market id or slug.
	ErrInvalidMarket = errors.New("invalid market")
	// ErrInvalidSort is returned for an unknown market sort key.
	ErrInvalidSort = errors.New("invalid sort key")
	// ErrMarketNotFound is returned when the catalogue has no such market.
	ErrMarketNotFound = errors.New("market not found")
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// TraderSource reads trader and holder data from the Data API.
type TraderSource interface {
	FetchPositions(ctx context.Context, user string, limit int) ([]store.Position, error)
	FetchActivity(ctx context.Context, user string, limit int) ([]store.Activity, error)
	FetchValue(ctx context.Context, user string) (float64, error)
	FetchHolders(ctx context.Context, market string, limit int) ([]store.Holder, error)
}

// MarketSource reads the market catalogue.
type MarketSource interface {
	FetchMarkets(ctx context.Context, f ingest.MarketFilter) ([]ingest.GammaMarket, error)
	FetchMarketBySlug(ctx context.Context, slug string) (ingest.GammaMarket, bool, error)
}

// MarketQuery selects and orders the markets list.
type MarketQuery struct {
	Limit    int
	SortBy   string
	Category string
}

// Service answers the explorer lookups.
type Service struct {
	traders TraderSource
	markets MarketSource
}

// NewService creates a Service.
func NewService(traders TraderSource, markets MarketSource) *Service {
	return &Service{traders: traders, markets: markets}
}

// ValidAddress reports whether s is a 0x-prefixed 20-byte hex address.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// WhaleProfile builds the profile of the trader at address. The three lookups
// run concurrently and each one that fails contributes an empty section.
func (s *Service) WhaleProfile(ctx context.Context, address string) (store.WhaleProfile, error) {
	if !ValidAddress(address) {
		return store.WhaleProfile{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	var (
		positions []store.Position
		activity  []store.Activity
		value     float64
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		if positions, err = s.traders.FetchPositions(ctx, address, ingest.DefaultPositionsLimit); err != nil {
			slog.Warn("whale_positions_failed", "address", address, "error", err)
			positions = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if activity, err = s.traders.FetchActivity(ctx, address, ingest.DefaultActivityLimit); err != nil {
			slog.Warn("whale_activity_failed", "address", address, "error", err)
			activity = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if value, err = s.traders.FetchValue(ctx, address); err != nil {
			slog.Warn("whale_value_failed", "address", address, "error", err)
			value = 0
		}
		return nil
	})
	_ = g.Wait()

	profile := store.WhaleProfile{
		Address:        address,
		TotalValue:     value,
		Positions:      positions,
		RecentActivity: activity,
		Stats:          summarize(positions, activity),
	}
	if len(positions) > 0 && positions[0].Name != "" {
		profile.Name = positions[0].Name
		profile.ProfileImage = positions[0].ProfileImage
	}
	if profile.Positions == nil {
		profile.Positions = []store.Position{}
	}
	if len(profile.RecentActivity) > RecentActivity {
		profile.RecentActivity = profile.RecentActivity[:RecentActivity]
	}
	if profile.RecentActivity == nil {
		profile.RecentActivity = []store.Activity{}
	}
	return profile, nil
}

// summarize computes volume and average bet over TRADE activity and sums the
// cash P&L of open positions.
func summarize(positions []store.Position, activity []store.Activity) store.WhaleStats {
	var stats store.WhaleStats
	var volume float64
	for _, a := range activity {
		if a.Type != store.ActivityTrade {
			continue
		}
		stats.TotalTrades++
		volume += a.USDAmount
	}
	if stats.TotalTrades > 0 {
		stats.AvgBetSize = math.Round(volume / float64(stats.TotalTrades))
	}
	stats.TotalVolume = math.Round(volume)

	var pnl float64
	for _, p := range positions {
		pnl += p.Pnl
	}
	stats.Pnl = math.Round(pnl*100) / 100
	return stats
}

// Holders returns the largest holders of market across both outcomes.
func (s *Service) Holders(ctx context.Context, market string) ([]store.Holder, error) {
	market = strings.TrimSpace(market)
	if market == "" {
		return nil, ErrInvalidMarket
	}

	holders, err := s.traders.FetchHolders(ctx, market, ingest.DefaultHoldersLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch holders: %w", err)
	}
	return topHolders(holders), nil
}

func topHolders(holders []store.Holder) []store.Holder {
	sort.SliceStable(holders, func(i, j int) bool {
		return holders[i].Amount > holders[j].Amount
	})
	if len(holders) > MaxHolders {
		holders = holders[:MaxHolders]
	}
	if holders == nil {
		holders = []store.Holder{}
	}
	return holders
}

// Markets lists open markets with volume, ordered by q.SortBy descending.
func (s *Service) Markets(ctx context.Context, q MarketQuery) ([]store.Market, error) {
	if q.SortBy == "" {
		q.SortBy = SortVolume24h
	}
	key, ok := sortKeys[q.SortBy]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSort, q.SortBy)
	}
	if q.Limit <= 0 {
		q.Limit = ingest.DefaultMarketsLimit
	}
	if q.Limit > MaxMarkets {
		q.Limit = MaxMarkets
	}

	fetched, err := s.markets.FetchMarkets(ctx, ingest.MarketFilter{Limit: q.Limit, Category: q.Category})
	if err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}

	markets := make([]store.Market, 0, len(fetched))
	for _, m := range fetched {
		if m.Volume > 0 {
			markets = append(markets, m.Market)
		}
	}
	sort.SliceStable(markets, func(i, j int) bool {
		return key(markets[i]) > key(markets[j])
	})
	if len(markets) > q.Limit {
		markets = markets[:q.Limit]
	}
	return markets, nil
}

var sortKeys = map[string]func(store.Market) float64{
	SortVolume24h: func(m store.Market) float64 { return m.Volume24h },
	SortVolume:    func(m store.Market) float64 { return m.Volume },
	SortLiquidity: func(m store.Market) float64 { return m.Liquidity },
}

// Market returns the market with slug and its top holders. A failed holder
// lookup leaves the holder list empty.
func (s *Service) Market(ctx context.Context, slug string) (store.MarketDetail, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return store.MarketDetail{}, ErrInvalidMarket
	}

	m, found, err := s.markets.FetchMarketBySlug(ctx, slug)
	if err != nil {
		return store.MarketDetail{}, fmt.Errorf("fetch market: %w", err)
	}
	if !found {
		return store.MarketDetail{}, fmt.Errorf("%w: %s", ErrMarketNotFound, slug)
	}

	detail := store.MarketDetail{
		Market:      m.Market,
		ConditionID: m.ConditionID,
		Description: m.Description,
		Active:      m.Active,
		Closed:      m.Closed,
		BestBid:     m.BestBid,
		BestAsk:     m.BestAsk,
		Holders:     []store.Holder{},
	}
	if detail.Category == "" {
		detail.Category = DefaultCategory
	}

	if m.ConditionID != "" {
		holders, err := s.traders.FetchHolders(ctx, m.ConditionID, ingest.DefaultHoldersLimit)
		if err != nil {
			slog.Warn("market_holders_failed", "slug", slug, "error", err)
		} else {
			detail.Holders = topHolders(holders)
		}
	}
	return detail, nil
}
