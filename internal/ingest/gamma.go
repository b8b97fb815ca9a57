package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/polyinsider/whalewatch/internal/store"
)

// DefaultMarketsLimit is the number of markets requested from the catalogue.
const DefaultMarketsLimit = 20

// MarketClient reads the Gamma market catalogue.
type MarketClient struct {
	api apiClient
}

// NewMarketClient creates a new MarketClient. An empty baseURL selects the
// public Gamma API and a zero timeout selects DefaultTimeout.
func NewMarketClient(baseURL string, timeout time.Duration) *MarketClient {
	if baseURL == "" {
		baseURL = GammaAPIBaseURL
	}
	return &MarketClient{api: newAPIClient(baseURL, timeout)}
}

// MarketFilter selects markets from the catalogue.
type MarketFilter struct {
	Limit    int
	Category string
}

// GammaMarket is a catalogue entry with its condition id and order book
// summary.
type GammaMarket struct {
	store.Market
	ConditionID string
	Description string
	Active      bool
	Closed      bool
	BestBid     float64
	BestAsk     float64
}

// flexString accepts a JSON string or number.
type flexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(data)
	return nil
}

type apiMarket struct {
	ID                flexString `json:"id"`
	ConditionID       string     `json:"conditionId"`
	Question          string     `json:"question"`
	Description       string     `json:"description"`
	Slug              string     `json:"slug"`
	Image             string     `json:"image"`
	Icon              string     `json:"icon"`
	Category          string     `json:"category"`
	VolumeNum         flexFloat  `json:"volumeNum"`
	Volume24hr        flexFloat  `json:"volume24hr"`
	LiquidityNum      flexFloat  `json:"liquidityNum"`
	OutcomePrices     string     `json:"outcomePrices"`
	Outcomes          string     `json:"outcomes"`
	EndDate           string     `json:"endDate"`
	Active            bool       `json:"active"`
	Closed            bool       `json:"closed"`
	OneDayPriceChange flexFloat  `json:"oneDayPriceChange"`
	BestBid           flexFloat  `json:"bestBid"`
	BestAsk           flexFloat  `json:"bestAsk"`
}

// FetchMarkets returns open markets in catalogue order.
func (c *MarketClient) FetchMarkets(ctx context.Context, f MarketFilter) ([]GammaMarket, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultMarketsLimit
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(f.Limit))
	q.Set("active", "true")
	q.Set("closed", "false")
	if f.Category != "" {
		q.Set("category", f.Category)
	}

	markets, err := c.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	slog.Debug("markets_fetched", "count", len(markets), "limit", f.Limit, "category", f.Category)
	return markets, nil
}

// FetchMarketBySlug returns the market with slug. The bool is false when the
// catalogue has no such market.
func (c *MarketClient) FetchMarketBySlug(ctx context.Context, slug string) (GammaMarket, bool, error) {
	q := url.Values{}
	q.Set("slug", slug)

	markets, err := c.fetch(ctx, q)
	if err != nil {
		return GammaMarket{}, false, err
	}
	if len(markets) == 0 {
		return GammaMarket{}, false, nil
	}
	return markets[0], true, nil
}

func (c *MarketClient) fetch(ctx context.Context, q url.Values) ([]GammaMarket, error) {
	body, err := c.api.get(ctx, "/markets", q)
	if err != nil {
		return nil, err
	}

	var raw []apiMarket
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode markets: %w", ErrUpstreamUnavailable, err)
	}

	markets := make([]GammaMarket, 0, len(raw))
	for _, m := range raw {
		markets = append(markets, convertMarket(m))
	}
	return markets, nil
}

func convertMarket(m apiMarket) GammaMarket {
	outcomes, prices := parseOutcomes(m.Outcomes, m.OutcomePrices)
	return GammaMarket{
		Market: store.Market{
			ID:             string(m.ID),
			Question:       m.Question,
			Slug:           m.Slug,
			Image:          coalesce(m.Image, m.Icon),
			Category:       m.Category,
			Volume:         m.VolumeNum.Value,
			Volume24h:      m.Volume24hr.Value,
			Liquidity:      m.LiquidityNum.Value,
			Outcomes:       outcomes,
			Prices:         prices,
			EndDate:        m.EndDate,
			PriceChange24h: m.OneDayPriceChange.Value,
		},
		ConditionID: m.ConditionID,
		Description: m.Description,
		Active:      m.Active,
		Closed:      m.Closed,
		BestBid:     m.BestBid.Value,
		BestAsk:     m.BestAsk.Value,
	}
}

// parseOutcomes decodes the JSON-encoded outcome and price arrays Gamma
// embeds as strings, falling back to an even Yes/No market.
func parseOutcomes(rawOutcomes, rawPrices string) ([]string, []float64) {
	outcomes := []string{store.OutcomeYes, store.OutcomeNo}
	prices := []float64{0.5, 0.5}

	var strPrices []string
	var parsedOutcomes []string
	if err := json.Unmarshal([]byte(rawPrices), &strPrices); err != nil {
		return outcomes, prices
	}
	if err := json.Unmarshal([]byte(rawOutcomes), &parsedOutcomes); err != nil {
		return outcomes, prices
	}

	parsedPrices := make([]float64, 0, len(strPrices))
	for _, p := range strPrices {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return outcomes, prices
		}
		parsedPrices = append(parsedPrices, v)
	}
	return parsedOutcomes, parsedPrices
}
