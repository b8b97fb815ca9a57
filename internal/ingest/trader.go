package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/polyinsider/whalewatch/internal/store"
)

// Page sizes requested for trader and market lookups.
const (
	DefaultPositionsLimit = 50
	DefaultActivityLimit  = 50
	DefaultHoldersLimit   = 10
)

type apiPosition struct {
	OddsID       string    `json:"oddsId"`
	ConditionID  string    `json:"conditionId"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	Icon         string    `json:"icon"`
	Outcome      string    `json:"outcome"`
	CurPosition  flexFloat `json:"curPosition"`
	Size         flexFloat `json:"size"`
	InitialPrice flexFloat `json:"initialPrice"`
	AvgPrice     flexFloat `json:"avgPrice"`
	CurPrice     flexFloat `json:"curPrice"`
	CurrentValue flexFloat `json:"currentValue"`
	CashPnl      flexFloat `json:"cashPnl"`
	PercentPnl   flexFloat `json:"percentPnl"`
	Name         string    `json:"name"`
	ProfileImage string    `json:"profileImage"`
}

type apiActivity struct {
	OddsID          string    `json:"oddsId"`
	Type            string    `json:"type"`
	Timestamp       flexFloat `json:"timestamp"`
	Title           string    `json:"title"`
	Slug            string    `json:"slug"`
	Outcome         string    `json:"outcome"`
	Side            string    `json:"side"`
	Size            flexFloat `json:"size"`
	Price           flexFloat `json:"price"`
	CashAmount      flexFloat `json:"cashAmount"`
	UsdcSize        flexFloat `json:"usdcSize"`
	TransactionHash string    `json:"transactionHash"`
}

type apiHolder struct {
	ProxyWallet           string    `json:"proxyWallet"`
	Name                  string    `json:"name"`
	Pseudonym             string    `json:"pseudonym"`
	ProfileImage          string    `json:"profileImage"`
	ProfileImageOptimized string    `json:"profileImageOptimized"`
	Amount                flexFloat `json:"amount"`
	OutcomeIndex          flexFloat `json:"outcomeIndex"`
}

type apiHolderGroup struct {
	Token   string      `json:"token"`
	Holders []apiHolder `json:"holders"`
}

type apiValue struct {
	User  string    `json:"user"`
	Value flexFloat `json:"value"`
}

// FetchPositions returns up to limit open positions of user, largest current
// value first.
func (c *FeedClient) FetchPositions(ctx context.Context, user string, limit int) ([]store.Position, error) {
	if limit <= 0 {
		limit = DefaultPositionsLimit
	}

	q := url.Values{}
	q.Set("user", user)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sortBy", "CURRENT")
	q.Set("sortDirection", "DESC")

	body, err := c.api.get(ctx, "/positions", q)
	if err != nil {
		return nil, err
	}

	var raw []apiPosition
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode positions: %w", ErrUpstreamUnavailable, err)
	}

	positions := make([]store.Position, 0, len(raw))
	for i, p := range raw {
		id := p.OddsID
		if id == "" {
			id = p.ConditionID + "-" + strconv.Itoa(i)
		}
		positions = append(positions, store.Position{
			ID:           id,
			MarketID:     p.ConditionID,
			MarketTitle:  p.Title,
			MarketSlug:   p.Slug,
			MarketImage:  p.Icon,
			Outcome:      p.Outcome,
			Size:         firstSet(p.CurPosition, p.Size),
			AvgPrice:     firstSet(p.InitialPrice, p.AvgPrice),
			CurrentPrice: p.CurPrice.Value,
			Value:        p.CurrentValue.Value,
			Pnl:          p.CashPnl.Value,
			PnlPercent:   p.PercentPnl.Value,
			Name:         p.Name,
			ProfileImage: p.ProfileImage,
		})
	}

	slog.Debug("positions_fetched", "user", user, "count", len(positions))
	return positions, nil
}

// FetchActivity returns up to limit of the most recent activity entries of
// user.
func (c *FeedClient) FetchActivity(ctx context.Context, user string, limit int) ([]store.Activity, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}

	q := url.Values{}
	q.Set("user", user)
	q.Set("limit", strconv.Itoa(limit))

	body, err := c.api.get(ctx, "/activity", q)
	if err != nil {
		return nil, err
	}

	var raw []apiActivity
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode activity: %w", ErrUpstreamUnavailable, err)
	}

	activity := make([]store.Activity, 0, len(raw))
	for i, a := range raw {
		id := coalesce(a.OddsID, a.TransactionHash)
		if id == "" {
			id = "activity-" + strconv.Itoa(i)
		}
		side := a.Side
		if side == "" {
			side = store.SideBuy
		}
		typ := a.Type
		if typ == "" {
			typ = store.ActivityTrade
		}
		title := a.Title
		if title == "" {
			title = "Unknown Market"
		}
		activity = append(activity, store.Activity{
			ID:              id,
			Type:            typ,
			Timestamp:       parseTimestamp(a.Timestamp.Value),
			MarketTitle:     title,
			MarketSlug:      a.Slug,
			Outcome:         a.Outcome,
			Side:            side,
			Size:            a.Size.Value,
			Price:           a.Price.Value,
			USDAmount:       firstSet(a.CashAmount, a.UsdcSize),
			TransactionHash: a.TransactionHash,
		})
	}

	slog.Debug("activity_fetched", "user", user, "count", len(activity))
	return activity, nil
}

// FetchValue returns the total current value of user's positions. The Data
// API answers with either an object or a one-element array.
func (c *FeedClient) FetchValue(ctx context.Context, user string) (float64, error) {
	q := url.Values{}
	q.Set("user", user)

	body, err := c.api.get(ctx, "/value", q)
	if err != nil {
		return 0, err
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var rows []apiValue
		if err := json.Unmarshal(body, &rows); err != nil {
			return 0, fmt.Errorf("%w: decode value: %w", ErrUpstreamUnavailable, err)
		}
		if len(rows) == 0 {
			return 0, nil
		}
		return rows[0].Value.Value, nil
	}

	var v apiValue
	if err := json.Unmarshal(body, &v); err != nil {
		return 0, fmt.Errorf("%w: decode value: %w", ErrUpstreamUnavailable, err)
	}
	return v.Value.Value, nil
}

// FetchHolders returns the top holders of each outcome token of market,
// up to limit per token. Holders of outcome index 0 are Yes, the rest No.
func (c *FeedClient) FetchHolders(ctx context.Context, market string, limit int) ([]store.Holder, error) {
	if limit <= 0 {
		limit = DefaultHoldersLimit
	}

	q := url.Values{}
	q.Set("market", market)
	q.Set("limit", strconv.Itoa(limit))

	body, err := c.api.get(ctx, "/holders", q)
	if err != nil {
		return nil, err
	}

	var groups []apiHolderGroup
	if err := json.Unmarshal(body, &groups); err != nil {
		return nil, fmt.Errorf("%w: decode holders: %w", ErrUpstreamUnavailable, err)
	}

	var holders []store.Holder
	for _, g := range groups {
		outcome := store.OutcomeYes
		if len(g.Holders) > 0 && g.Holders[0].OutcomeIndex.Value != 0 {
			outcome = store.OutcomeNo
		}
		for _, h := range g.Holders {
			holders = append(holders, store.Holder{
				Address:      h.ProxyWallet,
				Name:         coalesce(h.Name, h.Pseudonym),
				ProfileImage: coalesce(h.ProfileImageOptimized, h.ProfileImage),
				Amount:       h.Amount.Value,
				Outcome:      outcome,
			})
		}
	}

	slog.Debug("holders_fetched", "market", market, "count", len(holders))
	return holders, nil
}

// firstSet returns the first non-zero value.
func firstSet(values ...flexFloat) float64 {
	for _, v := range values {
		if v.Set && v.Value != 0 {
			return v.Value
		}
	}
	return 0
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
