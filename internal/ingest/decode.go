package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/polyinsider/whalewatch/internal/store"
)

// flexFloat accepts a JSON number, a numeric string or null.
type flexFloat struct {
	Value float64
	Set   bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = flexFloat{}
		return nil
	}

	s := string(data)
	if data[0] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("invalid numeric string %s: %w", s, err)
		}
		s = strings.TrimSpace(unquoted)
		if s == "" {
			*f = flexFloat{}
			return nil
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", s, err)
	}
	*f = flexFloat{Value: v, Set: true}
	return nil
}

// apiTrade is the wire form of a Data API trade.
type apiTrade struct {
	ProxyWallet           string    `json:"proxyWallet"`
	Side                  string    `json:"side"`
	Asset                 string    `json:"asset"`
	ConditionID           string    `json:"conditionId"`
	Size                  flexFloat `json:"size"`
	UsdcSize              flexFloat `json:"usdcSize"`
	Price                 flexFloat `json:"price"`
	Timestamp             flexFloat `json:"timestamp"`
	Title                 string    `json:"title"`
	Slug                  string    `json:"slug"`
	Icon                  string    `json:"icon"`
	EventSlug             string    `json:"eventSlug"`
	Outcome               string    `json:"outcome"`
	OutcomeIndex          flexFloat `json:"outcomeIndex"`
	Name                  string    `json:"name"`
	Pseudonym             string    `json:"pseudonym"`
	Bio                   string    `json:"bio"`
	ProfileImage          string    `json:"profileImage"`
	ProfileImageOptimized string    `json:"profileImageOptimized"`
	TransactionHash       string    `json:"transactionHash"`
}

// DecodeTrades parses a Data API /trades response body. The body must be a
// JSON array; individual records that fail to decode are skipped.
func DecodeTrades(body []byte) ([]store.Trade, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}

	trades := make([]store.Trade, 0, len(raw))
	skipped := 0
	for _, msg := range raw {
		var at apiTrade
		if err := json.Unmarshal(msg, &at); err != nil {
			skipped++
			slog.Debug("trade_decode_skipped", "error", err)
			continue
		}
		trades = append(trades, convertTrade(at))
	}

	if skipped > 0 {
		slog.Warn("trades_skipped", "count", skipped, "decoded", len(trades))
	}

	return trades, nil
}

// convertTrade converts the wire form to store.Trade.
func convertTrade(at apiTrade) store.Trade {
	trade := store.Trade{
		ProxyWallet:           at.ProxyWallet,
		Side:                  strings.ToUpper(strings.TrimSpace(at.Side)),
		Asset:                 at.Asset,
		ConditionID:           at.ConditionID,
		Size:                  at.Size.Value,
		Price:                 at.Price.Value,
		Timestamp:             parseTimestamp(at.Timestamp.Value),
		Title:                 at.Title,
		Slug:                  at.Slug,
		Icon:                  at.Icon,
		EventSlug:             at.EventSlug,
		Outcome:               at.Outcome,
		OutcomeIndex:          int(at.OutcomeIndex.Value),
		Name:                  at.Name,
		Pseudonym:             at.Pseudonym,
		Bio:                   at.Bio,
		ProfileImage:          at.ProfileImage,
		ProfileImageOptimized: at.ProfileImageOptimized,
		TransactionHash:       at.TransactionHash,
	}

	if at.UsdcSize.Set {
		v := at.UsdcSize.Value
		trade.UsdcSize = &v
	}

	return trade
}

// parseTimestamp normalises a unix timestamp to seconds, accepting
// milliseconds as well.
func parseTimestamp(ts float64) int64 {
	if ts > 1e12 {
		return int64(ts / 1000)
	}
	return int64(ts)
}
