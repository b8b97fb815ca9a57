// Package store provides the trade data models shared across the pipeline.
package store

import (
	"math"
	"strings"
)

// Trade sides as reported by the Data API.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Trade is a single trade record from the Polymarket Data API.
//
// The accumulated whale collection persists these records verbatim, so the
// JSON field names follow the upstream payload.
type Trade struct {
	// ProxyWallet is the trader's proxy wallet address
	ProxyWallet string `json:"proxyWallet"`

	// Side is BUY or SELL
	Side string `json:"side"`

	// Asset is the outcome token ID
	Asset string `json:"asset"`

	// ConditionID is the market condition ID
	ConditionID string `json:"conditionId"`

	// Size is the number of shares traded
	Size float64 `json:"size"`

	// UsdcSize is the USDC notional, not always populated upstream
	UsdcSize *float64 `json:"usdcSize,omitempty"`

	// Price is the price per share (0-1 range for prediction markets)
	Price float64 `json:"price"`

	// Timestamp is the unix time of the trade in seconds
	Timestamp int64 `json:"timestamp"`

	Title        string `json:"title"`
	Slug         string `json:"slug"`
	Icon         string `json:"icon"`
	EventSlug    string `json:"eventSlug"`
	Outcome      string `json:"outcome"`
	OutcomeIndex int    `json:"outcomeIndex"`

	Name                  string `json:"name"`
	Pseudonym             string `json:"pseudonym"`
	Bio                   string `json:"bio"`
	ProfileImage          string `json:"profileImage"`
	ProfileImageOptimized string `json:"profileImageOptimized"`

	// TransactionHash is the on-chain transaction hash (may be empty)
	TransactionHash string `json:"transactionHash"`
}

// DisplayName returns the trader name, falling back to the pseudonym.
func (t Trade) DisplayName() string {
	return coalesce(t.Name, t.Pseudonym)
}

// Image returns the optimized profile image, falling back to the raw one.
func (t Trade) Image() string {
	return coalesce(t.ProfileImageOptimized, t.ProfileImage)
}

// Card is the presentation form of a whale trade served to the frontend.
type Card struct {
	ID                 string  `json:"id"`
	Question           string  `json:"question"`
	BetAmount          float64 `json:"betAmount"`
	Outcome            string  `json:"outcome"`
	PotentialPayout    float64 `json:"potentialPayout"`
	TraderAddress      string  `json:"traderAddress"`
	Timestamp          int64   `json:"timestamp"`
	MarketID           string  `json:"marketId"`
	TraderName         string  `json:"traderName,omitempty"`
	TraderProfileImage string  `json:"traderProfileImage,omitempty"`
	TraderBio          string  `json:"traderBio,omitempty"`
	EventImage         string  `json:"eventImage,omitempty"`
	MarketTitle        string  `json:"marketTitle,omitempty"`
	MarketSlug         string  `json:"marketSlug,omitempty"`
	EventSlug          string  `json:"eventSlug,omitempty"`
}

// Normalised outcomes shown on cards.
const (
	OutcomeYes = "Yes"
	OutcomeNo  = "No"
)

// NewCard builds a feed card from a trade. id is the trade's deduplication
// key and betAmount its computed notional; both are supplied by the caller so
// this package stays free of the detector rules.
//
// Each winning share pays out $1, so the potential payout is the share count.
func NewCard(t Trade, id string, betAmount float64) Card {
	return Card{
		ID:                 id,
		Question:           t.Title,
		BetAmount:          betAmount,
		Outcome:            NormalizeOutcome(t.Outcome),
		PotentialPayout:    math.Round(t.Size*100) / 100,
		TraderAddress:      t.ProxyWallet,
		Timestamp:          t.Timestamp,
		MarketID:           t.ConditionID,
		TraderName:         t.DisplayName(),
		TraderProfileImage: t.Image(),
		TraderBio:          t.Bio,
		EventImage:         t.Icon,
		MarketTitle:        t.Title,
		MarketSlug:         t.Slug,
		EventSlug:          t.EventSlug,
	}
}

// NormalizeOutcome maps an upstream outcome label onto Yes or No.
// Labels such as "Down" or anything containing "no" read as No.
func NormalizeOutcome(outcome string) string {
	o := strings.ToLower(outcome)
	if o == "down" || strings.Contains(o, "no") {
		return OutcomeNo
	}
	return OutcomeYes
}

// LeaderboardEntry aggregates a trader's whale activity.
type LeaderboardEntry struct {
	Rank         int     `json:"rank"`
	Address      string  `json:"address"`
	Name         string  `json:"name,omitempty"`
	ProfileImage string  `json:"profileImage,omitempty"`
	TotalVolume  float64 `json:"totalVolume"`
	TradesCount  int     `json:"tradesCount"`
	// Realized P&L needs resolution data and is always reported as zero.
	TotalPnl float64 `json:"totalPnl"`
	WinRate  float64 `json:"winRate"`
}

// coalesce returns the first non-empty string.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
