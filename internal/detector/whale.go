// Package detector applies the rules that decide which trades are whale
// trades and how repeated sightings of a trade are recognised.
package detector

import (
	"math"
	"strconv"
	"strings"

	"github.com/polyinsider/whalewatch/internal/store"
)

// Notional returns the USD value of a trade. The explicit USDC size wins when
// upstream populated it with a usable value; otherwise it is derived as
// shares * price.
func Notional(t store.Trade) float64 {
	if t.UsdcSize != nil {
		if v := *t.UsdcSize; v != 0 && !math.IsNaN(v) {
			return v
		}
	}
	return t.Size * t.Price
}

// IsWhale reports whether a trade is a buy whose notional meets minAmount.
// A minimum that is not a positive finite number qualifies nothing.
func IsWhale(t store.Trade, minAmount float64) bool {
	if !ValidMinAmount(minAmount) {
		return false
	}
	if t.Side != store.SideBuy {
		return false
	}
	n := Notional(t)
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return false
	}
	return n >= minAmount
}

// ValidMinAmount reports whether minAmount can be used as a threshold.
func ValidMinAmount(minAmount float64) bool {
	return minAmount > 0 && !math.IsInf(minAmount, 1)
}

// DedupKey returns the stable identity of a trade: its transaction hash when
// present, otherwise wallet and timestamp joined by "-".
func DedupKey(t store.Trade) string {
	if hash := strings.TrimSpace(t.TransactionHash); hash != "" {
		return hash
	}
	return t.ProxyWallet + "-" + strconv.FormatInt(t.Timestamp, 10)
}

// Keyable reports whether a trade carries enough identity to be deduplicated.
func Keyable(t store.Trade) bool {
	return strings.TrimSpace(t.TransactionHash) != "" || t.ProxyWallet != ""
}

// Card builds the feed card for a whale trade.
func Card(t store.Trade) store.Card {
	return store.NewCard(t, DedupKey(t), Notional(t))
}
