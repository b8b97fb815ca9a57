// Package leaderboard ranks traders by the whale volume in the accumulated
// collection.
package leaderboard

import (
	"math"
	"sort"

	"github.com/polyinsider/whalewatch/internal/detector"
	"github.com/polyinsider/whalewatch/internal/store"
)

// DefaultLimit is the number of traders returned.
const DefaultLimit = 50

// Build aggregates trades by wallet and returns up to limit entries ranked by
// total volume.
func Build(trades []store.Trade, limit int) []store.LeaderboardEntry {
	if limit <= 0 {
		limit = DefaultLimit
	}

	byWallet := make(map[string]*store.LeaderboardEntry)
	order := make([]string, 0)

	for _, t := range trades {
		if t.ProxyWallet == "" {
			continue
		}

		entry, ok := byWallet[t.ProxyWallet]
		if !ok {
			entry = &store.LeaderboardEntry{Address: t.ProxyWallet}
			byWallet[t.ProxyWallet] = entry
			order = append(order, t.ProxyWallet)
		}

		entry.TotalVolume += detector.Notional(t)
		entry.TradesCount++

		// Fill in identity from whichever trade carries it
		if entry.Name == "" {
			entry.Name = t.DisplayName()
		}
		if entry.ProfileImage == "" {
			entry.ProfileImage = t.Image()
		}
	}

	entries := make([]store.LeaderboardEntry, 0, len(order))
	for _, addr := range order {
		entries = append(entries, *byWallet[addr])
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalVolume > entries[j].TotalVolume
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].TotalVolume = math.Round(entries[i].TotalVolume)
	}

	return entries
}
