package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyinsider/whalewatch/internal/store"
)

func TestBuild(t *testing.T) {
	trades := []store.Trade{
		{ProxyWallet: "0xA", Size: 1000, Price: 0.5},
		{ProxyWallet: "0xB", Size: 10000, Price: 0.5, Pseudonym: "Bee", ProfileImage: "b.png"},
		{ProxyWallet: "0xA", Size: 3000, Price: 0.5, Name: "Alice", ProfileImageOptimized: "a-small.png"},
		{ProxyWallet: "", Size: 1e6, Price: 1},
	}

	entries := Build(trades, 0)
	require.Len(t, entries, 2)

	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "0xB", entries[0].Address)
	assert.Equal(t, 5000.0, entries[0].TotalVolume)
	assert.Equal(t, "Bee", entries[0].Name)
	assert.Equal(t, "b.png", entries[0].ProfileImage)

	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, "0xA", entries[1].Address)
	assert.Equal(t, 2000.0, entries[1].TotalVolume)
	assert.Equal(t, 2, entries[1].TradesCount)
	assert.Equal(t, "Alice", entries[1].Name, "name is taken from the first trade that has one")
	assert.Equal(t, "a-small.png", entries[1].ProfileImage)

	assert.Zero(t, entries[0].TotalPnl)
	assert.Zero(t, entries[0].WinRate)
}

func TestBuild_Limit(t *testing.T) {
	var trades []store.Trade
	for _, addr := range []string{"0x1", "0x2", "0x3"} {
		trades = append(trades, store.Trade{ProxyWallet: addr, Size: 10, Price: 0.5})
	}

	entries := Build(trades, 2)
	assert.Len(t, entries, 2)
	assert.Equal(t, 2, entries[1].Rank)
}

func TestBuild_Empty(t *testing.T) {
	assert.Empty(t, Build(nil, 10))
}
