package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polyinsider/whalewatch/internal/leaderboard"
	"github.com/polyinsider/whalewatch/internal/store"
)

var topTradersHeaders = []string{"#", "Trader", "Trades", "Volume"}

// TopTradersView ranks traders in the collection by whale volume.
type TopTradersView struct {
	table *tview.Table
	limit int
}

// NewTopTradersView creates a new top traders view.
func NewTopTradersView() *TopTradersView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Top Traders ").SetBorder(true)

	v := &TopTradersView{table: table, limit: 10}
	v.setHeader()
	return v
}

// Widget returns the tview primitive.
func (v *TopTradersView) Widget() tview.Primitive {
	return v.table
}

func (v *TopTradersView) setHeader() {
	for col, header := range topTradersHeaders {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false)
		v.table.SetCell(0, col, cell)
	}
}

// Update refreshes the ranking from the current whale trades.
func (v *TopTradersView) Update(trades []store.Trade) {
	v.table.Clear()
	v.setHeader()

	entries := leaderboard.Build(trades, v.limit)
	if len(entries) == 0 {
		cell := tview.NewTableCell("No data yet...").
			SetAlign(tview.AlignCenter).
			SetExpansion(1)
		v.table.SetCell(1, 0, cell)
		return
	}

	for i, entry := range entries {
		row := i + 1

		name := entry.Name
		if name == "" {
			name = truncateAddress(entry.Address)
		}

		v.table.SetCell(row, 0, tview.NewTableCell(fmt.Sprintf("%d", entry.Rank)).
			SetTextColor(tcell.ColorYellow))
		v.table.SetCell(row, 1, tview.NewTableCell(truncateText(name, 20)).
			SetAlign(tview.AlignLeft))
		v.table.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("%d", entry.TradesCount)).
			SetAlign(tview.AlignRight))
		v.table.SetCell(row, 3, tview.NewTableCell(formatUSD(entry.TotalVolume)).
			SetAlign(tview.AlignRight))
	}
}
