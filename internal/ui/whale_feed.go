package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/polyinsider/whalewatch/internal/detector"
	"github.com/polyinsider/whalewatch/internal/store"
)

var whaleFeedHeaders = []string{"Time", "Amount", "Outcome", "Payout", "Market", "Trader"}

// WhaleFeedView displays the retained whale trades, largest first.
type WhaleFeedView struct {
	table   *tview.Table
	trades  []store.Trade
	maxRows int
}

// NewWhaleFeedView creates a new whale feed view.
func NewWhaleFeedView() *WhaleFeedView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Whale Trades ").SetBorder(true)

	v := &WhaleFeedView{
		table:   table,
		maxRows: 100,
	}
	v.setHeader()
	return v
}

// Widget returns the tview primitive.
func (v *WhaleFeedView) Widget() tview.Primitive {
	return v.table
}

// Update replaces the displayed trades.
func (v *WhaleFeedView) Update(trades []store.Trade) {
	if len(trades) > v.maxRows {
		trades = trades[:v.maxRows]
	}
	v.trades = trades
	v.updateTable()
}

// Refresh redraws the table.
func (v *WhaleFeedView) Refresh() {
	v.updateTable()
}

func (v *WhaleFeedView) setHeader() {
	for col, header := range whaleFeedHeaders {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false)
		v.table.SetCell(0, col, cell)
	}
}

// updateTable updates the table with current trades.
func (v *WhaleFeedView) updateTable() {
	v.table.Clear()
	v.setHeader()

	for i, trade := range v.trades {
		row := i + 1
		card := detector.Card(trade)

		trader := card.TraderName
		if trader == "" {
			trader = truncateAddress(card.TraderAddress)
		}

		cells := []string{
			time.Unix(card.Timestamp, 0).Format("15:04:05"),
			formatUSD(card.BetAmount),
			card.Outcome,
			formatUSD(card.PotentialPayout),
			truncateText(card.Question, 40),
			trader,
		}

		for col, text := range cells {
			cell := tview.NewTableCell(text).
				SetAlign(tview.AlignLeft)
			v.table.SetCell(row, col, cell)
		}
	}

	v.table.SetTitle(fmt.Sprintf(" Whale Trades (%d) ", len(v.trades)))
}
