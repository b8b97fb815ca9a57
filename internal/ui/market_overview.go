package ui

import (
	"fmt"
	"sort"

	"github.com/rivo/tview"

	"github.com/polyinsider/whalewatch/internal/detector"
	"github.com/polyinsider/whalewatch/internal/store"
)

var marketOverviewHeaders = []string{"Market", "Whales", "Volume", "Yes/No"}

// marketActivity aggregates whale trades on one market.
type marketActivity struct {
	title  string
	whales int
	volume float64
	yes    int
	no     int
}

// MarketOverviewView displays the markets attracting the most whale volume.
type MarketOverviewView struct {
	table *tview.Table
}

// NewMarketOverviewView creates a new market overview view.
func NewMarketOverviewView() *MarketOverviewView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Whale Markets ").SetBorder(true)

	v := &MarketOverviewView{table: table}
	v.setHeader()
	return v
}

// Widget returns the tview primitive.
func (v *MarketOverviewView) Widget() tview.Primitive {
	return v.table
}

func (v *MarketOverviewView) setHeader() {
	for col, header := range marketOverviewHeaders {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false).
			SetExpansion(1)
		v.table.SetCell(0, col, cell)
	}
}

// Update refreshes the view from the current whale trades.
func (v *MarketOverviewView) Update(trades []store.Trade) {
	v.table.Clear()
	v.setHeader()

	markets := aggregateMarkets(trades)

	// Show top 10 markets
	limit := 10
	if len(markets) < limit {
		limit = len(markets)
	}

	for i, market := range markets[:limit] {
		row := i + 1

		cells := []string{
			truncateText(market.title, 30),
			fmt.Sprintf("%d", market.whales),
			formatUSD(market.volume),
			fmt.Sprintf("%d/%d", market.yes, market.no),
		}

		for col, text := range cells {
			cell := tview.NewTableCell(text).
				SetAlign(tview.AlignLeft).
				SetExpansion(1)
			v.table.SetCell(row, col, cell)
		}
	}

	v.table.SetTitle(fmt.Sprintf(" Whale Markets (%d) ", len(markets)))
}

// aggregateMarkets groups trades by market, largest volume first.
func aggregateMarkets(trades []store.Trade) []*marketActivity {
	byMarket := make(map[string]*marketActivity)
	for _, t := range trades {
		key := t.ConditionID
		if key == "" {
			key = t.Title
		}
		m, ok := byMarket[key]
		if !ok {
			m = &marketActivity{title: t.Title}
			byMarket[key] = m
		}
		m.whales++
		m.volume += detector.Notional(t)
		if store.NormalizeOutcome(t.Outcome) == store.OutcomeNo {
			m.no++
		} else {
			m.yes++
		}
	}

	markets := make([]*marketActivity, 0, len(byMarket))
	for _, m := range byMarket {
		markets = append(markets, m)
	}
	sort.Slice(markets, func(i, j int) bool {
		if markets[i].volume != markets[j].volume {
			return markets[i].volume > markets[j].volume
		}
		return markets[i].title < markets[j].title
	})
	return markets
}
