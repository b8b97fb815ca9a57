package store

// Position is an open position held by a trader.
type Position struct {
	ID           string  `json:"id"`
	MarketID     string  `json:"marketId"`
	MarketTitle  string  `json:"marketTitle"`
	MarketSlug   string  `json:"marketSlug"`
	MarketImage  string  `json:"marketImage"`
	Outcome      string  `json:"outcome"`
	Size         float64 `json:"size"`
	AvgPrice     float64 `json:"avgPrice"`
	CurrentPrice float64 `json:"currentPrice"`
	Value        float64 `json:"value"`
	Pnl          float64 `json:"pnl"`
	PnlPercent   float64 `json:"pnlPercent"`

	// Name and ProfileImage describe the holder, not the market
	Name         string `json:"-"`
	ProfileImage string `json:"-"`
}

// ActivityTrade is the Data API activity type of a trade.
const ActivityTrade = "TRADE"

// Activity is one entry of a trader's on-chain activity.
type Activity struct {
	ID              string  `json:"id"`
	Type            string  `json:"type"`
	Timestamp       int64   `json:"timestamp"`
	MarketTitle     string  `json:"marketTitle"`
	MarketSlug      string  `json:"marketSlug"`
	Outcome         string  `json:"outcome"`
	Side            string  `json:"side"`
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	USDAmount       float64 `json:"usdAmount"`
	TransactionHash string  `json:"transactionHash"`
}

// WhaleStats summarises a trader's recent activity.
type WhaleStats struct {
	TotalTrades int     `json:"totalTrades"`
	// Win rate needs resolution data and is always reported as zero.
	WinRate     float64 `json:"winRate"`
	AvgBetSize  float64 `json:"avgBetSize"`
	TotalVolume float64 `json:"totalVolume"`
	Pnl         float64 `json:"pnl"`
}

// WhaleProfile is the trader detail page.
type WhaleProfile struct {
	Address        string     `json:"address"`
	Name           string     `json:"name"`
	ProfileImage   string     `json:"profileImage"`
	TotalValue     float64    `json:"totalValue"`
	Positions      []Position `json:"positions"`
	RecentActivity []Activity `json:"recentActivity"`
	Stats          WhaleStats `json:"stats"`
}

// Holder is a top holder of one side of a market.
type Holder struct {
	Address      string  `json:"address"`
	Name         string  `json:"name"`
	ProfileImage string  `json:"profileImage"`
	Amount       float64 `json:"amount"`
	Outcome      string  `json:"outcome"`
}

// Market is a listed prediction market.
type Market struct {
	ID             string    `json:"id"`
	Question       string    `json:"question"`
	Slug           string    `json:"slug"`
	Image          string    `json:"image"`
	Category       string    `json:"category"`
	Volume         float64   `json:"volume"`
	Volume24h      float64   `json:"volume24h"`
	Liquidity      float64   `json:"liquidity"`
	Outcomes       []string  `json:"outcomes"`
	Prices         []float64 `json:"prices"`
	EndDate        string    `json:"endDate"`
	PriceChange24h float64   `json:"priceChange24h"`
}

// MarketDetail is a market with its order book summary and top holders.
type MarketDetail struct {
	Market
	ConditionID string   `json:"conditionId"`
	Description string   `json:"description"`
	Active      bool     `json:"active"`
	Closed      bool     `json:"closed"`
	BestBid     float64  `json:"bestBid"`
	BestAsk     float64  `json:"bestAsk"`
	Holders     []Holder `json:"holders"`
}
