package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyinsider/whalewatch/internal/explorer"
	"github.com/polyinsider/whalewatch/internal/ingest"
	"github.com/polyinsider/whalewatch/internal/store"
)

const testWallet = "0x2222222222222222222222222222222222222222"

// newExplorerRouter serves a Data API and a Gamma API from one httptest
// server and routes the explorer endpoints over them.
func newExplorerRouter(t *testing.T, routes map[string]string) http.Handler {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path+"?"+r.URL.Query().Get("slug")]
		if !ok {
			body, ok = routes[r.URL.Path]
		}
		if !ok {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(upstream.Close)

	svc := explorer.NewService(
		ingest.NewFeedClient(upstream.URL, time.Second),
		ingest.NewMarketClient(upstream.URL, time.Second),
	)
	f := newFixture(t)
	return NewRouter(f.handler, NewExplorerHandler(svc), NewHealthHandler(f.kv, time.Second), nil, nil)
}

func serve(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec
}

func TestGetWhale(t *testing.T) {
	router := newExplorerRouter(t, map[string]string{
		"/positions": `[{"conditionId":"0xc1","title":"Rain?","curPosition":100,"cashPnl":12.5,"name":"Whale","profileImage":"w.png"}]`,
		"/activity":  `[{"type":"TRADE","usdcSize":5000,"transactionHash":"0xt1"},{"type":"TRADE","cashAmount":3000}]`,
		"/value":     `[{"user":"x","value":777}]`,
	})

	rec := serve(t, router, "/api/whale/"+testWallet)
	require.Equal(t, http.StatusOK, rec.Code)

	profile := decode[store.WhaleProfile](t, rec)
	assert.Equal(t, testWallet, profile.Address)
	assert.Equal(t, "Whale", profile.Name)
	assert.Equal(t, 777.0, profile.TotalValue)
	require.Len(t, profile.Positions, 1)
	assert.Equal(t, "0xc1-0", profile.Positions[0].ID)
	assert.Equal(t, 2, profile.Stats.TotalTrades)
	assert.Equal(t, 8000.0, profile.Stats.TotalVolume)
	assert.Equal(t, 4000.0, profile.Stats.AvgBetSize)
	assert.Equal(t, 12.5, profile.Stats.Pnl)
}

func TestGetWhale_UpstreamDown(t *testing.T) {
	router := newExplorerRouter(t, nil)

	rec := serve(t, router, "/api/whale/"+testWallet)
	require.Equal(t, http.StatusOK, rec.Code, "a profile degrades to empty sections")
	assert.JSONEq(t, fmt.Sprintf(`{
		"address": %q, "name": "", "profileImage": "", "totalValue": 0,
		"positions": [], "recentActivity": [],
		"stats": {"totalTrades": 0, "winRate": 0, "avgBetSize": 0, "totalVolume": 0, "pnl": 0}
	}`, testWallet), rec.Body.String())
}

func TestGetWhale_InvalidAddress(t *testing.T) {
	router := newExplorerRouter(t, nil)

	rec := serve(t, router, "/api/whale/not-a-wallet")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetHolders(t *testing.T) {
	router := newExplorerRouter(t, map[string]string{
		"/holders": `[
			{"holders":[{"proxyWallet":"0xa","name":"A","amount":100,"outcomeIndex":0}]},
			{"holders":[{"proxyWallet":"0xb","pseudonym":"B","amount":250,"outcomeIndex":1}]}
		]`,
	})

	rec := serve(t, router, "/api/holders/0xcond")
	require.Equal(t, http.StatusOK, rec.Code)

	holders := decode[[]store.Holder](t, rec)
	require.Len(t, holders, 2)
	assert.Equal(t, store.Holder{Address: "0xb", Name: "B", Amount: 250, Outcome: store.OutcomeNo}, holders[0])
	assert.Equal(t, store.OutcomeYes, holders[1].Outcome)
}

func TestGetHolders_UpstreamDown(t *testing.T) {
	router := newExplorerRouter(t, nil)

	rec := serve(t, router, "/api/holders/0xcond")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch holders"}`, rec.Body.String())
}

func TestGetMarkets(t *testing.T) {
	router := newExplorerRouter(t, map[string]string{
		"/markets": `[
			{"id":"1","slug":"low","volumeNum":10,"volume24hr":1,"liquidityNum":900},
			{"id":"2","slug":"high","volumeNum":20,"volume24hr":5,"liquidityNum":100},
			{"id":"3","slug":"idle","volumeNum":0}
		]`,
	})

	rec := serve(t, router, "/api/markets")
	require.Equal(t, http.StatusOK, rec.Code)
	markets := decode[[]store.Market](t, rec)
	require.Len(t, markets, 2)
	assert.Equal(t, "high", markets[0].Slug)

	rec = serve(t, router, "/api/markets?sortBy=liquidity&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	markets = decode[[]store.Market](t, rec)
	require.Len(t, markets, 1)
	assert.Equal(t, "low", markets[0].Slug)

	assert.Equal(t, http.StatusBadRequest, serve(t, router, "/api/markets?sortBy=name").Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, router, "/api/markets?limit=abc").Code)
}

func TestGetMarket(t *testing.T) {
	router := newExplorerRouter(t, map[string]string{
		"/markets?rain": `[{"id":"9","conditionId":"0xcond","question":"Will it rain?","slug":"rain","volumeNum":50,"bestBid":0.4}]`,
		"/markets":      `[]`,
		"/holders":      `[{"holders":[{"proxyWallet":"0xa","amount":10,"outcomeIndex":0}]}]`,
	})

	rec := serve(t, router, "/api/market/rain")
	require.Equal(t, http.StatusOK, rec.Code)

	detail := decode[store.MarketDetail](t, rec)
	assert.Equal(t, "9", detail.ID)
	assert.Equal(t, "0xcond", detail.ConditionID)
	assert.Equal(t, explorer.DefaultCategory, detail.Category)
	assert.Equal(t, 0.4, detail.BestBid)
	require.Len(t, detail.Holders, 1)
	assert.Equal(t, "0xa", detail.Holders[0].Address)

	rec = serve(t, router, "/api/market/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Market not found"}`, rec.Body.String())
}

type failingExplorer struct{ err error }

func (f failingExplorer) WhaleProfile(context.Context, string) (store.WhaleProfile, error) {
	return store.WhaleProfile{}, f.err
}

func (f failingExplorer) Holders(context.Context, string) ([]store.Holder, error) {
	return nil, f.err
}

func (f failingExplorer) Markets(context.Context, explorer.MarketQuery) ([]store.Market, error) {
	return nil, f.err
}

func (f failingExplorer) Market(context.Context, string) (store.MarketDetail, error) {
	return store.MarketDetail{}, f.err
}

func TestExplorerHandler_Errors(t *testing.T) {
	f := newFixture(t)
	router := NewRouter(f.handler, NewExplorerHandler(failingExplorer{err: errors.New("boom")}),
		NewHealthHandler(f.kv, time.Second), nil, nil)

	assert.Equal(t, http.StatusInternalServerError, serve(t, router, "/api/whale/"+testWallet).Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, router, "/api/markets").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, router, "/api/market/rain").Code)
}

func TestRouter_ExplorerOptional(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/markets", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
