package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyinsider/whalewatch/internal/accumulator"
	"github.com/polyinsider/whalewatch/internal/engine"
	"github.com/polyinsider/whalewatch/internal/kv/stub"
	"github.com/polyinsider/whalewatch/internal/shares"
	"github.com/polyinsider/whalewatch/internal/store"
)

type feedFunc func(ctx context.Context, limit int) ([]store.Trade, error)

func (f feedFunc) FetchTrades(ctx context.Context, limit int) ([]store.Trade, error) {
	return f(ctx, limit)
}

func trade(hash, wallet string, size, price float64) store.Trade {
	return store.Trade{
		ProxyWallet:     wallet,
		Side:            store.SideBuy,
		Size:            size,
		Price:           price,
		Timestamp:       time.Now().Add(-time.Minute).Unix(),
		TransactionHash: hash,
		Title:           "Will it rain?",
		Outcome:         "Yes",
	}
}

type fixture struct {
	kv      *stub.Store
	handler *Handler
	router  http.Handler
	trades  []store.Trade
	feedErr error
}

func newFixture(t *testing.T, trades ...store.Trade) *fixture {
	t.Helper()

	f := &fixture{kv: stub.NewStore(), trades: trades}
	feed := feedFunc(func(context.Context, int) ([]store.Trade, error) {
		if f.feedErr != nil {
			return nil, f.feedErr
		}
		return f.trades, nil
	})

	adapter := accumulator.NewAdapter(f.kv, "", time.Second)
	f.handler = NewHandler(nil, adapter, shares.NewService(f.kv, 0, time.Second),
		engine.Params{MinAmount: 2500, MaxAge: 24 * time.Hour, MaxCount: 100}, 20)
	f.handler.refresher = engine.New(feed, adapter, engine.WithObserver(f.handler.Observe))
	f.router = NewRouter(f.handler, nil, NewHealthHandler(f.kv, time.Second), nil, nil)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestGetTrades(t *testing.T) {
	f := newFixture(t,
		trade("0x1", "0xa", 6000, 0.5),
		trade("0x2", "0xb", 1600, 0.5),
		trade("0x3", "0xc", 10000, 0.5),
	)

	rec := f.do(t, "GET", "/api/trades", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, FeedCacheControl, rec.Header().Get("Cache-Control"))

	cards := decode[[]store.Card](t, rec)
	require.Len(t, cards, 2)
	assert.Equal(t, "0x3", cards[0].ID)
	assert.Equal(t, 5000.0, cards[0].BetAmount)
	assert.Equal(t, 10000.0, cards[0].PotentialPayout)
	assert.Equal(t, "0x1", cards[1].ID)
	assert.Equal(t, "Will it rain?", cards[1].Question)
}

func TestGetTrades_QueryParams(t *testing.T) {
	f := newFixture(t,
		trade("0x1", "0xa", 6000, 0.5),
		trade("0x2", "0xb", 1600, 0.5),
		trade("0x3", "0xc", 10000, 0.5),
	)

	rec := f.do(t, "GET", "/api/trades?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cards := decode[[]store.Card](t, rec)
	require.Len(t, cards, 1)
	assert.Equal(t, "0x3", cards[0].ID)

	rec = f.do(t, "GET", "/api/trades?minAmount=4000", "")
	cards = decode[[]store.Card](t, rec)
	require.Len(t, cards, 1, "minAmount above the configured threshold narrows the feed")
	assert.Equal(t, "0x3", cards[0].ID)

	rec = f.do(t, "GET", "/api/trades?minAmount=500&limit=50", "")
	assert.Len(t, decode[[]store.Card](t, rec), 2, "minAmount below the configured threshold adds nothing")
}

func TestGetTrades_MinAmountDoesNotRewriteCollection(t *testing.T) {
	var whales []store.Trade
	for i := 0; i < 5; i++ {
		whales = append(whales, trade("0xwhale"+strconv.Itoa(i), "0xa", 20000, 0.5))
	}
	f := newFixture(t, whales...)
	require.Equal(t, http.StatusOK, f.do(t, "GET", "/api/sync", "").Code)

	f.trades = nil
	for i := 0; i < 150; i++ {
		f.trades = append(f.trades, trade("0xsmall"+strconv.Itoa(i), "0xb", 10, 0.5))
	}

	rec := f.do(t, "GET", "/api/trades?minAmount=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]store.Card](t, rec), 5)

	require.Equal(t, http.StatusOK, f.do(t, "GET", "/api/sync", "").Code)

	stored, err := f.handler.collection.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 5)
	for _, tr := range stored {
		assert.Contains(t, tr.TransactionHash, "0xwhale")
	}
}

func TestGetTrades_InvalidMinAmount(t *testing.T) {
	f := newFixture(t)

	for _, q := range []string{"abc", "0", "-5", "NaN", "Inf"} {
		rec := f.do(t, "GET", "/api/trades?minAmount="+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
	gets, _ := f.kv.Counts()
	assert.Zero(t, gets, "rejected requests never reach the store")
}

func TestGetTrades_TotalFailure(t *testing.T) {
	f := newFixture(t)
	f.feedErr = errors.New("upstream down")
	f.kv.SetFailures(errors.New("connection refused"), nil)

	rec := f.do(t, "GET", "/api/trades", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decode[map[string]string](t, rec), "error")
}

func TestGetTrades_EmptyIsNotFailure(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/api/trades", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetTrades_FallsBackToLastCollection(t *testing.T) {
	f := newFixture(t, trade("0x1", "0xa", 6000, 0.5))
	require.Equal(t, http.StatusOK, f.do(t, "GET", "/api/trades", "").Code)

	f.feedErr = errors.New("upstream down")
	f.kv.SetFailures(errors.New("connection refused"), nil)

	rec := f.do(t, "GET", "/api/trades", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cards := decode[[]store.Card](t, rec)
	require.Len(t, cards, 1)
	assert.Equal(t, "0x1", cards[0].ID)
}

func TestSync(t *testing.T) {
	f := newFixture(t, trade("0x1", "0xa", 6000, 0.5), trade("0x2", "0xb", 100, 0.5))

	rec := f.do(t, "GET", "/api/sync", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[syncResponse](t, rec)
	assert.True(t, resp.OK)
	assert.Equal(t, 1, resp.New)
	assert.Equal(t, 1, resp.Total)

	_, ok := f.kv.Raw(accumulator.DefaultKey)
	assert.True(t, ok)
}

func TestSync_TotalFailure(t *testing.T) {
	f := newFixture(t)
	f.feedErr = errors.New("upstream down")
	f.kv.SetFailures(errors.New("connection refused"), nil)

	rec := f.do(t, "GET", "/api/sync", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"ok":false}`, rec.Body.String())
}

func TestShares(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/trade/abc123", `{"question":"Q?","betAmount":5000,"outcome":"Yes","traderAddress":"0xa"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Equal(t, shares.DefaultTTL, f.kv.TTL(shares.KeyPrefix+"abc123"))

	rec = f.do(t, "GET", "/api/trade/abc123", "")
	require.Equal(t, http.StatusOK, rec.Code)
	card := decode[store.Card](t, rec)
	assert.Equal(t, "abc123", card.ID)
	assert.Equal(t, "Q?", card.Question)

	rec = f.do(t, "GET", "/api/trade/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateShare(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/trade", `{"question":"Q?","betAmount":5000}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	id := decode[map[string]string](t, rec)["id"]
	require.NotEmpty(t, id)

	rec = f.do(t, "GET", "/api/trade/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestShares_Errors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/trade/abc", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.kv.SetFailures(errors.New("connection refused"), errors.New("connection refused"))

	rec = f.do(t, "POST", "/api/trade/abc", `{"question":"Q?"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = f.do(t, "GET", "/api/trade/abc", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetLeaderboard(t *testing.T) {
	f := newFixture(t,
		trade("0x1", "0xa", 6000, 0.5),
		trade("0x2", "0xa", 8000, 0.5),
		trade("0x3", "0xb", 20000, 0.5),
	)
	require.Equal(t, http.StatusOK, f.do(t, "GET", "/api/sync", "").Code)

	rec := f.do(t, "GET", "/api/leaderboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	entries := decode[[]store.LeaderboardEntry](t, rec)
	require.Len(t, entries, 2)
	assert.Equal(t, "0xb", entries[0].Address)
	assert.Equal(t, 10000.0, entries[0].TotalVolume)
	assert.Equal(t, "0xa", entries[1].Address)
	assert.Equal(t, 7000.0, entries[1].TotalVolume)
	assert.Equal(t, 2, entries[1].TradesCount)
}

func TestGetLeaderboard_StoreDown(t *testing.T) {
	f := newFixture(t)
	f.kv.SetFailures(errors.New("connection refused"), nil)

	rec := f.do(t, "GET", "/api/leaderboard", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	f.kv.PingErr = errors.New("connection refused")
	rec = f.do(t, "GET", "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"store":"unhealthy"}}`, rec.Body.String())
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "DELETE", "/api/trades", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
