package explorer

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyinsider/whalewatch/internal/ingest"
	"github.com/polyinsider/whalewatch/internal/store"
)

const whaleAddr = "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"

type fakeTraders struct {
	positions    []store.Position
	activity     []store.Activity
	value        float64
	holders      []store.Holder
	positionsErr error
	activityErr  error
	valueErr     error
	holdersErr   error
	holdersFor   string
}

func (f *fakeTraders) FetchPositions(ctx context.Context, user string, limit int) ([]store.Position, error) {
	return f.positions, f.positionsErr
}

func (f *fakeTraders) FetchActivity(ctx context.Context, user string, limit int) ([]store.Activity, error) {
	return f.activity, f.activityErr
}

func (f *fakeTraders) FetchValue(ctx context.Context, user string) (float64, error) {
	return f.value, f.valueErr
}

func (f *fakeTraders) FetchHolders(ctx context.Context, market string, limit int) ([]store.Holder, error) {
	f.holdersFor = market
	return f.holders, f.holdersErr
}

type fakeMarkets struct {
	markets []ingest.GammaMarket
	err     error
	filter  ingest.MarketFilter
}

func (f *fakeMarkets) FetchMarkets(ctx context.Context, filter ingest.MarketFilter) ([]ingest.GammaMarket, error) {
	f.filter = filter
	return f.markets, f.err
}

func (f *fakeMarkets) FetchMarketBySlug(ctx context.Context, slug string) (ingest.GammaMarket, bool, error) {
	if f.err != nil {
		return ingest.GammaMarket{}, false, f.err
	}
	for _, m := range f.markets {
		if m.Slug == slug {
			return m, true, nil
		}
	}
	return ingest.GammaMarket{}, false, nil
}

func TestValidAddress(t *testing.T) {
	assert.True(t, ValidAddress(whaleAddr))
	assert.True(t, ValidAddress("0xABCDEFABCDEFABCDEFABCDEFABCDEFABCDEFABCD"))
	assert.False(t, ValidAddress(""))
	assert.False(t, ValidAddress("abcdefabcdefabcdefabcdefabcdefabcdefabcd"))
	assert.False(t, ValidAddress("0x123"))
	assert.False(t, ValidAddress(whaleAddr+"&limit=1"))
}

func TestWhaleProfile(t *testing.T) {
	traders := &fakeTraders{
		positions: []store.Position{
			{ID: "p1", Pnl: 100.5, Name: "Whale", ProfileImage: "w.png"},
			{ID: "p2", Pnl: -40.25},
		},
		activity: []store.Activity{
			{Type: store.ActivityTrade, USDAmount: 3000},
			{Type: store.ActivityTrade, USDAmount: 1001},
			{Type: "REDEEM", USDAmount: 9999},
		},
		value: 12345.6,
	}
	svc := NewService(traders, &fakeMarkets{})

	profile, err := svc.WhaleProfile(context.Background(), whaleAddr)
	require.NoError(t, err)

	assert.Equal(t, whaleAddr, profile.Address)
	assert.Equal(t, "Whale", profile.Name)
	assert.Equal(t, "w.png", profile.ProfileImage)
	assert.Equal(t, 12345.6, profile.TotalValue)
	assert.Len(t, profile.Positions, 2)
	assert.Len(t, profile.RecentActivity, 3)

	assert.Equal(t, store.WhaleStats{
		TotalTrades: 2,
		AvgBetSize:  2001,
		TotalVolume: 4001,
		Pnl:         60.25,
	}, profile.Stats)
}

func TestWhaleProfile_PartialFailures(t *testing.T) {
	var activity []store.Activity
	for i := 0; i < 30; i++ {
		activity = append(activity, store.Activity{ID: strconv.Itoa(i), Type: store.ActivityTrade, USDAmount: 10})
	}
	traders := &fakeTraders{
		activity:     activity,
		positionsErr: errors.New("positions down"),
		valueErr:     errors.New("value down"),
	}
	svc := NewService(traders, &fakeMarkets{})

	profile, err := svc.WhaleProfile(context.Background(), whaleAddr)
	require.NoError(t, err)

	assert.Empty(t, profile.Name)
	assert.Zero(t, profile.TotalValue)
	assert.NotNil(t, profile.Positions)
	assert.Empty(t, profile.Positions)
	assert.Len(t, profile.RecentActivity, RecentActivity)
	assert.Equal(t, 30, profile.Stats.TotalTrades, "stats cover all fetched activity")
	assert.Equal(t, 300.0, profile.Stats.TotalVolume)
}

func TestWhaleProfile_InvalidAddress(t *testing.T) {
	svc := NewService(&fakeTraders{}, &fakeMarkets{})

	_, err := svc.WhaleProfile(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestHolders(t *testing.T) {
	var holders []store.Holder
	for i := 0; i < 25; i++ {
		holders = append(holders, store.Holder{Address: "0x" + strconv.Itoa(i), Amount: float64(i)})
	}
	traders := &fakeTraders{holders: holders}
	svc := NewService(traders, &fakeMarkets{})

	got, err := svc.Holders(context.Background(), " 0xcond ")
	require.NoError(t, err)

	assert.Equal(t, "0xcond", traders.holdersFor)
	require.Len(t, got, MaxHolders)
	assert.Equal(t, 24.0, got[0].Amount)
	assert.Equal(t, 5.0, got[MaxHolders-1].Amount)
}

func TestHolders_Errors(t *testing.T) {
	svc := NewService(&fakeTraders{holdersErr: ingest.ErrUpstreamUnavailable}, &fakeMarkets{})

	_, err := svc.Holders(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidMarket)

	_, err = svc.Holders(context.Background(), "0xcond")
	assert.ErrorIs(t, err, ingest.ErrUpstreamUnavailable)

	empty, err := NewService(&fakeTraders{}, &fakeMarkets{}).Holders(context.Background(), "0xcond")
	require.NoError(t, err)
	assert.NotNil(t, empty)
}

func market(slug string, volume, volume24h, liquidity float64) ingest.GammaMarket {
	return ingest.GammaMarket{Market: store.Market{
		ID:        slug,
		Slug:      slug,
		Volume:    volume,
		Volume24h: volume24h,
		Liquidity: liquidity,
	}}
}

func TestMarkets(t *testing.T) {
	markets := &fakeMarkets{markets: []ingest.GammaMarket{
		market("a", 100, 5, 300),
		market("b", 300, 1, 100),
		market("dead", 0, 50, 50),
		market("c", 200, 9, 200),
	}}
	svc := NewService(&fakeTraders{}, markets)
	ctx := context.Background()

	got, err := svc.Markets(ctx, MarketQuery{Category: "Sports"})
	require.NoError(t, err)
	assert.Equal(t, ingest.MarketFilter{Limit: ingest.DefaultMarketsLimit, Category: "Sports"}, markets.filter)
	assert.Equal(t, []string{"c", "a", "b"}, slugs(got), "zero-volume markets are dropped")

	got, err = svc.Markets(ctx, MarketQuery{SortBy: SortVolume, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, slugs(got))

	got, err = svc.Markets(ctx, MarketQuery{SortBy: SortLiquidity, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxMarkets, markets.filter.Limit)
	assert.Equal(t, []string{"a", "c", "b"}, slugs(got))

	_, err = svc.Markets(ctx, MarketQuery{SortBy: "name"})
	assert.ErrorIs(t, err, ErrInvalidSort)
}

func slugs(markets []store.Market) []string {
	out := make([]string, 0, len(markets))
	for _, m := range markets {
		out = append(out, m.Slug)
	}
	return out
}

func TestMarket(t *testing.T) {
	m := market("rain", 100, 5, 300)
	m.ConditionID = "0xcond"
	m.Active = true
	traders := &fakeTraders{holders: []store.Holder{{Address: "0xa", Amount: 1}, {Address: "0xb", Amount: 2}}}
	svc := NewService(traders, &fakeMarkets{markets: []ingest.GammaMarket{m, market("bare", 1, 1, 1)}})
	ctx := context.Background()

	detail, err := svc.Market(ctx, "rain")
	require.NoError(t, err)
	assert.Equal(t, "0xcond", detail.ConditionID)
	assert.Equal(t, DefaultCategory, detail.Category)
	assert.True(t, detail.Active)
	assert.Equal(t, "0xcond", traders.holdersFor)
	require.Len(t, detail.Holders, 2)
	assert.Equal(t, "0xb", detail.Holders[0].Address)

	traders.holdersFor = ""
	bare, err := svc.Market(ctx, "bare")
	require.NoError(t, err)
	assert.Empty(t, traders.holdersFor, "no holder lookup without a condition id")
	assert.NotNil(t, bare.Holders)

	_, err = svc.Market(ctx, "missing")
	assert.ErrorIs(t, err, ErrMarketNotFound)

	_, err = svc.Market(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidMarket)
}

func TestMarket_HolderFailureIsNotFatal(t *testing.T) {
	m := market("rain", 100, 5, 300)
	m.ConditionID = "0xcond"
	svc := NewService(&fakeTraders{holdersErr: errors.New("holders down")}, &fakeMarkets{markets: []ingest.GammaMarket{m}})

	detail, err := svc.Market(context.Background(), "rain")
	require.NoError(t, err)
	assert.Empty(t, detail.Holders)
}

func TestMarket_UpstreamError(t *testing.T) {
	svc := NewService(&fakeTraders{}, &fakeMarkets{err: ingest.ErrUpstreamUnavailable})

	_, err := svc.Market(context.Background(), "rain")
	assert.ErrorIs(t, err, ingest.ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, ErrMarketNotFound)
}
