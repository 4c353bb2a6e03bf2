package marketctx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/battlebot/internal/adapters/storage"
	"github.com/alejandrodnm/battlebot/internal/application/marketctx"
	"github.com/alejandrodnm/battlebot/internal/domain"
)

var now = time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)

type fakeOracle struct {
	price float64
	err   error
}

func (f *fakeOracle) Price(_ context.Context, feed uint64) (domain.OraclePrice, error) {
	return domain.OraclePrice{FeedID: feed, Price: f.price, Timestamp: now}, f.err
}

type fakeTotals struct{ total domain.TotalPerformance }

func (f fakeTotals) Total(context.Context) (domain.TotalPerformance, error) { return f.total, nil }

type fakeIndicators struct {
	snap domain.MarketSnapshot
	err  error
}

func (f fakeIndicators) Snapshot(context.Context) (domain.MarketSnapshot, error) { return f.snap, f.err }

type priceGauge struct{ last float64 }

func (g *priceGauge) TickCompleted(string, bool) {}
func (g *priceGauge) DecisionLogged(domain.DecisionAction) {}
func (g *priceGauge) ResolutionAttempted(string, bool) {}
func (g *priceGauge) PriceObserved(p float64) { g.last = p }
func (g *priceGauge) OutcomeRecorded(domain.Outcome) {}

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBuilder_Build(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()
	for _, p := range []domain.PricePoint{
		{Price: 60000, Timestamp: now.Add(-8 * 24 * time.Hour)},
		{Price: 64000, Timestamp: now.Add(-25 * time.Hour)},
		{Price: 65000, Timestamp: now.Add(-2 * time.Hour)},
	} {
		require.NoError(t, db.AppendPrice(ctx, p))
	}

	perf := domain.TotalPerformance{Wins: 3, Losses: 1}
	ind := fakeIndicators{snap: domain.MarketSnapshot{Indicators: domain.Indicators{RSI14: 55}}}
	b := marketctx.New(&fakeOracle{price: 66300}, db, fakeTotals{perf}, ind, nil, marketctx.Config{}).
		WithClock(func() time.Time { return now })

	mc, err := b.Build(ctx)
	require.NoError(t, err)
	assert.Equal(t, 66300.0, mc.CurrentPrice)
	assert.Len(t, mc.PriceHistory, 3)
	assert.Equal(t, perf, mc.Performance)

	require.NotNil(t, mc.Change1h)
	assert.InDelta(t, 2.0, *mc.Change1h, 1e-9)
	require.NotNil(t, mc.Change24h)
	assert.InDelta(t, 3.59375, *mc.Change24h, 1e-9)
	require.NotNil(t, mc.Change7d)
	assert.InDelta(t, 10.5, *mc.Change7d, 1e-9)
	assert.Nil(t, mc.Change30d, "history does not reach back 30 days")

	require.NotNil(t, mc.Indicators)
	assert.Equal(t, 55.0, mc.Indicators.RSI14)
	assert.Greater(t, mc.Volatility, 0.0)
}

func TestBuilder_BuildWithoutIndicators(t *testing.T) {
	db := newStore(t)
	failing := fakeIndicators{err: errors.New("rate limited")}

	b := marketctx.New(&fakeOracle{price: 65000}, db, fakeTotals{}, failing, nil, marketctx.Config{})
	mc, err := b.Build(context.Background())
	require.NoError(t, err, "indicator failures only reduce the context")
	assert.Nil(t, mc.Indicators)
	assert.Nil(t, mc.Change1h)
	assert.Zero(t, mc.Volatility)

	b = marketctx.New(&fakeOracle{price: 65000}, db, fakeTotals{}, nil, nil, marketctx.Config{})
	mc, err = b.Build(context.Background())
	require.NoError(t, err)
	assert.Nil(t, mc.Indicators)
}

func TestBuilder_BuildOracleFailure(t *testing.T) {
	b := marketctx.New(&fakeOracle{err: domain.ErrFeedNotFound}, newStore(t), fakeTotals{}, nil, nil, marketctx.Config{})
	_, err := b.Build(context.Background())
	assert.ErrorIs(t, err, domain.ErrFeedNotFound)
}

func TestBuilder_RecordPrice(t *testing.T) {
	db := newStore(t)
	gauge := &priceGauge{}
	b := marketctx.New(&fakeOracle{price: 65432.1}, db, fakeTotals{}, nil, gauge, marketctx.Config{})
	ctx := context.Background()

	p, err := b.RecordPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.FeedBTCUSD, p.FeedID)
	assert.Equal(t, 65432.1, gauge.last)

	hist, err := db.RecentPrices(ctx, 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 65432.1, hist[0].Price)
	assert.True(t, now.Equal(hist[0].Timestamp))
}

func TestVolatility(t *testing.T) {
	flat := []domain.PricePoint{{Price: 100}, {Price: 100}, {Price: 100}}
	assert.Zero(t, marketctx.Volatility(flat))
	assert.Zero(t, marketctx.Volatility(flat[:1]))

	// returns +10% and -10%: mean 0, population sd 10
	swing := []domain.PricePoint{{Price: 100}, {Price: 110}, {Price: 99}}
	assert.InDelta(t, 10.0, marketctx.Volatility(swing), 1e-9)
}
