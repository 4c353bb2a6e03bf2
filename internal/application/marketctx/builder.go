package marketctx

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/battlebot/internal/domain"
	"github.com/alejandrodnm/battlebot/internal/ports"
)

const defaultHistory = 48

// TotalReader is the slice of the performance ledger the context needs.
type TotalReader interface {
	Total(ctx context.Context) (domain.TotalPerformance, error)
}

// Config holds the context parameters.
type Config struct {
	FeedID     uint64
	HistoryLen int
}

// Builder assembles the market context handed to the prediction collaborator
// and records oracle observations into the local price history.
type Builder struct {
	oracle     ports.PriceOracle
	prices     ports.PriceStore
	perf       TotalReader
	indicators ports.IndicatorProvider
	metrics    ports.Metrics
	cfg        Config
	now        func() time.Time
}

// New creates a Builder. indicators and metrics may be nil.
func New(
	oracle ports.PriceOracle,
	prices ports.PriceStore,
	perf TotalReader,
	indicators ports.IndicatorProvider,
	metrics ports.Metrics,
	cfg Config,
) *Builder {
	if cfg.FeedID == 0 {
		cfg.FeedID = domain.FeedBTCUSD
	}
	if cfg.HistoryLen <= 0 {
		cfg.HistoryLen = defaultHistory
	}
	return &Builder{
		oracle:     oracle,
		prices:     prices,
		perf:       perf,
		indicators: indicators,
		metrics:    metrics,
		cfg:        cfg,
		now:        time.Now,
	}
}

// WithClock replaces the clock. Used by tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// RecordPrice reads the oracle and appends the observation to the history.
func (b *Builder) RecordPrice(ctx context.Context) (domain.OraclePrice, error) {
	p, err := b.oracle.Price(ctx, b.cfg.FeedID)
	if err != nil {
		return domain.OraclePrice{}, fmt.Errorf("marketctx.RecordPrice: %w", err)
	}
	ts := p.Timestamp
	if ts.IsZero() {
		ts = b.now()
	}
	if err := b.prices.AppendPrice(ctx, domain.PricePoint{Price: p.Price, Timestamp: ts}); err != nil {
		return domain.OraclePrice{}, fmt.Errorf("marketctx.RecordPrice: %w", err)
	}
	if b.metrics != nil {
		b.metrics.PriceObserved(p.Price)
	}
	slog.Debug("marketctx: price recorded", "price", p.Price, "ts", ts)
	return p, nil
}

// Build reads the current oracle price, the local history and the cumulative
// performance. The indicator bundle is optional: a failing provider reduces
// the context instead of failing it.
func (b *Builder) Build(ctx context.Context) (domain.MarketContext, error) {
	now := b.now()
	p, err := b.oracle.Price(ctx, b.cfg.FeedID)
	if err != nil {
		return domain.MarketContext{}, fmt.Errorf("marketctx.Build: price: %w", err)
	}

	history, err := b.prices.RecentPrices(ctx, b.cfg.HistoryLen)
	if err != nil {
		return domain.MarketContext{}, fmt.Errorf("marketctx.Build: history: %w", err)
	}

	perf, err := b.perf.Total(ctx)
	if err != nil {
		return domain.MarketContext{}, fmt.Errorf("marketctx.Build: performance: %w", err)
	}

	mc := domain.MarketContext{
		CurrentPrice: p.Price,
		PriceHistory: history,
		Volatility:   Volatility(history),
		Performance:  perf,
		BuiltAt:      now,
	}

	windows := []struct {
		back time.Duration
		dst  **float64
	}{
		{time.Hour, &mc.Change1h},
		{24 * time.Hour, &mc.Change24h},
		{7 * 24 * time.Hour, &mc.Change7d},
		{30 * 24 * time.Hour, &mc.Change30d},
	}
	for _, w := range windows {
		past, ok, err := b.prices.PriceAtOrBefore(ctx, now.Add(-w.back))
		if err != nil {
			return domain.MarketContext{}, fmt.Errorf("marketctx.Build: change %s: %w", w.back, err)
		}
		if ok && past.Price > 0 {
			*w.dst = domain.Float(PercentChange(past.Price, p.Price))
		}
	}

	if b.indicators != nil {
		snap, err := b.indicators.Snapshot(ctx)
		if err != nil {
			slog.Warn("marketctx: indicators unavailable", "err", err)
		} else {
			ind := snap.Indicators
			mc.Indicators = &ind
		}
	}
	return mc, nil
}

// PercentChange returns (to-from)/from in percent.
func PercentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

// Volatility is the population standard deviation of consecutive percent
// returns over the history. Zero with fewer than two points.
func Volatility(history []domain.PricePoint) float64 {
	if len(history) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		if history[i-1].Price <= 0 {
			continue
		}
		returns = append(returns, PercentChange(history[i-1].Price, history[i].Price))
	}
	if len(returns) == 0 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	var ss float64
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	return math.Sqrt(ss / float64(len(returns)))
}
