package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

const (
	defaultBaseURL  = "https://api.binance.com"
	defaultSymbol   = "BTCUSDT"
	defaultInterval = "1h"
	defaultLimit    = 200
	defaultTTL      = time.Minute

	defaultRetryWait = 500 * time.Millisecond
)

// Config configures the kline source.
type Config struct {
	BaseURL    string
	Symbol     string
	Interval   string
	Limit      int
	CacheTTL   time.Duration
	RatePerSec float64
	RetryWait  time.Duration // first backoff step, doubled per retry
}

// Client fetches OHLC klines from a Binance-compatible endpoint and derives
// indicators. Snapshots are cached for CacheTTL.
type Client struct {
	http    *http.Client
	cfg     Config
	limiter *rate.Limiter
	now     func() time.Time

	mu       sync.Mutex
	cached   domain.MarketSnapshot
	cachedAt time.Time
}

// NewClient builds a Client. Zero fields take the defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Symbol == "" {
		cfg.Symbol = defaultSymbol
	}
	if cfg.Interval == "" {
		cfg.Interval = defaultInterval
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultTTL
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = defaultRetryWait
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 2),
		now:     time.Now,
	}
}

// Snapshot returns the cached snapshot while fresh, otherwise refetches.
func (c *Client) Snapshot(ctx context.Context) (domain.MarketSnapshot, error) {
	c.mu.Lock()
	if !c.cachedAt.IsZero() && c.now().Sub(c.cachedAt) < c.cfg.CacheTTL {
		snap := c.cached
		c.mu.Unlock()
		return snap, nil
	}
	c.mu.Unlock()

	candles, err := c.fetchKlines(ctx)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("marketdata.Snapshot: %w", err)
	}
	if len(candles) == 0 {
		return domain.MarketSnapshot{}, fmt.Errorf("marketdata.Snapshot: no klines for %s", c.cfg.Symbol)
	}

	snap := domain.MarketSnapshot{
		Price:      candles[len(candles)-1].Close,
		Candles:    candles,
		Indicators: Compute(candles),
		FetchedAt:  c.now().UTC(),
	}

	c.mu.Lock()
	c.cached, c.cachedAt = snap, c.now()
	c.mu.Unlock()
	return snap, nil
}

func (c *Client) fetchKlines(ctx context.Context) ([]domain.Candle, error) {
	q := url.Values{}
	q.Set("symbol", c.cfg.Symbol)
	q.Set("interval", c.cfg.Interval)
	q.Set("limit", strconv.Itoa(c.cfg.Limit))
	u := c.cfg.BaseURL + "/api/v3/klines?" + q.Encode()

	var raw [][]json.RawMessage
	err := c.doWithRetry(ctx, c.limiter, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("klines %s: %w", c.cfg.Symbol, err)
	}

	candles := make([]domain.Candle, 0, len(raw))
	for i, k := range raw {
		cd, err := parseKline(k)
		if err != nil {
			return nil, fmt.Errorf("kline %d: %w", i, err)
		}
		candles = append(candles, cd)
	}
	return candles, nil
}

// parseKline decodes [openTime, open, high, low, close, volume, ...].
func parseKline(k []json.RawMessage) (domain.Candle, error) {
	if len(k) < 6 {
		return domain.Candle{}, fmt.Errorf("short kline: %d fields", len(k))
	}
	var openMs int64
	if err := json.Unmarshal(k[0], &openMs); err != nil {
		return domain.Candle{}, fmt.Errorf("open time: %w", err)
	}
	vals := make([]float64, 5)
	for i := range vals {
		var s string
		if err := json.Unmarshal(k[i+1], &s); err != nil {
			return domain.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return domain.Candle{
		OpenTime: time.UnixMilli(openMs).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, nil
}
