package marketdata

import (
	"math"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

// Compute derives the indicator bundle from candles (oldest first). An
// indicator whose window is longer than the history stays zero.
func Compute(candles []domain.Candle) domain.Indicators {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	var ind domain.Indicators
	ind.SMA20 = SMA(closes, 20)
	ind.SMA50 = SMA(closes, 50)
	ind.EMA12 = EMA(closes, 12)
	ind.EMA26 = EMA(closes, 26)
	if ind.EMA12 != 0 && ind.EMA26 != 0 {
		ind.MACD = ind.EMA12 - ind.EMA26
	}
	ind.RSI14 = RSI(closes, 14)
	ind.BollUpper, ind.BollMiddle, ind.BollLower = Bollinger(closes, 20, 2)
	ind.ATR14 = ATR(candles, 14)
	return ind
}

// SMA is the mean of the last n values.
func SMA(v []float64, n int) float64 {
	if n <= 0 || len(v) < n {
		return 0
	}
	sum := 0.0
	for _, x := range v[len(v)-n:] {
		sum += x
	}
	return sum / float64(n)
}

// EMA seeds with the SMA of the first n values and smooths with 2/(n+1).
func EMA(v []float64, n int) float64 {
	if n <= 0 || len(v) < n {
		return 0
	}
	k := 2.0 / float64(n+1)
	ema := SMA(v[:n], n)
	for _, x := range v[n:] {
		ema = x*k + ema*(1-k)
	}
	return ema
}

// RSI uses Wilder smoothing. Returns 100 when there are no losses.
func RSI(v []float64, n int) float64 {
	if n <= 0 || len(v) <= n {
		return 0
	}
	var gain, loss float64
	for i := 1; i <= n; i++ {
		d := v[i] - v[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= float64(n)
	loss /= float64(n)
	for i := n + 1; i < len(v); i++ {
		d := v[i] - v[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		gain = (gain*float64(n-1) + g) / float64(n)
		loss = (loss*float64(n-1) + l) / float64(n)
	}
	if loss == 0 {
		return 100
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}

// Bollinger returns SMA(n) +/- k population standard deviations.
func Bollinger(v []float64, n int, k float64) (upper, middle, lower float64) {
	if n <= 0 || len(v) < n {
		return 0, 0, 0
	}
	middle = SMA(v, n)
	var sq float64
	for _, x := range v[len(v)-n:] {
		sq += (x - middle) * (x - middle)
	}
	sd := math.Sqrt(sq / float64(n))
	return middle + k*sd, middle, middle - k*sd
}

// ATR is the Wilder-smoothed average true range.
func ATR(c []domain.Candle, n int) float64 {
	if n <= 0 || len(c) <= n {
		return 0
	}
	tr := func(i int) float64 {
		hl := c[i].High - c[i].Low
		hc := math.Abs(c[i].High - c[i-1].Close)
		lc := math.Abs(c[i].Low - c[i-1].Close)
		return math.Max(hl, math.Max(hc, lc))
	}
	atr := 0.0
	for i := 1; i <= n; i++ {
		atr += tr(i)
	}
	atr /= float64(n)
	for i := n + 1; i < len(c); i++ {
		atr = (atr*float64(n-1) + tr(i)) / float64(n)
	}
	return atr
}
