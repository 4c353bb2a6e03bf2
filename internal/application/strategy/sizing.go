package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

// Risk bounds stake sizing and exposure. Amounts are token base units.
type Risk struct {
	MaxStakePct   float64 // cap on the collaborator's stake percent
	MaxConcurrent int     // our open+active wagers
	MinReserve    int64   // never staked
	MaxDailyLoss  float64 // display units; 0 disables the guard
	MinStake      int64
	MaxStake      int64 // 0 means no cap
	LotSize       int64 // stakes are multiples of this; 0 or 1 disables rounding
}

// SizeStake turns a stake percent into base units:
// min(balance - reserve, maxStake) x pct%, floored to the lot size, raised to
// the minimum stake and never above what is available.
// It returns domain.ErrInsufficientFunds when the available balance cannot
// cover the minimum stake.
func SizeStake(balance int64, pct float64, r Risk) (int64, error) {
	available := balance - r.MinReserve
	if available < r.MinStake || available <= 0 {
		return 0, fmt.Errorf("strategy.SizeStake: available %d below minimum %d: %w",
			available, r.MinStake, domain.ErrInsufficientFunds)
	}

	base := available
	if r.MaxStake > 0 && base > r.MaxStake {
		base = r.MaxStake
	}
	if r.MaxStakePct > 0 && pct > r.MaxStakePct {
		pct = r.MaxStakePct
	}
	if pct < 0 {
		pct = 0
	}

	stake := decimal.NewFromInt(base).
		Mul(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(100)).
		Floor()
	if r.LotSize > 1 {
		lot := decimal.NewFromInt(r.LotSize)
		stake = stake.Div(lot).Floor().Mul(lot)
	}

	units := stake.IntPart()
	if units < r.MinStake {
		units = r.MinStake
	}
	if units > available {
		units = available
	}
	if units <= 0 {
		return 0, fmt.Errorf("strategy.SizeStake: zero stake: %w", domain.ErrInsufficientFunds)
	}
	return units, nil
}

func clamp(v, lo, hi float64) float64 {
	if hi > 0 && v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
