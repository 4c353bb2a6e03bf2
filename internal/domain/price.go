package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceDecimals is the number of fractional digits of the ledger price encoding.
const PriceDecimals = 8

// FeedBTCUSD is the oracle feed index for BTC/USD.
const FeedBTCUSD uint64 = 4

// OraclePrice is one aggregated observation read from the oracle table.
type OraclePrice struct {
	FeedID    uint64
	Price     float64
	Timestamp time.Time
}

// PricePoint is one entry of the locally recorded price history.
type PricePoint struct {
	Price     float64
	Timestamp time.Time
}

// FloatToFixed encodes a price as an integer with PriceDecimals fractional
// digits, rounding to the nearest integer.
func FloatToFixed(p float64) int64 {
	return decimal.NewFromFloat(p).Shift(PriceDecimals).Round(0).IntPart()
}

// FixedToFloat decodes a fixed-point price.
func FixedToFloat(v int64) float64 {
	return decimal.New(v, -PriceDecimals).InexactFloat64()
}

// UnitsToDisplay converts token base units into a display amount.
func UnitsToDisplay(units int64, precision uint8) float64 {
	return decimal.New(units, -int32(precision)).InexactFloat64()
}

// DisplayToUnits converts a display amount into token base units, rounding down.
func DisplayToUnits(amount float64, precision uint8) int64 {
	return decimal.NewFromFloat(amount).Shift(int32(precision)).Floor().IntPart()
}

// ResolverFeeRate is the share of the pot paid to whoever resolves a wager.
var ResolverFeeRate = decimal.RequireFromString("0.02")

// ResolverReward returns the resolver fee in base units for a wager where each
// side staked stake: 2% of the combined pot.
func ResolverReward(stake int64) int64 {
	pot := decimal.NewFromInt(stake).Mul(decimal.NewFromInt(2))
	return pot.Mul(ResolverFeeRate).Floor().IntPart()
}

// WinnerPayoutRate is the share of the pot the winner receives; the rest pays
// the resolver and the contract fee.
var WinnerPayoutRate = decimal.RequireFromString("0.96")

// NetWinnings is the profit of a won wager in base units: payout minus own stake.
func NetWinnings(stake int64) int64 {
	pot := decimal.NewFromInt(stake).Mul(decimal.NewFromInt(2))
	return pot.Mul(WinnerPayoutRate).Floor().IntPart() - stake
}
