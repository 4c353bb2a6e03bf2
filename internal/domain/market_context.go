package domain

import (
	"fmt"
	"time"
)

// Candle is one OHLC bar from the market data source.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Indicators is the derived technical indicator bundle. Zero values mean the
// history was too short to compute the indicator.
type Indicators struct {
	SMA20      float64
	SMA50      float64
	EMA12      float64
	EMA26      float64
	MACD       float64
	RSI14      float64
	BollUpper  float64
	BollMiddle float64
	BollLower  float64
	ATR14      float64
}

// MarketSnapshot is what the indicator fetcher returns.
type MarketSnapshot struct {
	Price      float64
	Candles    []Candle
	Indicators Indicators
	FetchedAt  time.Time
}

// MarketContext is the record handed to the prediction collaborator.
type MarketContext struct {
	CurrentPrice float64
	PriceHistory []PricePoint
	Change1h     *float64
	Change24h    *float64
	Change7d     *float64
	Change30d    *float64
	Volatility   float64
	Indicators   *Indicators
	Performance  TotalPerformance
	BuiltAt      time.Time
}

// Prediction is the creation recommendation from the prediction collaborator.
type Prediction struct {
	Direction       Direction
	Confidence      float64
	Reasoning       string
	DurationSeconds int64
	StakePercent    float64
}

// Validate rejects malformed collaborator output instead of defaulting it.
func (p Prediction) Validate() error {
	switch p.Direction {
	case DirectionUp, DirectionDown, DirectionNeutral:
	default:
		return &ValidationError{Field: "direction", Reason: fmt.Sprintf("invalid value %q", p.Direction)}
	}
	if p.Confidence < 0 || p.Confidence > 100 {
		return &ValidationError{Field: "confidence", Reason: fmt.Sprintf("%.2f out of range 0-100", p.Confidence)}
	}
	if p.DurationSeconds < 0 {
		return &ValidationError{Field: "durationSeconds", Reason: "negative"}
	}
	if p.StakePercent < 0 {
		return &ValidationError{Field: "stakePercent", Reason: "negative"}
	}
	return nil
}

// AcceptJudgment is the acceptance evaluation for one open wager.
type AcceptJudgment struct {
	Accept     bool
	Confidence float64
	Reasoning  string
}

func (j AcceptJudgment) Validate() error {
	if j.Confidence < 0 || j.Confidence > 100 {
		return &ValidationError{Field: "confidence", Reason: fmt.Sprintf("%.2f out of range 0-100", j.Confidence)}
	}
	return nil
}

// Receipt is what a ledger submission returns. Dry-run receipts have the same shape.
type Receipt struct {
	TransactionID string
	BlockNum      uint32
	SubmittedAt   time.Time
}

// CreateRequest describes a new wager to open.
type CreateRequest struct {
	Direction  Direction
	Stake      int64
	Duration   int64
	OracleFeed uint64
}
