package ports

import (
	"context"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

// Predictor is the prediction collaborator. Implementations must reject
// malformed model output with a *domain.ValidationError instead of defaulting.
type Predictor interface {
	Predict(ctx context.Context, mc domain.MarketContext) (domain.Prediction, error)
	EvaluateAccept(ctx context.Context, mc domain.MarketContext, w domain.Wager) (domain.AcceptJudgment, error)
}

// IndicatorProvider supplies OHLC history and technical indicators. Optional:
// without one the market context carries only the local price history.
type IndicatorProvider interface {
	Snapshot(ctx context.Context) (domain.MarketSnapshot, error)
}

// Metrics receives operational counters. A nil Metrics is valid everywhere it
// is accepted.
type Metrics interface {
	TickCompleted(strategy string, ok bool)
	DecisionLogged(action domain.DecisionAction)
	ResolutionAttempted(kind string, ok bool)
	PriceObserved(price float64)
	OutcomeRecorded(outcome domain.Outcome)
}
