package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

// WagerFilter narrows ListWagers. Zero values mean "any".
type WagerFilter struct {
	Statuses []domain.WagerStatus
	Account  string // creator or opponent
	Limit    int
}

// WagerStore is the local mirror of the battles table. Rows are upserted by id
// and never deleted.
type WagerStore interface {
	UpsertWager(ctx context.Context, w domain.Wager) error
	GetWager(ctx context.Context, id uint64) (domain.Wager, error)
	ListWagers(ctx context.Context, f WagerFilter) ([]domain.Wager, error)

	// UnsettledWagers returns our wagers in a terminal state whose outcome has
	// not been accounted yet.
	UnsettledWagers(ctx context.Context) ([]domain.Wager, error)

	// MarkOutcomeRecorded flips the accounted flag and reports whether this call
	// was the one that flipped it. Concurrent callers get true at most once.
	MarkOutcomeRecorded(ctx context.Context, id uint64) (bool, error)
}

// DecisionStore is the append-only decision log.
type DecisionStore interface {
	AppendDecision(ctx context.Context, d domain.Decision) error
	RecentDecisions(ctx context.Context, limit int) ([]domain.Decision, error)

	// DecisionConfidence returns the confidence of the create/accept decision
	// that opened our position in w, or nil if none was recorded. Create
	// decisions are logged before the ledger assigns an id, so they are matched
	// by direction and creation time.
	DecisionConfidence(ctx context.Context, w domain.Wager) (*float64, error)

	// LastDecisionAt returns the time of the most recent decision with the
	// given action, or the zero time.
	LastDecisionAt(ctx context.Context, action domain.DecisionAction) (time.Time, error)
}

// PerformanceStore holds the daily and confidence-bucket aggregates.
type PerformanceStore interface {
	// UpdateDaily loads the row for date (creating it with the streak carried
	// from the latest prior day if absent), applies fn and saves it, all inside
	// one transaction.
	UpdateDaily(ctx context.Context, date time.Time, fn func(*domain.DailyPerformance)) (domain.DailyPerformance, error)
	GetDaily(ctx context.Context, date time.Time) (domain.DailyPerformance, error)
	ListDaily(ctx context.Context) ([]domain.DailyPerformance, error)

	IncrementConfidence(ctx context.Context, bucket domain.ConfidenceBucket, outcome domain.Outcome, amount float64) error
	ListConfidence(ctx context.Context) ([]domain.ConfidencePerformance, error)
}

// PriceStore is the append-only local price history.
type PriceStore interface {
	AppendPrice(ctx context.Context, p domain.PricePoint) error
	// PriceAtOrBefore returns the latest point with Timestamp <= ts.
	// ok is false when the history starts after ts.
	PriceAtOrBefore(ctx context.Context, ts time.Time) (p domain.PricePoint, ok bool, err error)
	// RecentPrices returns up to n points, oldest first.
	RecentPrices(ctx context.Context, n int) ([]domain.PricePoint, error)
}

// Store is everything the bot persists.
type Store interface {
	WagerStore
	DecisionStore
	PerformanceStore
	PriceStore
	Close() error
}
