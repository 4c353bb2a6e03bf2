package performance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/battlebot/internal/domain"
	"github.com/alejandrodnm/battlebot/internal/ports"
)

// Ledger records wager outcomes and resolver earnings into today's UTC row and,
// when the opening decision carried a confidence, into its confidence bucket.
type Ledger struct {
	store   ports.PerformanceStore
	metrics ports.Metrics
	now     func() time.Time
}

// New creates a Ledger. metrics may be nil.
func New(store ports.PerformanceStore, metrics ports.Metrics) *Ledger {
	return &Ledger{store: store, metrics: metrics, now: time.Now}
}

// WithClock replaces the clock used to pick today's row.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// RecordWin adds a win of amount (display units, net of fees).
func (l *Ledger) RecordWin(ctx context.Context, amount float64, confidence *float64) error {
	return l.record(ctx, domain.OutcomeWin, amount, confidence, func(d *domain.DailyPerformance) {
		d.RecordWin(amount)
	})
}

// RecordLoss adds a loss of amount (display units, the lost stake).
func (l *Ledger) RecordLoss(ctx context.Context, amount float64, confidence *float64) error {
	return l.record(ctx, domain.OutcomeLoss, amount, confidence, func(d *domain.DailyPerformance) {
		d.RecordLoss(amount)
	})
}

// RecordTie adds a tie. Streaks are untouched.
func (l *Ledger) RecordTie(ctx context.Context, confidence *float64) error {
	return l.record(ctx, domain.OutcomeTie, 0, confidence, func(d *domain.DailyPerformance) {
		d.RecordTie()
	})
}

// RecordResolverEarnings adds a resolver fee to today's row.
func (l *Ledger) RecordResolverEarnings(ctx context.Context, amount float64) error {
	if _, err := l.store.UpdateDaily(ctx, l.now().UTC(), func(d *domain.DailyPerformance) {
		d.RecordResolverEarnings(amount)
	}); err != nil {
		return fmt.Errorf("performance.RecordResolverEarnings: %w", err)
	}
	return nil
}

func (l *Ledger) record(ctx context.Context, outcome domain.Outcome, amount float64, confidence *float64, apply func(*domain.DailyPerformance)) error {
	day, err := l.store.UpdateDaily(ctx, l.now().UTC(), apply)
	if err != nil {
		return fmt.Errorf("performance.record %s: %w", outcome, err)
	}
	if confidence != nil {
		bucket := domain.BucketFor(*confidence)
		if err := l.store.IncrementConfidence(ctx, bucket, outcome, amount); err != nil {
			return fmt.Errorf("performance.record %s: bucket %s: %w", outcome, bucket, err)
		}
	}
	if l.metrics != nil {
		l.metrics.OutcomeRecorded(outcome)
	}
	slog.Info("performance: outcome recorded",
		"outcome", outcome,
		"amount", amount,
		"streak", day.CurrentStreak,
	)
	return nil
}

// Today returns the current UTC day row.
func (l *Ledger) Today(ctx context.Context) (domain.DailyPerformance, error) {
	return l.Daily(ctx, l.now().UTC())
}

// Daily returns the row for the UTC day containing date.
func (l *Ledger) Daily(ctx context.Context, date time.Time) (domain.DailyPerformance, error) {
	d, err := l.store.GetDaily(ctx, date)
	if err != nil {
		return domain.DailyPerformance{}, fmt.Errorf("performance.Daily: %w", err)
	}
	return d, nil
}

// Total sums every stored day. CurrentStreak comes from the latest day.
func (l *Ledger) Total(ctx context.Context) (domain.TotalPerformance, error) {
	days, err := l.store.ListDaily(ctx)
	if err != nil {
		return domain.TotalPerformance{}, fmt.Errorf("performance.Total: %w", err)
	}
	return domain.Aggregate(days), nil
}

// ConfidenceStats lists the four bucket rows in ascending order.
func (l *Ledger) ConfidenceStats(ctx context.Context) ([]domain.ConfidencePerformance, error) {
	stats, err := l.store.ListConfidence(ctx)
	if err != nil {
		return nil, fmt.Errorf("performance.ConfidenceStats: %w", err)
	}
	return stats, nil
}
