package wagers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/battlebot/internal/domain"
	"github.com/alejandrodnm/battlebot/internal/ports"
)

const defaultFetchLimit = 100

// OutcomeRecorder is the slice of the performance ledger settlement needs.
type OutcomeRecorder interface {
	RecordWin(ctx context.Context, amount float64, confidence *float64) error
	RecordLoss(ctx context.Context, amount float64, confidence *float64) error
	RecordTie(ctx context.Context, confidence *float64) error
}

// Store is what the engine persists: the wager mirror plus the decision log,
// read to find the confidence that opened a settled position.
type Store interface {
	ports.WagerStore
	DecisionConfidence(ctx context.Context, w domain.Wager) (*float64, error)
}

// Config holds the sync parameters.
type Config struct {
	Account        string
	FetchLimit     int
	StakePrecision uint8
}

// Engine mirrors the battles table locally and exposes the derived views.
// It is the only writer of wager rows.
type Engine struct {
	source   ports.WagerSource
	store    Store
	outcomes OutcomeRecorder
	cfg      Config
	now      func() time.Time
}

// New creates a sync engine. outcomes may be nil, in which case settled wagers
// are left unaccounted.
func New(source ports.WagerSource, store Store, outcomes OutcomeRecorder, cfg Config) *Engine {
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = defaultFetchLimit
	}
	return &Engine{
		source:   source,
		store:    store,
		outcomes: outcomes,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock replaces the clock used to evaluate snapshots.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Account is the configured account the views are evaluated for.
func (e *Engine) Account() string { return e.cfg.Account }

// SyncAll pulls the most recent rows and upserts each one with our role derived.
func (e *Engine) SyncAll(ctx context.Context) ([]domain.Wager, error) {
	rows, err := e.source.FetchWagers(ctx, e.cfg.FetchLimit)
	if err != nil {
		return nil, fmt.Errorf("wagers.SyncAll: fetch: %w", err)
	}
	for i := range rows {
		rows[i].OurRole = rows[i].RoleFor(e.cfg.Account)
		if err := e.store.UpsertWager(ctx, rows[i]); err != nil {
			return nil, fmt.Errorf("wagers.SyncAll: %w", err)
		}
	}
	slog.Debug("wagers: synced", "rows", len(rows))
	return rows, nil
}

// Snapshot syncs, settles our finished wagers and returns the set evaluated at now.
// The filters on the returned set never touch the ledger.
func (e *Engine) Snapshot(ctx context.Context) (domain.WagerSet, error) {
	rows, err := e.SyncAll(ctx)
	if err != nil {
		return domain.WagerSet{}, err
	}
	if _, err := e.Settle(ctx); err != nil {
		slog.Warn("wagers: settlement failed", "err", err)
	}
	return domain.WagerSet{Wagers: rows, Account: e.cfg.Account, Now: e.now()}, nil
}

// Local returns the set built from the mirror without contacting the ledger.
func (e *Engine) Local(ctx context.Context) (domain.WagerSet, error) {
	rows, err := e.store.ListWagers(ctx, ports.WagerFilter{Limit: e.cfg.FetchLimit})
	if err != nil {
		return domain.WagerSet{}, fmt.Errorf("wagers.Local: %w", err)
	}
	return domain.WagerSet{Wagers: rows, Account: e.cfg.Account, Now: e.now()}, nil
}

// Refresh re-reads one wager from the ledger and updates the mirror.
func (e *Engine) Refresh(ctx context.Context, id uint64) (domain.Wager, error) {
	w, err := e.source.FetchWager(ctx, id)
	if err != nil {
		return domain.Wager{}, fmt.Errorf("wagers.Refresh: %d: %w", id, err)
	}
	w.OurRole = w.RoleFor(e.cfg.Account)
	if err := e.store.UpsertWager(ctx, w); err != nil {
		return domain.Wager{}, fmt.Errorf("wagers.Refresh: %w", err)
	}
	return w, nil
}

// Settle accounts every finished wager of ours exactly once and returns how
// many were recorded. The mirror flag is flipped before the ledger write, so a
// failed ledger write loses that outcome rather than double counting it.
func (e *Engine) Settle(ctx context.Context) (int, error) {
	if e.outcomes == nil {
		return 0, nil
	}
	pending, err := e.store.UnsettledWagers(ctx)
	if err != nil {
		return 0, fmt.Errorf("wagers.Settle: %w", err)
	}

	settled := 0
	for _, w := range pending {
		flipped, err := e.store.MarkOutcomeRecorded(ctx, w.ID)
		if err != nil {
			return settled, fmt.Errorf("wagers.Settle: %w", err)
		}
		if !flipped {
			continue
		}

		conf, err := e.store.DecisionConfidence(ctx, w)
		if err != nil {
			slog.Warn("wagers: confidence lookup failed", "wager", w.ID, "err", err)
		}
		if err := e.record(ctx, w, conf); err != nil {
			slog.Error("wagers: outcome not recorded", "wager", w.ID, "err", err)
			continue
		}
		settled++
	}
	return settled, nil
}

func (e *Engine) record(ctx context.Context, w domain.Wager, conf *float64) error {
	switch outcome := w.OutcomeFor(e.cfg.Account); outcome {
	case domain.OutcomeWin:
		return e.outcomes.RecordWin(ctx, domain.UnitsToDisplay(domain.NetWinnings(w.Stake), e.cfg.StakePrecision), conf)
	case domain.OutcomeLoss:
		return e.outcomes.RecordLoss(ctx, domain.UnitsToDisplay(w.Stake, e.cfg.StakePrecision), conf)
	case domain.OutcomeTie:
		return e.outcomes.RecordTie(ctx, conf)
	default:
		return nil
	}
}
