package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/battlebot/internal/application/resolver"
	"github.com/alejandrodnm/battlebot/internal/domain"
	"github.com/alejandrodnm/battlebot/internal/ports"
)

// Modes accepted by New.
const (
	ModeResolver   = "resolver"
	ModePassive    = "passive"
	ModeAggressive = "aggressive"
)

// Strategy is one decision policy run on every scheduler tick.
type Strategy interface {
	Name() string
	Tick(ctx context.Context) error
}

// Sweeper resolves matured wagers and clears expired ones.
type Sweeper interface {
	Sweep(ctx context.Context) (resolver.Summary, error)
}

// Snapshotter returns a freshly synced wager set.
type Snapshotter interface {
	Snapshot(ctx context.Context) (domain.WagerSet, error)
}

// ContextBuilder assembles the market context for the prediction collaborator.
type ContextBuilder interface {
	Build(ctx context.Context) (domain.MarketContext, error)
}

// DailyReader returns today's performance row.
type DailyReader interface {
	Today(ctx context.Context) (domain.DailyPerformance, error)
}

// Deps are the collaborators shared by every strategy. Metrics may be nil.
type Deps struct {
	Resolver  Sweeper
	Wagers    Snapshotter
	Context   ContextBuilder
	Predictor ports.Predictor
	Executor  ports.LedgerExecutor
	Account   ports.AccountReader
	Decisions ports.DecisionStore
	Prices    ports.PriceStore
	Ledger    DailyReader
	Metrics   ports.Metrics
}

// Settings carries the configured policy parameters.
type Settings struct {
	FeedID       uint64
	Risk         Risk
	Conservative Params
	Active       Params
}

// New builds the strategy for mode.
func New(mode string, deps Deps, s Settings) (Strategy, error) {
	if s.FeedID == 0 {
		s.FeedID = domain.FeedBTCUSD
	}
	switch mode {
	case ModeResolver:
		return &ResolveOnly{resolver: deps.Resolver, metrics: deps.Metrics}, nil
	case ModePassive:
		return newConservative(deps, s), nil
	case ModeAggressive:
		return newActive(deps, s), nil
	}
	return nil, fmt.Errorf("strategy.New: unknown mode %q", mode)
}

// ResolveOnly never trades. It only resolves and clears expired wagers.
type ResolveOnly struct {
	resolver Sweeper
	metrics  ports.Metrics
}

func (r *ResolveOnly) Name() string { return "resolve-only" }

func (r *ResolveOnly) Tick(ctx context.Context) error {
	err := sweep(ctx, r.resolver, slog.With("strategy", r.Name()))
	if r.metrics != nil {
		r.metrics.TickCompleted(r.Name(), err == nil)
	}
	return err
}

func sweep(ctx context.Context, s Sweeper, log *slog.Logger) error {
	summary, err := s.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	ok, failed := summary.Counts()
	if ok+failed > 0 {
		log.Info("strategy: sweep done", "succeeded", ok, "failed", failed)
	}
	return nil
}

func newTickLogger(name string) *slog.Logger {
	return slog.With("strategy", name, "tick", uuid.NewString()[:8])
}

func logDecision(ctx context.Context, deps Deps, log *slog.Logger, d domain.Decision) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	if err := deps.Decisions.AppendDecision(ctx, d); err != nil {
		log.Error("strategy: decision not logged", "action", d.Action, "err", err)
		return
	}
	if deps.Metrics != nil {
		deps.Metrics.DecisionLogged(d.Action)
	}
}
