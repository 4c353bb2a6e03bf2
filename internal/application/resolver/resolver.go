package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/battlebot/internal/domain"
	"github.com/alejandrodnm/battlebot/internal/ports"
)

const defaultPacing = time.Second

// Result kinds.
const (
	KindResolve = "resolve"
	KindCancel  = "cancel"
	KindExpire  = "expire"
)

// WagerSync is the part of the sync engine the resolver needs.
type WagerSync interface {
	Snapshot(ctx context.Context) (domain.WagerSet, error)
	Refresh(ctx context.Context, id uint64) (domain.Wager, error)
}

// EarningsRecorder receives resolver fees.
type EarningsRecorder interface {
	RecordResolverEarnings(ctx context.Context, amount float64) error
}

// Config holds resolver settings.
type Config struct {
	Account        string
	StakePrecision uint8
	// Pacing is the delay between consecutive submissions of a batch.
	Pacing time.Duration
}

// Result is the typed outcome of one resolution or expiry attempt.
type Result struct {
	WagerID uint64
	Kind    string
	Success bool
	TxID    string
	Reward  float64 // display units, resolve only
	Err     error
}

// Summary groups the results of one resolve+expire sweep.
type Summary struct {
	Resolved []Result
	Expired  []Result
}

// Counts returns how many results succeeded and failed.
func (s Summary) Counts() (succeeded, failed int) {
	for _, r := range append(append([]Result(nil), s.Resolved...), s.Expired...) {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// Resolver settles matured wagers for the resolver fee and clears expired ones.
type Resolver struct {
	wagers    WagerSync
	oracle    ports.PriceOracle
	exec      ports.LedgerExecutor
	decisions ports.DecisionStore
	earnings  EarningsRecorder
	metrics   ports.Metrics
	cfg       Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Resolver. metrics may be nil.
func New(
	wagers WagerSync,
	oracle ports.PriceOracle,
	exec ports.LedgerExecutor,
	decisions ports.DecisionStore,
	earnings EarningsRecorder,
	metrics ports.Metrics,
	cfg Config,
) *Resolver {
	if cfg.Pacing < 0 {
		cfg.Pacing = 0
	}
	return &Resolver{
		wagers:    wagers,
		oracle:    oracle,
		exec:      exec,
		decisions: decisions,
		earnings:  earnings,
		metrics:   metrics,
		cfg:       cfg,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// DefaultConfig returns a Config with the default pacing.
func DefaultConfig(account string, precision uint8) Config {
	return Config{Account: account, StakePrecision: precision, Pacing: defaultPacing}
}

// WithClock replaces the clock and the pacing sleep. Used by tests.
func (r *Resolver) WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) *Resolver {
	r.now = now
	r.sleep = sleep
	return r
}

// Sweep takes one snapshot, resolves every matured wager and clears every
// expired one.
func (r *Resolver) Sweep(ctx context.Context) (Summary, error) {
	set, err := r.wagers.Snapshot(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("resolver.Sweep: %w", err)
	}
	s := Summary{Resolved: r.resolveBatch(ctx, set.Resolvable())}
	s.Expired = r.expireBatch(ctx, set.Expired())
	return s, nil
}

// ResolveAll resolves every matured wager of a fresh snapshot.
func (r *Resolver) ResolveAll(ctx context.Context) ([]Result, error) {
	set, err := r.wagers.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolver.ResolveAll: %w", err)
	}
	return r.resolveBatch(ctx, set.Resolvable()), nil
}

// ExpireAll clears every expired wager of a fresh snapshot.
func (r *Resolver) ExpireAll(ctx context.Context) ([]Result, error) {
	set, err := r.wagers.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolver.ExpireAll: %w", err)
	}
	return r.expireBatch(ctx, set.Expired()), nil
}

func (r *Resolver) resolveBatch(ctx context.Context, ws []domain.Wager) []Result {
	return r.paced(ctx, ws, r.ResolveOne)
}

func (r *Resolver) expireBatch(ctx context.Context, ws []domain.Wager) []Result {
	return r.paced(ctx, ws, r.ExpireOne)
}

// paced runs fn over ws with the pacing delay between items. A cancelled
// context stops the batch; results gathered so far are returned.
func (r *Resolver) paced(ctx context.Context, ws []domain.Wager, fn func(context.Context, domain.Wager) Result) []Result {
	results := make([]Result, 0, len(ws))
	for i, w := range ws {
		if i > 0 && r.cfg.Pacing > 0 {
			if err := r.sleep(ctx, r.cfg.Pacing); err != nil {
				break
			}
		}
		results = append(results, fn(ctx, w))
	}
	return results
}

// ResolveOne re-validates w against the ledger, submits the resolution with the
// current oracle price and accounts the resolver fee.
func (r *Resolver) ResolveOne(ctx context.Context, w domain.Wager) Result {
	res := Result{WagerID: w.ID, Kind: KindResolve}
	defer func() { r.observe(res) }()

	fresh, err := r.wagers.Refresh(ctx, w.ID)
	if err != nil {
		res.Err = err
		return res
	}
	if !fresh.IsResolvable(r.now()) {
		res.Err = fmt.Errorf("resolver.ResolveOne: %d is %s: %w", w.ID, fresh.Status, domain.ErrStaleState)
		return res
	}

	price, err := r.oracle.Price(ctx, fresh.OracleFeed)
	if err != nil {
		res.Err = fmt.Errorf("resolver.ResolveOne: %d: %w", w.ID, err)
		return res
	}

	receipt, err := r.exec.ResolveWager(ctx, fresh.ID, domain.FloatToFixed(price.Price))
	if err != nil {
		res.Err = fmt.Errorf("resolver.ResolveOne: %d: %w", w.ID, err)
		return res
	}
	res.Success = true
	res.TxID = receipt.TransactionID
	res.Reward = domain.UnitsToDisplay(domain.ResolverReward(fresh.Stake), r.cfg.StakePrecision)

	slog.Info("resolver: resolved",
		"wager", fresh.ID,
		"price", price.Price,
		"reward", res.Reward,
		"tx", receipt.TransactionID,
		"dry_run", r.exec.DryRun(),
	)

	// The transaction is already on the ledger; bookkeeping failures are logged only.
	decision := domain.Decision{
		ID:              uuid.NewString(),
		ChallengeID:     domain.WagerID(fresh.ID),
		Action:          domain.ActionResolve,
		Direction:       fresh.Direction,
		Reasoning:       fmt.Sprintf("resolved at %.2f for a %.4f fee", price.Price, res.Reward),
		PriceAtDecision: price.Price,
		CreatedAt:       r.now(),
	}
	if err := r.decisions.AppendDecision(ctx, decision); err != nil {
		slog.Error("resolver: decision not logged", "wager", fresh.ID, "err", err)
	} else if r.metrics != nil {
		r.metrics.DecisionLogged(domain.ActionResolve)
	}
	if err := r.earnings.RecordResolverEarnings(ctx, res.Reward); err != nil {
		slog.Error("resolver: earnings not recorded", "wager", fresh.ID, "err", err)
	}
	return res
}

// ExpireOne clears an open wager past its acceptance window. Our own wagers
// are cancelled; others are expired. No reward is paid either way.
func (r *Resolver) ExpireOne(ctx context.Context, w domain.Wager) Result {
	res := Result{WagerID: w.ID, Kind: KindExpire}
	if w.Creator == r.cfg.Account {
		res.Kind = KindCancel
	}
	defer func() { r.observe(res) }()

	fresh, err := r.wagers.Refresh(ctx, w.ID)
	if err != nil {
		res.Err = err
		return res
	}
	if !fresh.IsExpired(r.now()) {
		res.Err = fmt.Errorf("resolver.ExpireOne: %d is %s: %w", w.ID, fresh.Status, domain.ErrStaleState)
		return res
	}

	var receipt domain.Receipt
	if res.Kind == KindCancel {
		receipt, err = r.exec.CancelWager(ctx, fresh.ID)
	} else {
		receipt, err = r.exec.ExpireWager(ctx, fresh.ID)
	}
	if err != nil {
		res.Err = fmt.Errorf("resolver.ExpireOne: %s %d: %w", res.Kind, w.ID, err)
		return res
	}
	res.Success = true
	res.TxID = receipt.TransactionID
	slog.Info("resolver: cleared expired wager", "wager", fresh.ID, "kind", res.Kind, "tx", receipt.TransactionID)
	return res
}

func (r *Resolver) observe(res Result) {
	if !res.Success {
		level := slog.LevelWarn
		if errors.Is(res.Err, domain.ErrStaleState) {
			level = slog.LevelInfo
		}
		slog.Log(context.Background(), level, "resolver: attempt failed", "wager", res.WagerID, "kind", res.Kind, "err", res.Err)
	}
	if r.metrics != nil {
		r.metrics.ResolutionAttempted(res.Kind, res.Success)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
