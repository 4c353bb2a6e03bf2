package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/battlebot/internal/domain"
)

// Params are the per-policy thresholds and bounds.
type Params struct {
	CreateThreshold float64 // minimum prediction confidence to create
	AcceptThreshold float64 // minimum judgment confidence to accept
	MinDuration     int64   // seconds, created wagers
	MaxDuration     int64
	MinStakePct     float64
	MaxStakePct     float64
	Cooldown        time.Duration // between creations

	// Active only: wagers outside these bounds are skipped before evaluation.
	AcceptMinDuration int64
	AcceptMaxDuration int64
	AcceptMaxStake    int64 // base units, 0 falls back to Risk.MaxStake

	// Conservative only: skip wagers whose price already moved more than this
	// percent in the creator's favour since creation.
	DriftTolerancePct float64
}

// DefaultConservative returns the passive policy.
func DefaultConservative() Params {
	return Params{
		CreateThreshold:   75,
		AcceptThreshold:   80,
		MinDuration:       3600,
		MaxDuration:       24 * 3600,
		MinStakePct:       1,
		MaxStakePct:       5,
		Cooldown:          2 * time.Hour,
		DriftTolerancePct: 0.5,
	}
}

// DefaultActive returns the aggressive policy.
func DefaultActive() Params {
	return Params{
		CreateThreshold:   65,
		AcceptThreshold:   65,
		MinDuration:       900,
		MaxDuration:       12 * 3600,
		MinStakePct:       2,
		MaxStakePct:       10,
		Cooldown:          30 * time.Minute,
		AcceptMinDuration: 900,
		AcceptMaxDuration: 24 * 3600,
	}
}

// prefilter rejects a wager before the accept evaluation. It returns a reason
// when the wager is skipped.
type prefilter func(ctx context.Context, mc domain.MarketContext, w domain.Wager) (string, error)

// trader is the shared create/accept loop of the trading policies.
type trader struct {
	name   string
	deps   Deps
	risk   Risk
	params Params
	feedID uint64
	filter prefilter

	mu         sync.Mutex
	lastCreate time.Time
	loaded     bool

	now func() time.Time
}

// Conservative trades rarely, with high thresholds and a price drift filter.
type Conservative struct{ *trader }

// Active trades more often and pre-filters by duration and stake.
type Active struct{ *trader }

func newConservative(deps Deps, s Settings) *Conservative {
	t := &trader{name: "conservative", deps: deps, risk: s.Risk, params: s.Conservative, feedID: s.FeedID, now: time.Now}
	t.filter = t.driftFilter
	return &Conservative{t}
}

func newActive(deps Deps, s Settings) *Active {
	t := &trader{name: "active", deps: deps, risk: s.Risk, params: s.Active, feedID: s.FeedID, now: time.Now}
	if t.params.AcceptMaxStake == 0 {
		t.params.AcceptMaxStake = s.Risk.MaxStake
	}
	t.filter = t.boundsFilter
	return &Active{t}
}

func (t *trader) Name() string { return t.name }

// WithClock replaces the clock. Used by tests.
func (t *trader) WithClock(now func() time.Time) { t.now = now }

// tick holds the state of one tick.
type tick struct {
	log     *slog.Logger
	set     domain.WagerSet
	mc      domain.MarketContext
	inPlay  int
	balance *int64
}

// Tick resolves and expires first, then runs the guards and both gates.
func (t *trader) Tick(ctx context.Context) error {
	err := t.tick(ctx)
	if t.deps.Metrics != nil {
		t.deps.Metrics.TickCompleted(t.name, err == nil)
	}
	return err
}

func (t *trader) tick(ctx context.Context) error {
	log := newTickLogger(t.name)

	if err := sweep(ctx, t.deps.Resolver, log); err != nil {
		return fmt.Errorf("strategy.Tick: %w", err)
	}

	paused, err := t.deps.Account.Paused(ctx)
	if err != nil {
		return fmt.Errorf("strategy.Tick: paused flag: %w", err)
	}
	if paused {
		log.Info("strategy: contract paused, skipping tick")
		return nil
	}

	today, err := t.deps.Ledger.Today(ctx)
	if err != nil {
		return fmt.Errorf("strategy.Tick: daily performance: %w", err)
	}
	if t.risk.MaxDailyLoss > 0 && today.NetLoss() >= t.risk.MaxDailyLoss {
		log.Warn("strategy: daily loss limit reached", "net_loss", today.NetLoss(), "limit", t.risk.MaxDailyLoss)
		return nil
	}

	mc, err := t.deps.Context.Build(ctx)
	if err != nil {
		return fmt.Errorf("strategy.Tick: market context: %w", err)
	}
	set, err := t.deps.Wagers.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("strategy.Tick: snapshot: %w", err)
	}

	run := &tick{log: log, set: set, mc: mc, inPlay: set.OursInPlay()}
	t.maybeCreate(ctx, run)
	t.evaluateAccepts(ctx, run)
	return nil
}

func (t *trader) balance(ctx context.Context, run *tick) (int64, error) {
	if run.balance != nil {
		return *run.balance, nil
	}
	b, err := t.deps.Account.Balance(ctx)
	if err != nil {
		return 0, err
	}
	run.balance = &b
	return b, nil
}

func (t *trader) cooldownLeft(ctx context.Context) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.loaded {
		last, err := t.deps.Decisions.LastDecisionAt(ctx, domain.ActionCreate)
		if err != nil {
			slog.Warn("strategy: last creation unknown", "err", err)
		} else {
			t.lastCreate = last
			t.loaded = true
		}
	}
	if t.lastCreate.IsZero() {
		return 0
	}
	return t.params.Cooldown - t.now().Sub(t.lastCreate)
}

func (t *trader) markCreated(at time.Time) {
	t.mu.Lock()
	t.lastCreate = at
	t.loaded = true
	t.mu.Unlock()
}

func (t *trader) maybeCreate(ctx context.Context, run *tick) {
	if left := t.cooldownLeft(ctx); left > 0 {
		run.log.Debug("strategy: creation cooling down", "left", left.Round(time.Second))
		return
	}
	if t.risk.MaxConcurrent > 0 && run.inPlay >= t.risk.MaxConcurrent {
		run.log.Debug("strategy: concurrency cap reached", "in_play", run.inPlay)
		return
	}

	pred, err := t.deps.Predictor.Predict(ctx, run.mc)
	if err != nil {
		run.log.Warn("strategy: prediction failed", "err", err)
		logDecision(ctx, t.deps, run.log, domain.Decision{
			Action:          domain.ActionSkip,
			Reasoning:       fmt.Sprintf("prediction failed: %v", err),
			PriceAtDecision: run.mc.CurrentPrice,
			CreatedAt:       t.now(),
		})
		return
	}
	logDecision(ctx, t.deps, run.log, domain.Decision{
		Action:          domain.ActionAnalyzeCreate,
		Direction:       pred.Direction,
		Confidence:      domain.Float(pred.Confidence),
		Reasoning:       pred.Reasoning,
		PriceAtDecision: run.mc.CurrentPrice,
		CreatedAt:       t.now(),
	})

	skip := func(reason string) {
		run.log.Info("strategy: creation skipped", "reason", reason)
		logDecision(ctx, t.deps, run.log, domain.Decision{
			Action:          domain.ActionSkip,
			Direction:       pred.Direction,
			Confidence:      domain.Float(pred.Confidence),
			Reasoning:       reason,
			PriceAtDecision: run.mc.CurrentPrice,
			CreatedAt:       t.now(),
		})
	}

	if pred.Direction == domain.DirectionNeutral {
		skip("neutral prediction")
		return
	}
	if pred.Confidence < t.params.CreateThreshold {
		skip(fmt.Sprintf("confidence %.1f below %.1f", pred.Confidence, t.params.CreateThreshold))
		return
	}

	duration := int64(clamp(float64(pred.DurationSeconds), float64(t.params.MinDuration), float64(t.params.MaxDuration)))
	pct := clamp(pred.StakePercent, t.params.MinStakePct, t.params.MaxStakePct)

	balance, err := t.balance(ctx, run)
	if err != nil {
		run.log.Warn("strategy: balance unavailable", "err", err)
		skip(fmt.Sprintf("balance unavailable: %v", err))
		return
	}
	stake, err := SizeStake(balance, pct, t.risk)
	if errors.Is(err, domain.ErrInsufficientFunds) {
		skip("insufficient funds")
		return
	}
	if err != nil {
		run.log.Warn("strategy: stake sizing failed", "err", err)
		skip(fmt.Sprintf("stake sizing failed: %v", err))
		return
	}

	receipt, err := t.deps.Executor.CreateWager(ctx, domain.CreateRequest{
		Direction:  pred.Direction,
		Stake:      stake,
		Duration:   duration,
		OracleFeed: t.feedID,
	})
	if err != nil {
		run.log.Error("strategy: create failed", "err", err)
		skip(withReasoning(fmt.Sprintf("submission failed: %v", err), pred.Reasoning))
		return
	}
	created := t.now()
	t.markCreated(created)
	run.inPlay++
	*run.balance -= stake

	logDecision(ctx, t.deps, run.log, domain.Decision{
		Action:          domain.ActionCreate,
		Direction:       pred.Direction,
		Confidence:      domain.Float(pred.Confidence),
		Reasoning:       pred.Reasoning,
		PriceAtDecision: run.mc.CurrentPrice,
		CreatedAt:       created,
	})
	run.log.Info("strategy: wager created",
		"direction", pred.Direction,
		"confidence", pred.Confidence,
		"stake", stake,
		"duration", duration,
		"tx", receipt.TransactionID,
	)
}

func (t *trader) evaluateAccepts(ctx context.Context, run *tick) {
	for _, w := range run.set.Acceptable() {
		if ctx.Err() != nil {
			return
		}
		if t.risk.MaxConcurrent > 0 && run.inPlay >= t.risk.MaxConcurrent {
			run.log.Debug("strategy: concurrency cap reached", "in_play", run.inPlay)
			return
		}
		t.evaluateOne(ctx, run, w)
	}
}

func (t *trader) evaluateOne(ctx context.Context, run *tick, w domain.Wager) {
	ourSide := w.Direction.Opposite()
	skip := func(reason string, conf *float64) {
		run.log.Info("strategy: acceptance skipped", "wager", w.ID, "reason", reason)
		logDecision(ctx, t.deps, run.log, domain.Decision{
			ChallengeID:     domain.WagerID(w.ID),
			Action:          domain.ActionSkip,
			Direction:       ourSide,
			Confidence:      conf,
			Reasoning:       reason,
			PriceAtDecision: run.mc.CurrentPrice,
			CreatedAt:       t.now(),
		})
	}

	reason, err := t.filter(ctx, run.mc, w)
	if err != nil {
		run.log.Warn("strategy: prefilter failed", "wager", w.ID, "err", err)
		skip(fmt.Sprintf("prefilter failed: %v", err), nil)
		return
	}
	if reason != "" {
		skip(reason, nil)
		return
	}

	balance, err := t.balance(ctx, run)
	if err != nil {
		run.log.Warn("strategy: balance unavailable", "err", err)
		skip(fmt.Sprintf("balance unavailable: %v", err), nil)
		return
	}
	if balance-t.risk.MinReserve < w.Stake {
		skip("insufficient funds", nil)
		return
	}

	j, err := t.deps.Predictor.EvaluateAccept(ctx, run.mc, w)
	if err != nil {
		run.log.Warn("strategy: accept evaluation failed", "wager", w.ID, "err", err)
		skip(fmt.Sprintf("evaluation failed: %v", err), nil)
		return
	}
	if !j.Accept || j.Confidence < t.params.AcceptThreshold {
		reason := j.Reasoning
		if reason == "" {
			reason = fmt.Sprintf("confidence %.1f below %.1f", j.Confidence, t.params.AcceptThreshold)
		}
		skip(reason, domain.Float(j.Confidence))
		return
	}

	receipt, err := t.deps.Executor.AcceptWager(ctx, w)
	if err != nil {
		run.log.Error("strategy: accept failed", "wager", w.ID, "err", err)
		skip(withReasoning(fmt.Sprintf("submission failed: %v", err), j.Reasoning), domain.Float(j.Confidence))
		return
	}
	run.inPlay++
	*run.balance -= w.Stake

	logDecision(ctx, t.deps, run.log, domain.Decision{
		ChallengeID:     domain.WagerID(w.ID),
		Action:          domain.ActionAccept,
		Direction:       ourSide,
		Confidence:      domain.Float(j.Confidence),
		Reasoning:       j.Reasoning,
		PriceAtDecision: run.mc.CurrentPrice,
		CreatedAt:       t.now(),
	})
	run.log.Info("strategy: wager accepted", "wager", w.ID, "side", ourSide, "confidence", j.Confidence, "tx", receipt.TransactionID)
}

// withReasoning appends the model's reasoning to a failure reason.
func withReasoning(reason, reasoning string) string {
	if reasoning == "" {
		return reason
	}
	return reason + " | " + reasoning
}

// boundsFilter skips wagers outside the accepted duration window or above the
// stake cap.
func (t *trader) boundsFilter(_ context.Context, _ domain.MarketContext, w domain.Wager) (string, error) {
	p := t.params
	if p.AcceptMinDuration > 0 && w.Duration < p.AcceptMinDuration {
		return fmt.Sprintf("duration %ds below %ds", w.Duration, p.AcceptMinDuration), nil
	}
	if p.AcceptMaxDuration > 0 && w.Duration > p.AcceptMaxDuration {
		return fmt.Sprintf("duration %ds above %ds", w.Duration, p.AcceptMaxDuration), nil
	}
	if p.AcceptMaxStake > 0 && w.Stake > p.AcceptMaxStake {
		return fmt.Sprintf("stake %d above %d", w.Stake, p.AcceptMaxStake), nil
	}
	return "", nil
}

// driftFilter skips wagers whose price already moved in the creator's favour
// by more than the tolerance since the wager was created. Without a recorded
// price at creation time the wager passes.
func (t *trader) driftFilter(ctx context.Context, mc domain.MarketContext, w domain.Wager) (string, error) {
	if t.params.DriftTolerancePct <= 0 || t.deps.Prices == nil {
		return "", nil
	}
	then, ok, err := t.deps.Prices.PriceAtOrBefore(ctx, time.Unix(w.CreatedAt, 0))
	if err != nil {
		return "", err
	}
	if !ok || then.Price <= 0 {
		return "", nil
	}
	drift := (mc.CurrentPrice - then.Price) / then.Price * 100
	if w.Direction == domain.DirectionDown {
		drift = -drift
	}
	if drift > t.params.DriftTolerancePct {
		return fmt.Sprintf("price moved %.2f%% toward the creator", drift), nil
	}
	return "", nil
}
