package resolver_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/battlebot/internal/application/resolver"
	"github.com/alejandrodnm/battlebot/internal/domain"
)

const account = "battlebot1"

var now = time.Unix(1_760_100_000, 0).UTC()

type fakeSync struct {
	rows map[uint64]domain.Wager
	err  error
}

func (f *fakeSync) Snapshot(context.Context) (domain.WagerSet, error) {
	if f.err != nil {
		return domain.WagerSet{}, f.err
	}
	set := domain.WagerSet{Account: account, Now: now}
	for id := uint64(1); id <= 100; id++ {
		if w, ok := f.rows[id]; ok {
			set.Wagers = append(set.Wagers, w)
		}
	}
	return set, nil
}

func (f *fakeSync) Refresh(_ context.Context, id uint64) (domain.Wager, error) {
	w, ok := f.rows[id]
	if !ok {
		return domain.Wager{}, domain.ErrWagerNotFound
	}
	return w, nil
}

type fakeOracle struct {
	price float64
	err   error
}

func (f fakeOracle) Price(_ context.Context, feed uint64) (domain.OraclePrice, error) {
	return domain.OraclePrice{FeedID: feed, Price: f.price, Timestamp: now}, f.err
}

type call struct {
	op       string
	id       uint64
	endPrice int64
}

type fakeExec struct {
	mu    sync.Mutex
	calls []call
	fail  map[uint64]error
}

func (f *fakeExec) submit(op string, id uint64, price int64) (domain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op, id, price})
	if err := f.fail[id]; err != nil {
		return domain.Receipt{}, err
	}
	return domain.Receipt{TransactionID: fmt.Sprintf("tx-%s-%d", op, id)}, nil
}

func (f *fakeExec) CreateWager(context.Context, domain.CreateRequest) (domain.Receipt, error) {
	return f.submit("create", 0, 0)
}

func (f *fakeExec) AcceptWager(_ context.Context, w domain.Wager) (domain.Receipt, error) {
	return f.submit("accept", w.ID, 0)
}

func (f *fakeExec) CancelWager(_ context.Context, id uint64) (domain.Receipt, error) {
	return f.submit("cancel", id, 0)
}

func (f *fakeExec) ExpireWager(_ context.Context, id uint64) (domain.Receipt, error) {
	return f.submit("expire", id, 0)
}

func (f *fakeExec) ResolveWager(_ context.Context, id uint64, endPrice int64) (domain.Receipt, error) {
	return f.submit("resolve", id, endPrice)
}

func (f *fakeExec) DryRun() bool { return false }

type fakeDecisions struct {
	logged []domain.Decision
}

func (f *fakeDecisions) AppendDecision(_ context.Context, d domain.Decision) error {
	f.logged = append(f.logged, d)
	return nil
}

func (f *fakeDecisions) RecentDecisions(context.Context, int) ([]domain.Decision, error) {
	return f.logged, nil
}

func (f *fakeDecisions) DecisionConfidence(context.Context, domain.Wager) (*float64, error) {
	return nil, nil
}

func (f *fakeDecisions) LastDecisionAt(context.Context, domain.DecisionAction) (time.Time, error) {
	return time.Time{}, nil
}

type fakeEarnings struct {
	total float64
}

func (f *fakeEarnings) RecordResolverEarnings(_ context.Context, amount float64) error {
	f.total += amount
	return nil
}

func matured(id uint64) domain.Wager {
	return domain.Wager{
		ID: id, Creator: "alice", Opponent: "bob", Stake: 1_000_000,
		Direction: domain.DirectionUp, OracleFeed: domain.FeedBTCUSD, Duration: 3600,
		StartPrice: 6_500_000_000_000,
		CreatedAt:  now.Add(-3 * time.Hour).Unix(),
		StartedAt:  now.Add(-2 * time.Hour).Unix(),
		Status:     domain.StatusActive,
	}
}

func expiredOpen(id uint64, creator string) domain.Wager {
	return domain.Wager{
		ID: id, Creator: creator, Stake: 1_000_000, Direction: domain.DirectionDown,
		OracleFeed: domain.FeedBTCUSD, Duration: 3600,
		CreatedAt: now.Add(-25 * time.Hour).Unix(),
		ExpiresAt: now.Add(-time.Hour).Unix(),
		Status:    domain.StatusOpen,
	}
}

type harness struct {
	sync      *fakeSync
	exec      *fakeExec
	decisions *fakeDecisions
	earnings  *fakeEarnings
	sleeps    int
	r         *resolver.Resolver
}

func newHarness(rows ...domain.Wager) *harness {
	h := &harness{
		sync:      &fakeSync{rows: map[uint64]domain.Wager{}},
		exec:      &fakeExec{fail: map[uint64]error{}},
		decisions: &fakeDecisions{},
		earnings:  &fakeEarnings{},
	}
	for _, w := range rows {
		h.sync.rows[w.ID] = w
	}
	h.r = resolver.New(h.sync, fakeOracle{price: 65123.456789}, h.exec, h.decisions, h.earnings, nil,
		resolver.DefaultConfig(account, 4)).
		WithClock(func() time.Time { return now }, func(context.Context, time.Duration) error {
			h.sleeps++
			return nil
		})
	return h
}

func TestResolver_ResolveOneRewardAndDecision(t *testing.T) {
	h := newHarness(matured(1))

	res := h.r.ResolveOne(context.Background(), matured(1))

	require.True(t, res.Success, "err: %v", res.Err)
	assert.Equal(t, resolver.KindResolve, res.Kind)
	assert.Equal(t, "tx-resolve-1", res.TxID)
	assert.InDelta(t, 4.0, res.Reward, 1e-9)
	assert.InDelta(t, 4.0, h.earnings.total, 1e-9)

	require.Len(t, h.exec.calls, 1)
	assert.Equal(t, int64(6_512_345_678_900), h.exec.calls[0].endPrice)

	require.Len(t, h.decisions.logged, 1)
	d := h.decisions.logged[0]
	assert.Equal(t, domain.ActionResolve, d.Action)
	require.NotNil(t, d.ChallengeID)
	assert.Equal(t, uint64(1), *d.ChallengeID)
	assert.InDelta(t, 65123.456789, d.PriceAtDecision, 1e-9)
}

func TestResolver_ResolveOneStaleState(t *testing.T) {
	onLedger := matured(1)
	onLedger.Status = domain.StatusResolved
	h := newHarness(onLedger)

	res := h.r.ResolveOne(context.Background(), matured(1))

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, domain.ErrStaleState)
	assert.Empty(t, h.exec.calls, "no transaction for stale wagers")
	assert.Empty(t, h.decisions.logged)
	assert.Zero(t, h.earnings.total)
}

func TestResolver_ResolveOneNotMatured(t *testing.T) {
	young := matured(1)
	young.StartedAt = now.Add(-time.Minute).Unix()
	h := newHarness(young)

	res := h.r.ResolveOne(context.Background(), matured(1))
	assert.ErrorIs(t, res.Err, domain.ErrStaleState)
	assert.Empty(t, h.exec.calls)
}

func TestResolver_ResolveOneOracleFailure(t *testing.T) {
	h := newHarness(matured(1))
	h.r = resolver.New(h.sync, fakeOracle{err: domain.ErrMissingAggregate}, h.exec, h.decisions, h.earnings, nil,
		resolver.DefaultConfig(account, 4))

	res := h.r.ResolveOne(context.Background(), matured(1))
	assert.ErrorIs(t, res.Err, domain.ErrMissingAggregate)
	assert.True(t, domain.IsOracleDataError(res.Err))
	assert.Empty(t, h.exec.calls)
}

func TestResolver_ResolveAllPacesAndCollectsFailures(t *testing.T) {
	h := newHarness(matured(1), matured(2), matured(3))
	h.exec.fail[2] = errors.New("assertion failure: battle not active")

	results, err := h.r.ResolveAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.ErrorContains(t, results[1].Err, "battle not active")
	assert.True(t, results[2].Success)
	assert.Equal(t, 2, h.sleeps, "pacing between items, none after the last")
	assert.InDelta(t, 8.0, h.earnings.total, 1e-9)
}

func TestResolver_ExpireAllCancelsOwnAndExpiresOthers(t *testing.T) {
	h := newHarness(expiredOpen(5, account), expiredOpen(6, "alice"), matured(7))

	results, err := h.r.ExpireAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, resolver.KindCancel, results[0].Kind)
	assert.Equal(t, resolver.KindExpire, results[1].Kind)
	require.Len(t, h.exec.calls, 2)
	assert.Equal(t, "cancel", h.exec.calls[0].op)
	assert.Equal(t, "expire", h.exec.calls[1].op)
	assert.Zero(t, h.earnings.total, "expiry pays no reward")
	assert.Equal(t, 1, h.sleeps)
}

func TestResolver_SweepSummary(t *testing.T) {
	h := newHarness(matured(1), expiredOpen(2, "alice"))
	h.exec.fail[2] = errors.New("boom")

	s, err := h.r.Sweep(context.Background())
	require.NoError(t, err)
	ok, failed := s.Counts()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)
}

func TestResolver_SnapshotError(t *testing.T) {
	h := newHarness()
	h.sync.err = errors.New("all endpoints down")

	_, err := h.r.Sweep(context.Background())
	assert.Error(t, err)
	_, err = h.r.ResolveAll(context.Background())
	assert.Error(t, err)
}

func TestResolver_CancelledContextStopsBatch(t *testing.T) {
	h := newHarness(matured(1), matured(2))
	h.r.WithClock(func() time.Time { return now }, func(context.Context, time.Duration) error {
		return context.Canceled
	})

	results, err := h.r.ResolveAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
