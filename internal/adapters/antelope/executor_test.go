package antelope_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	eos "github.com/eoscanada/eos-go"
	"github.com/eoscanada/eos-go/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/battlebot/internal/adapters/antelope"
	"github.com/alejandrodnm/battlebot/internal/domain"
)

type fakeTransactor struct {
	calls   [][]*eos.Action
	receipt domain.Receipt
	err     error
}

func (f *fakeTransactor) Transact(_ context.Context, actions []*eos.Action, _ time.Duration) (domain.Receipt, error) {
	f.calls = append(f.calls, actions)
	return f.receipt, f.err
}

func execConfig(dryRun bool) antelope.ExecutorConfig {
	return antelope.ExecutorConfig{
		Account:       "battlebot1",
		Permission:    "active",
		Contract:      "battles",
		TokenContract: "eosio.token",
		Symbol:        eos.Symbol{Precision: 4, Symbol: "WAX"},
		DryRun:        dryRun,
	}
}

func TestExecutor_CreateBundlesTransferThenCreate(t *testing.T) {
	tx := &fakeTransactor{receipt: domain.Receipt{TransactionID: "abc", BlockNum: 7}}
	ex := antelope.NewExecutor(tx, execConfig(false))

	r, err := ex.CreateWager(context.Background(), domain.CreateRequest{
		Direction: domain.DirectionUp, Stake: 1_000_000, Duration: 3600, OracleFeed: domain.FeedBTCUSD,
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", r.TransactionID)

	require.Len(t, tx.calls, 1)
	actions := tx.calls[0]
	require.Len(t, actions, 2)

	assert.Equal(t, eos.AN("eosio.token"), actions[0].Account)
	assert.Equal(t, eos.ActN("transfer"), actions[0].Name)
	tr, ok := actions[0].ActionData.Data.(token.Transfer)
	require.True(t, ok)
	assert.Equal(t, eos.AN("battles"), tr.To)
	assert.Equal(t, eos.Int64(1_000_000), tr.Quantity.Amount)
	assert.Equal(t, "100.0000 WAX", tr.Quantity.String())

	assert.Equal(t, eos.AN("battles"), actions[1].Account)
	assert.Equal(t, eos.ActN("create"), actions[1].Name)

	for _, a := range actions {
		require.Len(t, a.Authorization, 1)
		assert.Equal(t, eos.AN("battlebot1"), a.Authorization[0].Actor)
		assert.Equal(t, eos.PN("active"), a.Authorization[0].Permission)
	}
}

func TestExecutor_AcceptBundlesTransferThenAccept(t *testing.T) {
	tx := &fakeTransactor{}
	ex := antelope.NewExecutor(tx, execConfig(false))

	_, err := ex.AcceptWager(context.Background(), domain.Wager{ID: 12, Stake: 50_000})
	require.NoError(t, err)
	require.Len(t, tx.calls[0], 2)
	assert.Equal(t, eos.ActN("transfer"), tx.calls[0][0].Name)
	assert.Equal(t, eos.ActN("accept"), tx.calls[0][1].Name)
}

func TestExecutor_SingleActionOperations(t *testing.T) {
	tx := &fakeTransactor{}
	ex := antelope.NewExecutor(tx, execConfig(false))
	ctx := context.Background()

	_, err := ex.CancelWager(ctx, 1)
	require.NoError(t, err)
	_, err = ex.ExpireWager(ctx, 2)
	require.NoError(t, err)
	_, err = ex.ResolveWager(ctx, 3, 6_500_000_000_000)
	require.NoError(t, err)

	require.Len(t, tx.calls, 3)
	for i, name := range []string{"cancel", "expire", "resolve"} {
		require.Len(t, tx.calls[i], 1)
		assert.Equal(t, eos.ActN(name), tx.calls[i][0].Name)
	}
}

func TestExecutor_DryRunNeverSubmits(t *testing.T) {
	tx := &fakeTransactor{err: errors.New("must not be called")}
	ex := antelope.NewExecutor(tx, execConfig(true))
	assert.True(t, ex.DryRun())

	r, err := ex.ResolveWager(context.Background(), 3, 1)
	require.NoError(t, err)
	assert.Empty(t, tx.calls)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}$`), r.TransactionID)
	assert.False(t, r.SubmittedAt.IsZero())
}

func TestExecutor_SubmissionErrorPropagates(t *testing.T) {
	boom := &domain.TransportError{Endpoint: "http://node", Attempts: 3, Err: errors.New("down")}
	tx := &fakeTransactor{err: boom}
	ex := antelope.NewExecutor(tx, execConfig(false))

	_, err := ex.CancelWager(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, tx.calls, 1)
}
