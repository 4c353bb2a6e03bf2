package antelope_test

import (
	"context"
	"testing"

	eos "github.com/eoscanada/eos-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/battlebot/internal/adapters/antelope"
	"github.com/alejandrodnm/battlebot/internal/domain"
)

const battleRows = `[
  {"id":"12","creator":"alice","opponent":"battlebot1","stake":"100.0000 WAX","direction":1,"oracle_feed":4,
   "duration":3600,"start_price":"6500000000000","end_price":0,"created_at":1760000000,"started_at":1760000100,
   "expires_at":1760086400,"status":1,"winner":""},
  {"id":11,"creator":"battlebot1","opponent":"","stake":"5.0000 WAX","direction":2,"oracle_feed":4,
   "duration":600,"start_price":0,"end_price":0,"created_at":1759990000,"started_at":0,
   "expires_at":1760076400,"status":0,"winner":""},
  {"id":10,"creator":"bob","opponent":"carol","stake":"1.0000 WAX","direction":9,"oracle_feed":4,
   "duration":600,"start_price":0,"end_price":0,"created_at":1759980000,"started_at":0,
   "expires_at":1760066400,"status":0,"winner":""}
]`

type fakeBalances struct {
	assets []eos.Asset
}

func (f fakeBalances) CurrencyBalance(context.Context, string, string, string) ([]eos.Asset, error) {
	return f.assets, nil
}

func battleTable(tables *fakeTables, balances antelope.BalanceReader) *antelope.BattleTable {
	return antelope.NewBattleTable(tables, balances, antelope.BattleTableConfig{
		Account:       "battlebot1",
		Contract:      "battles",
		TokenContract: "eosio.token",
		Symbol:        "WAX",
	})
}

func TestBattleTable_FetchWagers(t *testing.T) {
	tables := &fakeTables{rows: map[string]string{"battles": battleRows}}
	bt := battleTable(tables, nil)

	wagers, err := bt.FetchWagers(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, wagers, 2, "row with unknown direction is skipped")

	w := wagers[0]
	assert.Equal(t, uint64(12), w.ID)
	assert.Equal(t, int64(1_000_000), w.Stake)
	assert.Equal(t, domain.DirectionUp, w.Direction)
	assert.Equal(t, domain.StatusActive, w.Status)
	assert.Equal(t, int64(6_500_000_000_000), w.StartPrice)
	assert.Equal(t, domain.RoleOpponent, w.OurRole)
	assert.Equal(t, domain.RoleCreator, wagers[1].OurRole)

	require.Len(t, tables.queries, 1)
	assert.True(t, tables.queries[0].Reverse)
	assert.Equal(t, uint32(50), tables.queries[0].Limit)
}

func TestBattleTable_FetchWagerNotFound(t *testing.T) {
	tables := &fakeTables{rows: map[string]string{"battles": `[]`}}
	_, err := battleTable(tables, nil).FetchWager(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrWagerNotFound)
}

func TestBattleTable_Balance(t *testing.T) {
	bt := battleTable(&fakeTables{}, fakeBalances{assets: []eos.Asset{
		{Amount: 1_234_567, Symbol: eos.Symbol{Precision: 4, Symbol: "WAX"}},
	}})
	bal, err := bt.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1_234_567), bal)

	empty := battleTable(&fakeTables{}, fakeBalances{})
	bal, err = empty.Balance(context.Background())
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestBattleTable_Paused(t *testing.T) {
	cases := map[string]bool{
		`[]`:                 false,
		`[{"paused":true}]`:  true,
		`[{"paused":1}]`:     true,
		`[{"paused":0}]`:     false,
		`[{"paused":false}]`: false,
	}
	for rows, want := range cases {
		tables := &fakeTables{rows: map[string]string{"config": rows}}
		got, err := battleTable(tables, nil).Paused(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, got, rows)
	}
}
