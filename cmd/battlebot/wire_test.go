package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/battlebot/config"
	"github.com/alejandrodnm/battlebot/internal/application/resolver"
	"github.com/alejandrodnm/battlebot/internal/application/strategy"
)

func TestSettings_OverlaysConfiguredFields(t *testing.T) {
	cfg := &config.Config{}
	cfg.Chain.FeedID = 4
	cfg.Chain.StakePrecision = 4
	cfg.Risk = config.RiskConfig{MaxStakePct: 10, MaxConcurrent: 3, MinReserve: 50, MaxDailyLoss: 200, MinStake: 10, MaxStake: 500, LotSize: 1}
	cfg.Strategy.Active = config.PolicyConfig{AcceptThreshold: 70, CooldownMinutes: 5, AcceptMaxStake: 250}

	s := settings(cfg)

	assert.Equal(t, uint64(4), s.FeedID)
	assert.Equal(t, int64(500_000), s.Risk.MinReserve)
	assert.Equal(t, int64(100_000), s.Risk.MinStake)
	assert.Equal(t, int64(5_000_000), s.Risk.MaxStake)
	assert.Equal(t, int64(10_000), s.Risk.LotSize)
	assert.Equal(t, 200.0, s.Risk.MaxDailyLoss)

	assert.Equal(t, strategy.DefaultConservative(), s.Conservative)

	def := strategy.DefaultActive()
	assert.Equal(t, 70.0, s.Active.AcceptThreshold)
	assert.Equal(t, def.CreateThreshold, s.Active.CreateThreshold)
	assert.Equal(t, 5*time.Minute, s.Active.Cooldown)
	assert.Equal(t, int64(2_500_000), s.Active.AcceptMaxStake)
	assert.Equal(t, def.MaxDuration, s.Active.MaxDuration)
}

func TestBatchLine(t *testing.T) {
	ok := batchLine(resolver.Result{WagerID: 7, Kind: resolver.KindResolve, Success: true, TxID: "0123456789abcdef0123", Reward: 4})
	assert.Equal(t, "tx 0123456789ab reward 4.0000", ok.Detail)
	assert.True(t, ok.OK)

	failed := batchLine(resolver.Result{WagerID: 8, Kind: resolver.KindExpire, Err: errors.New("boom")})
	assert.Equal(t, "boom", failed.Detail)
	assert.False(t, failed.OK)

	cancel := batchLine(resolver.Result{WagerID: 9, Kind: resolver.KindCancel, Success: true, TxID: "abc"})
	assert.Equal(t, "tx abc", cancel.Detail)
}
