package main

import (
	"fmt"
	"log/slog"
	"time"

	eos "github.com/eoscanada/eos-go"

	"github.com/alejandrodnm/battlebot/config"
	"github.com/alejandrodnm/battlebot/internal/adapters/antelope"
	"github.com/alejandrodnm/battlebot/internal/adapters/marketdata"
	"github.com/alejandrodnm/battlebot/internal/adapters/metrics"
	"github.com/alejandrodnm/battlebot/internal/adapters/notify"
	"github.com/alejandrodnm/battlebot/internal/adapters/predictor"
	"github.com/alejandrodnm/battlebot/internal/adapters/storage"
	"github.com/alejandrodnm/battlebot/internal/application/marketctx"
	"github.com/alejandrodnm/battlebot/internal/application/performance"
	"github.com/alejandrodnm/battlebot/internal/application/resolver"
	"github.com/alejandrodnm/battlebot/internal/application/strategy"
	"github.com/alejandrodnm/battlebot/internal/application/wagers"
	"github.com/alejandrodnm/battlebot/internal/ports"
)

// app holds every wired component. Commands use the parts they need.
type app struct {
	cfg      *config.Config
	store    *storage.SQLiteStorage
	client   *antelope.FailoverClient
	battles  *antelope.BattleTable
	oracle   *antelope.OracleReader
	exec     *antelope.Executor
	metrics  *metrics.Recorder
	ledger   *performance.Ledger
	wagers   *wagers.Engine
	resolver *resolver.Resolver
	market   *marketctx.Builder
	console  *notify.Console
}

// newApp wires the ledger adapters, storage and application services.
// Without dryRun a private key must be configured; it is only loaded then.
func newApp(cfg *config.Config, dryRun bool) (*app, error) {
	rec := metrics.New()

	opts := []antelope.Option{antelope.WithFailoverHook(rec.Failover)}
	if !dryRun {
		signer, err := antelope.NewKeySigner(cfg.Account.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("newApp: signer: %w", err)
		}
		opts = append(opts, antelope.WithSigner(signer))
	}
	client, err := antelope.NewFailoverClient(cfg.Chain.Endpoints, opts...)
	if err != nil {
		return nil, fmt.Errorf("newApp: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("newApp: %w", err)
	}

	battles := antelope.NewBattleTable(client, client, antelope.BattleTableConfig{
		Account:       cfg.Account.Name,
		Contract:      cfg.Chain.Contract,
		Table:         cfg.Chain.BattlesTable,
		ConfigTable:   cfg.Chain.ConfigTable,
		TokenContract: cfg.Chain.TokenContract,
		Symbol:        cfg.Chain.StakeSymbol,
	})
	oracle := antelope.NewOracleReader(client, cfg.Chain.OracleContract, cfg.Chain.OracleTable)
	exec := antelope.NewExecutor(client, antelope.ExecutorConfig{
		Account:       cfg.Account.Name,
		Permission:    cfg.Account.Permission,
		Contract:      cfg.Chain.Contract,
		TokenContract: cfg.Chain.TokenContract,
		Symbol:        eos.Symbol{Precision: cfg.Chain.StakePrecision, Symbol: cfg.Chain.StakeSymbol},
		Expire:        cfg.TxExpiration(),
		DryRun:        dryRun,
	})

	ledger := performance.New(store, rec)
	engine := wagers.New(battles, store, ledger, wagers.Config{
		Account:        cfg.Account.Name,
		FetchLimit:     cfg.Chain.FetchLimit,
		StakePrecision: cfg.Chain.StakePrecision,
	})

	rcfg := resolver.DefaultConfig(cfg.Account.Name, cfg.Chain.StakePrecision)
	rcfg.Pacing = cfg.PacingDelay()
	res := resolver.New(engine, oracle, exec, store, ledger, rec, rcfg)

	var indicators ports.IndicatorProvider
	if cfg.MarketData.Enabled {
		indicators = marketdata.NewClient(marketdata.Config{
			BaseURL:    cfg.MarketData.BaseURL,
			Symbol:     cfg.MarketData.Symbol,
			Interval:   cfg.MarketData.Interval,
			Limit:      cfg.MarketData.Limit,
			CacheTTL:   cfg.CacheTTL(),
			RatePerSec: cfg.MarketData.RatePerSec,
		})
	}
	market := marketctx.New(oracle, store, ledger, indicators, rec, marketctx.Config{FeedID: cfg.Chain.FeedID})

	slog.Debug("battlebot: wired",
		"account", cfg.Account.Name,
		"endpoints", len(cfg.Chain.Endpoints),
		"dry_run", dryRun,
		"market_data", cfg.MarketData.Enabled,
		"db", cfg.Storage.DSN,
	)

	return &app{
		cfg:      cfg,
		store:    store,
		client:   client,
		battles:  battles,
		oracle:   oracle,
		exec:     exec,
		metrics:  rec,
		ledger:   ledger,
		wagers:   engine,
		resolver: res,
		market:   market,
		console:  notify.NewConsole(cfg.Chain.StakeSymbol, cfg.Chain.StakePrecision),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// strategy builds the decision policy for mode. The prediction collaborator
// is only created for the trading modes.
func (a *app) strategy(mode string) (strategy.Strategy, error) {
	deps := strategy.Deps{
		Resolver:  a.resolver,
		Wagers:    a.wagers,
		Context:   a.market,
		Executor:  a.exec,
		Account:   a.battles,
		Decisions: a.store,
		Prices:    a.store,
		Ledger:    a.ledger,
		Metrics:   a.metrics,
	}
	if mode != strategy.ModeResolver {
		p, err := predictor.NewFromConfig(predictor.Config{
			Provider: a.cfg.AI.Provider,
			APIKey:   a.cfg.AI.APIKey,
			Model:    a.cfg.AI.Model,
			BaseURL:  a.cfg.AI.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		deps.Predictor = p
	}
	return strategy.New(mode, deps, settings(a.cfg))
}

func settings(cfg *config.Config) strategy.Settings {
	return strategy.Settings{
		FeedID: cfg.Chain.FeedID,
		Risk: strategy.Risk{
			MaxStakePct:   cfg.Risk.MaxStakePct,
			MaxConcurrent: cfg.Risk.MaxConcurrent,
			MinReserve:    cfg.Units(cfg.Risk.MinReserve),
			MaxDailyLoss:  cfg.Risk.MaxDailyLoss,
			MinStake:      cfg.Units(cfg.Risk.MinStake),
			MaxStake:      cfg.Units(cfg.Risk.MaxStake),
			LotSize:       cfg.Units(cfg.Risk.LotSize),
		},
		Conservative: policy(cfg, cfg.Strategy.Conservative, strategy.DefaultConservative()),
		Active:       policy(cfg, cfg.Strategy.Active, strategy.DefaultActive()),
	}
}

// policy overlays the configured non-zero fields on the policy defaults.
func policy(cfg *config.Config, p config.PolicyConfig, def strategy.Params) strategy.Params {
	out := def
	setF := func(dst *float64, v float64) {
		if v > 0 {
			*dst = v
		}
	}
	setI := func(dst *int64, v int64) {
		if v > 0 {
			*dst = v
		}
	}
	setF(&out.CreateThreshold, p.CreateThreshold)
	setF(&out.AcceptThreshold, p.AcceptThreshold)
	setI(&out.MinDuration, p.MinDurationSeconds)
	setI(&out.MaxDuration, p.MaxDurationSeconds)
	setF(&out.MinStakePct, p.MinStakePct)
	setF(&out.MaxStakePct, p.MaxStakePct)
	setI(&out.AcceptMinDuration, p.AcceptMinDurationSeconds)
	setI(&out.AcceptMaxDuration, p.AcceptMaxDurationSeconds)
	setI(&out.AcceptMaxStake, cfg.Units(p.AcceptMaxStake))
	setF(&out.DriftTolerancePct, p.DriftTolerancePct)
	if p.CooldownMinutes > 0 {
		out.Cooldown = time.Duration(p.CooldownMinutes) * time.Minute
	}
	return out
}
