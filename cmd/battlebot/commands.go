package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/battlebot/config"
	"github.com/alejandrodnm/battlebot/internal/adapters/notify"
	"github.com/alejandrodnm/battlebot/internal/application/resolver"
	"github.com/alejandrodnm/battlebot/internal/application/scheduler"
	"github.com/alejandrodnm/battlebot/internal/application/strategy"
)

const liveAbortDelay = 5 * time.Second

func runStart(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	mode := fs.String("mode", strategy.ModeResolver, "strategy: resolver|passive|aggressive")
	dryRun := fs.Bool("dry-run", false, "build transactions but never submit them")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if err := cfg.Validate(!*dryRun); err != nil {
		return err
	}
	a, err := newApp(cfg, *dryRun)
	if err != nil {
		return err
	}
	defer a.Close()

	strat, err := a.strategy(*mode)
	if err != nil {
		return err
	}

	slog.Info("battlebot starting",
		"account", cfg.Account.Name,
		"strategy", strat.Name(),
		"dry_run", *dryRun,
		"endpoint", a.client.CurrentEndpoint(),
		"price_interval", cfg.PriceInterval(),
		"strategy_interval", cfg.StrategyInterval(),
	)

	if !*dryRun && *mode != strategy.ModeResolver {
		fmt.Printf("\n  LIVE MODE: real %s will be staked by account %s\n", cfg.Chain.StakeSymbol, cfg.Account.Name)
		fmt.Printf("  Press Ctrl+C within %s to abort...\n\n", liveAbortDelay)
		t := time.NewTimer(liveAbortDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			slog.Info("battlebot: aborted by user")
			return nil
		}
	}

	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, a.metrics.Handler())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	recordPrice := func(ctx context.Context) error {
		_, err := a.market.RecordPrice(ctx)
		return err
	}

	sched := scheduler.New(ctx)
	if err := sched.Every("price", cfg.PriceInterval(), recordPrice); err != nil {
		return err
	}
	if err := sched.Every("strategy", cfg.StrategyInterval(), strat.Tick); err != nil {
		return err
	}

	sched.RunOnce("price", recordPrice)
	sched.RunOnce("strategy", strat.Tick)
	sched.Start()

	<-ctx.Done()
	slog.Info("battlebot: shutting down")
	sched.Stop()
	slog.Info("battlebot stopped cleanly")
	return nil
}

func serveMetrics(addr string, h http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics: server failed", "err", err, "addr", addr)
		}
	}()
	slog.Info("metrics: serving", "addr", addr)
	return srv
}

func runResolve(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "build transactions but never submit them")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if err := cfg.Validate(!*dryRun); err != nil {
		return err
	}
	a, err := newApp(cfg, *dryRun)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.resolver.Sweep(ctx)
	if err != nil {
		return err
	}
	var lines []notify.BatchLine
	for _, r := range append(summary.Resolved, summary.Expired...) {
		lines = append(lines, batchLine(r))
	}
	a.console.PrintBatch(lines)
	return nil
}

func batchLine(r resolver.Result) notify.BatchLine {
	l := notify.BatchLine{WagerID: r.WagerID, Kind: r.Kind, OK: r.Success}
	switch {
	case r.Err != nil:
		l.Detail = r.Err.Error()
	case r.Kind == resolver.KindResolve:
		l.Detail = fmt.Sprintf("tx %s reward %.4f", shortID(r.TxID), r.Reward)
	default:
		l.Detail = "tx " + shortID(r.TxID)
	}
	return l
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func runStatus(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(false); err != nil {
		return err
	}
	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	balance, err := a.battles.Balance(ctx)
	if err != nil {
		return err
	}
	paused, err := a.battles.Paused(ctx)
	if err != nil {
		return err
	}
	set, err := a.wagers.Snapshot(ctx)
	if err != nil {
		return err
	}
	today, err := a.ledger.Today(ctx)
	if err != nil {
		return err
	}
	total, err := a.ledger.Total(ctx)
	if err != nil {
		return err
	}
	buckets, err := a.ledger.ConfidenceStats(ctx)
	if err != nil {
		return err
	}

	a.console.PrintStatus(notify.StatusReport{
		Account: cfg.Account.Name,
		Balance: balance,
		Paused:  paused,
		Today:   today,
		Total:   total,
		Buckets: buckets,
		Ours:    set.Ours(),
		Now:     set.Now,
	})
	return nil
}

func runHistory(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "number of decisions to show")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *limit <= 0 {
		return fmt.Errorf("history: --limit must be positive")
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}
	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	decisions, err := a.store.RecentDecisions(ctx, *limit)
	if err != nil {
		return err
	}
	a.console.PrintHistory(decisions)
	return nil
}

func runPrice(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(false); err != nil {
		return err
	}
	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.oracle.Price(ctx, cfg.Chain.FeedID)
	if err != nil {
		return err
	}
	a.console.PrintPrice(p)
	return nil
}

func runChallenges(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(false); err != nil {
		return err
	}
	a, err := newApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	set, err := a.wagers.Snapshot(ctx)
	if err != nil {
		return err
	}
	a.console.PrintChallenges(set)
	return nil
}
