package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/battlebot/config"
)

var errUsage = errors.New("usage")

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(1)
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, cmd, args); err != nil {
		if !errors.Is(err, errUsage) {
			slog.Error("battlebot: "+cmd+" failed", "err", err)
		}
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	switch cmd {
	case "start":
		return runStart(ctx, cfg, args)
	case "status":
		return runStatus(ctx, cfg)
	case "resolve":
		return runResolve(ctx, cfg, args)
	case "history":
		return runHistory(ctx, cfg, args)
	case "price":
		return runPrice(ctx, cfg)
	case "challenges":
		return runChallenges(ctx, cfg)
	}
	fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
	usage()
	return errUsage
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: battlebot [global flags] <command> [flags]

Commands:
  start       run the bot (--mode resolver|passive|aggressive, --dry-run)
  status      balance, performance and wagers in play
  resolve     resolve matured wagers and clear expired ones once (--dry-run)
  history     recent decisions (--limit N)
  price       current oracle price
  challenges  wagers on the ledger with their classification

Global flags:
`)
	flag.PrintDefaults()
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
