package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/alejandrodnm/polystrat/config"
	"github.com/alejandrodnm/polystrat/internal/adapters/dispatch"
	"github.com/alejandrodnm/polystrat/internal/adapters/feed"
	"github.com/alejandrodnm/polystrat/internal/adapters/notify"
	"github.com/alejandrodnm/polystrat/internal/adapters/storage"
	"github.com/alejandrodnm/polystrat/internal/domain"
	"github.com/alejandrodnm/polystrat/internal/engine"
	"github.com/alejandrodnm/polystrat/internal/ports"
	"github.com/alejandrodnm/polystrat/internal/risk"
	"github.com/alejandrodnm/polystrat/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one evaluation tick and exit")
	dryRun := flag.Bool("dry-run", false, "skip signal persistence")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	table := flag.Bool("table", false, "print full tables per tick (default: compact 1-line)")
	flag.Parse()

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

	slog.Info("polystrat starting",
		"config", *configPath,
		"tick", cfg.TickInterval(),
		"dry_run", *dryRun,
		"once", *once,
	)

	provider := feed.NewRandomWalk(cfg.Feed.Markets, cfg.Feed.Seed, cfg.Feed.Balance)
	paper := dispatch.NewPaper()
	sink := dispatch.RateLimited(paper, cfg.Dispatch.OrdersPerSecond, cfg.Dispatch.Burst)
	guard := risk.NewGuard(cfg.RiskLimits())

	var store ports.SignalStore
	if !*dryRun && cfg.Storage.DSN != "" {
		s, err := storage.NewStore(cfg.Storage.DSN)
		if err != nil {
			slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
			os.Exit(1)
		}
		defer s.Close()
		store = s
	}

	notifier := notify.NewConsole(*table)

	eng := engine.New(sink, guard, engine.Config{
		MaxStrategyErrors: cfg.Engine.MaxErrors,
		MaxSignalHistory:  cfg.Engine.MaxSignalHistory,
	})

	strategies := []strategy.Strategy{
		strategy.NewMeanReversion(),
		strategy.NewMomentum(),
		strategy.NewSpread(),
	}
	for _, s := range strategies {
		if err := eng.Register(s, cfg.StrategySettings(s.Name())); err != nil {
			slog.Error("failed to register strategy", "strategy", s.Name(), "err", err)
			os.Exit(1)
		}
	}

	eng.Start()
	if cfg.Engine.AutoStart {
		for _, s := range strategies {
			if err := eng.StartStrategy(s.Name()); err != nil {
				slog.Error("failed to start strategy", "strategy", s.Name(), "err", err)
				os.Exit(1)
			}
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runLoop(ctx, cfg, eng, provider, notifier, store, *once)

	eng.Stop()
	slog.Info("polystrat stopped cleanly")
}

// runLoop drives the evaluate / execute / report cycle until ctx is
// cancelled. A persistence or notification failure is logged, never fatal.
func runLoop(
	ctx context.Context,
	cfg *config.Config,
	eng *engine.Engine,
	provider ports.SnapshotProvider,
	notifier ports.Notifier,
	store ports.SignalStore,
	once bool,
) {
	ticker := time.NewTicker(cfg.TickInterval())
	defer ticker.Stop()

	for {
		tick(ctx, eng, provider, notifier, store)
		if once {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func tick(
	ctx context.Context,
	eng *engine.Engine,
	provider ports.SnapshotProvider,
	notifier ports.Notifier,
	store ports.SignalStore,
) {
	markets, positions, orders, balance, err := provider.Snapshot(ctx)
	if err != nil {
		slog.Error("snapshot failed", "err", err)
		return
	}
	history, err := provider.PriceHistory(ctx)
	if err != nil {
		slog.Error("price history failed", "err", err)
		return
	}

	sctx := strategy.FromState(markets, positions, orders, balance).WithPriceHistory(history)

	approved := eng.Evaluate(sctx)
	executedIDs, err := eng.ExecutePendingSignals(ctx)
	if err != nil {
		slog.Error("signal execution failed", "err", err, "executed", len(executedIDs))
	}

	executed := executedSignals(approved, executedIDs)
	if err := notifier.Notify(ctx, eng.Report(executed)); err != nil {
		slog.Warn("notifier error", "err", err)
	}

	if store != nil && len(approved) > 0 {
		if err := store.SaveRecords(ctx, toRecords(approved, executedIDs)); err != nil {
			slog.Warn("failed to persist signals", "err", err)
		}
	}
}

func executedSignals(approved []domain.Signal, ids []string) []domain.Signal {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	var out []domain.Signal
	for _, sig := range approved {
		if _, ok := set[sig.ID]; ok {
			out = append(out, sig)
		}
	}
	return out
}

func toRecords(approved []domain.Signal, executedIDs []string) []domain.SignalRecord {
	set := make(map[string]struct{}, len(executedIDs))
	for _, id := range executedIDs {
		set[id] = struct{}{}
	}
	now := time.Now()

	records := make([]domain.SignalRecord, 0, len(approved))
	for _, sig := range approved {
		rec := domain.SignalRecord{Signal: sig}
		if _, ok := set[sig.ID]; ok {
			rec.Executed = true
			rec.ExecutedAt = &now
		}
		records = append(records, rec)
	}
	return records
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

	var dest io.Writer = os.Stderr
	if cfg.File != "" {
		dest = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(dest, opts)
	} else {
		handler = slog.NewTextHandler(dest, opts)
	}
	slog.SetDefault(slog.New(handler))
}
