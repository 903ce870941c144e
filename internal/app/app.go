package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"DealScanner/internal/config"
	"DealScanner/internal/domain"
	"DealScanner/internal/infrastructure/ebay"
	"DealScanner/internal/infrastructure/fixture"
	"DealScanner/internal/infrastructure/httpx"
	"DealScanner/internal/infrastructure/scheduler"
	"DealScanner/internal/infrastructure/storage"
	"DealScanner/internal/infrastructure/telegram"
	"DealScanner/internal/ports"
	"DealScanner/internal/source"
	"DealScanner/internal/usecase"
)

// Options are command-line switches layered over the loaded config.
type Options struct {
	// Once runs a single cycle and returns.
	Once bool
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	notifier  *telegram.Notifier
	scheduler *usecase.Scheduler
	closers   []io.Closer
}

// New builds a runnable application instance from validated config.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger, opts Options) (*Application, error) {
	if baseLogger == nil {
		baseLogger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	policy := httpx.PolicyFromConfig(cfg.Retry)
	ebayClient := httpx.NewClient(cfg.Ebay.Timeout, policy, baseLogger.With("component", "http.ebay"))
	telegramClient := httpx.NewClient(cfg.Notifications.Telegram.Timeout, policy, baseLogger.With("component", "http.telegram"))

	registry := source.NewRegistry()
	registry.Register(ebay.NewSearchProvider(cfg.Ebay, ebayClient))
	registry.Register(fixture.NewProvider(cfg.Search.FixturePath))
	search, err := registry.Resolve(cfg.Search.Source)
	if err != nil {
		return nil, err
	}

	var tokens ports.TokenProvider = ebay.NewTokenProvider(cfg.Ebay, ebayClient)
	if cfg.Search.Source == config.SourceFixture {
		tokens = fixture.StaticToken{}
	}

	a.notifier = telegram.NewNotifier(cfg.Notifications.Telegram, telegramClient, baseLogger.With("component", "telegram"))
	var notifier ports.Notifier
	if a.notifier.Configured() {
		notifier = a.notifier
	} else if !cfg.Scan.DryRun {
		baseLogger.Warn("telegram not configured, alerts will only be logged")
	}

	seen, err := a.openSeenStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	scanner := usecase.NewScanner(usecase.ScanDeps{
		Search:    search,
		Tokens:    tokens,
		Notifier:  notifier,
		Seen:      seen,
		Snapshots: storage.NewSnapshotDir(cfg.Storage.SnapshotDir()),
		Logger:    baseLogger.With("component", "scanner"),
	}, scanOptions(cfg))

	if err := scanner.LoadSeen(ctx); err != nil {
		baseLogger.Warn("seen set not loaded at startup, first cycle will retry", "error", err)
	}

	maxRuns := 0
	if opts.Once {
		maxRuns = 1
	}
	driver := scheduler.NewIntervalScheduler(cfg.Scan.Interval, maxRuns)
	a.scheduler = usecase.NewScheduler(driver, scanner)
	return a, nil
}

// Run announces startup and drives scan cycles until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	a.logger.Info("deal scanner started",
		"env", a.cfg.Ebay.Environment,
		"source", a.cfg.Search.Source,
		"query", a.cfg.Search.Query,
		"interval", a.cfg.Scan.Interval,
		"dry_run", a.cfg.Scan.DryRun,
		"seen_backend", a.cfg.Storage.SeenBackend,
	)
	a.announce(ctx)

	if err := a.scheduler.Run(ctx); err != nil {
		return err
	}
	a.logger.Info("deal scanner stopped", "signalled", ctx.Err() != nil)
	return nil
}

// Close releases storage connections.
func (a *Application) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *Application) announce(ctx context.Context) {
	if !a.cfg.Notifications.Telegram.StartupMessage || !a.notifier.Configured() {
		return
	}
	text := fmt.Sprintf("Deal scanner started | env=%s | query=%q | dry_run=%t",
		a.cfg.Ebay.Environment, a.cfg.Search.Query, a.cfg.Scan.DryRun)
	if err := a.notifier.Send(ctx, text); err != nil {
		a.logger.Warn("startup message failed", "error", err)
	}
}

func (a *Application) openSeenStore(ctx context.Context) (ports.SeenStore, error) {
	st := a.cfg.Storage
	switch st.SeenBackend {
	case config.SeenBackendPostgres:
		store, err := storage.OpenPostgresSeenStore(ctx, st.Database.DSN, st.Database.Table)
		if err != nil {
			return nil, fmt.Errorf("open postgres seen store: %w", err)
		}
		a.closers = append(a.closers, store)
		return store, nil
	case config.SeenBackendRedis:
		store := storage.NewRedisSeenStore(st.Redis)
		a.closers = append(a.closers, store)
		if err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connect redis seen store: %w", err)
		}
		return store, nil
	default:
		return storage.NewFileSeenStore(st.SeenPath(), a.logger.With("component", "seen")), nil
	}
}

func scanOptions(cfg config.Config) usecase.ScanOptions {
	return usecase.ScanOptions{
		Query: domain.SearchQuery{
			Query:       cfg.Search.Query,
			Limit:       cfg.Search.Limit,
			MinPrice:    cfg.Search.MinPrice,
			MaxPrice:    cfg.Search.MaxPrice,
			Condition:   cfg.Search.Condition,
			Sort:        cfg.Search.Sort,
			CategoryIDs: cfg.Search.CategoryIDs,
		},
		Thresholds: usecase.Thresholds{
			MinScore:          cfg.Scan.MinScore,
			MinDiscount:       cfg.Scan.MinDiscount,
			MinSellerPositive: cfg.Scan.MinSellerPositive,
			MinSellerFeedback: cfg.Scan.MinSellerFeedback,
			TopN:              cfg.Scan.TopN,
		},
		DryRun:            cfg.Scan.DryRun,
		MarkSeenOnFailure: cfg.Scan.MarkSeenOnFailure,
		RefreshMargin:     cfg.Scan.RefreshMargin,
	}
}
