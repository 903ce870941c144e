package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"DealScanner/internal/app"
	"DealScanner/internal/config"
	"DealScanner/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "dealscanner: %v\n", err)
		os.Exit(1)
	}
}

// run parses flags, builds the application and blocks until ctx is cancelled
// or a single cycle completes with -once. Every resource is released before it returns.
func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("dealscanner", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to YAML config (default $DEAL_SCANNER_CONFIG or config.yaml)")
	once := flags.Bool("once", false, "run a single scan cycle and exit")
	dryRun := flags.Bool("dry-run", false, "log alerts instead of sending them")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg := config.Load(*configPath)
	if *dryRun {
		cfg.Scan.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logFile, err := logging.NewWithFile(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	application, err := app.New(ctx, cfg, logger, app.Options{Once: *once})
	if err != nil {
		logger.Error("application init failed", "error", err)
		return err
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		return err
	}
	return nil
}
