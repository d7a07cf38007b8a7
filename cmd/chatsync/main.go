package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ChatSync/internal/api"
	"ChatSync/internal/config"
	"ChatSync/internal/console"
	"ChatSync/internal/history"
	"ChatSync/internal/storage"
	"ChatSync/internal/telemetry"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, logFile, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logFile.Close()

	tracer, meter, shutdown, err := telemetry.InitTelemetry(ctx, cfg.LogDir, cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdown()

	store, err := storage.OpenSQLite(cfg.StateDB)
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	defer store.Close()

	logger.Info("starting chatsync", "base_url", cfg.BaseURL, "state_db", cfg.StateDB)

	c, err := console.New(cfg, store, logger, os.Stdout,
		console.WithAPIOptions(api.WithTracer(tracer)),
		console.WithSyncOptions(history.WithMeter(meter), history.WithTracer(tracer)),
	)
	if err != nil {
		return err
	}
	return c.Run(ctx, os.Stdin)
}
