package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"rentsplit/internal/backend"
	"rentsplit/internal/cli"
	"rentsplit/internal/log"
	"rentsplit/internal/report"
	"rentsplit/internal/services"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cli.LoadEnvFile()

	// Command output goes to stdout, so logs stay on stderr and default to
	// warnings only.
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger := cli.SetupLogger(level, os.Stderr).WithComponent(log.ComponentCLI)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		return 1
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		return 1
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err)
		}
	}()

	formatter := report.NewFormatter(cfg.CurrencySymbol)
	svc, err := services.NewHouseholdService(ctx, services.Options{
		Store:     res.Store,
		Publisher: res.Publisher(),
		Formatter: formatter,
		OutputDir: cfg.OutputDir,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("Failed to initialize household service", log.FieldError, err)
		return 1
	}
	if err := svc.LoadWarning(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: saved data could not be read, starting fresh: %v\n", err)
	}

	runner := cli.NewRunner(svc, formatter, os.Stdout, nil)
	if err := runner.Run(ctx, args); err != nil {
		fmt.Fprintf(os.Stderr, "rentsplit: %v\n", err)
		if errors.Is(err, cli.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}
