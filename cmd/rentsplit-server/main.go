package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"rentsplit/internal/backend"
	"rentsplit/internal/cache"
	"rentsplit/internal/cli"
	apphttp "rentsplit/internal/http"
	"rentsplit/internal/log"
	"rentsplit/internal/report"
	"rentsplit/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	svc, err := services.NewHouseholdService(context.Background(), services.Options{
		Store:     res.Store,
		Publisher: res.Publisher(),
		Formatter: report.NewFormatter(cfg.CurrencySymbol),
		OutputDir: cfg.OutputDir,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("Failed to initialize household service", log.FieldError, err)
		os.Exit(1)
	}

	caches := cache.NewManager()
	svc.RegisterCaches(caches)
	caches.OnClean(func(removed int) {
		logger.Debug("Expired cache entries removed", log.FieldComponent, log.ComponentCache, "removed", removed)
	})
	caches.StartCleanup(10 * time.Minute)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{Logger: logger})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting rentsplit server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"publishing", res.AMQP != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
