// Command fintrack-seed loads the sample transactions, either straight into
// the configured store or through a running API.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/client"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
)

func main() {
	apiURL := flag.String("api", "", "seed through the HTTP API at this base URL instead of the store")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentSeed)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		target  creator
		cleanup = func() error { return nil }
	)
	if *apiURL != "" {
		target = client.New(*apiURL, &http.Client{Timeout: 10 * time.Second})
		logger.Info("Seeding through API", "url", *apiURL)
	} else {
		bcfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			logger.Error("Invalid backend configuration", applog.FieldError, err)
			os.Exit(1)
		}
		res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog()).CreateBackend(ctx, bcfg)
		if err != nil {
			logger.Error("Failed to initialize backend", applog.FieldError, err)
			os.Exit(1)
		}
		target, cleanup = res.Service, res.Cleanup
		logger.Info("Seeding store", applog.FieldBackend, cfg.DataBackend)
	}

	created, err := seed(ctx, target, samples, cfg.SeedConcurrency)
	if cerr := cleanup(); cerr != nil {
		logger.Warn("Cleanup failed", applog.FieldError, cerr)
	}
	if err != nil {
		logger.Error("Seeding failed", applog.FieldError, err, "created", created)
		os.Exit(1)
	}
	logger.Info("Seeding completed", "created", created, "concurrency", cfg.SeedConcurrency)
}
