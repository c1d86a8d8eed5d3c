// Command fintrack-worker mirrors transaction events from AMQP into a
// Google Sheet.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/worker"
)

func main() {
	backfill := flag.Bool("backfill", false, "append transactions missing from the sheet before consuming events")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentWorker)

	if err := errors.Join(cfg.Validate(), cfg.ValidateWorker()); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		os.Exit(1)
	}

	if err := run(cfg, logger, *backfill); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *applog.Logger, backfill bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sheetsClient, err := gsheet.New(ctx, cli.SheetsConfig(cfg))
	if err != nil {
		return err
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", sheetsClient.SheetName())

	mirror := worker.NewMirror(sheetsClient)

	if backfill {
		if err := runBackfill(ctx, cfg, logger, mirror); err != nil {
			// Events still flow; the next backfill retries.
			logger.Error("Backfill failed", applog.FieldError, err, applog.FieldOperation, applog.OpBackfill)
		}
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return err
	}
	defer amqpClient.Close()

	logger.Info("Consuming transaction events",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)

	return amqpClient.ConsumeTransactionEvents(ctx, mirror.HandleEvent)
}

// runBackfill reads every transaction from the configured store and appends
// the ones the sheet is missing.
func runBackfill(ctx context.Context, cfg *config.Config, logger *applog.Logger, mirror *worker.Mirror) error {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	// Reading only; no events should be published from here.
	bcfg.AMQPURL = ""

	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog()).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	defer res.Cleanup()

	txs, err := res.Service.List(ctx, nil)
	if err != nil {
		return err
	}
	written, err := mirror.Backfill(ctx, txs)
	logger.Info("Backfill finished", applog.FieldOperation, applog.OpBackfill, "written", written)
	return err
}
