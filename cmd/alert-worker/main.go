package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"spendtrack/internal/amqp"
	"spendtrack/internal/cli"
	"spendtrack/internal/sheets"
	"spendtrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the alert worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Alerts are exported to a spreadsheet only when one is configured;
	// otherwise the worker just logs them.
	var exporter worker.AlertExporter
	if cfg.SheetsSpreadsheetID != "" {
		sheetExporter, err := sheets.NewExporter(ctx, cfg.SheetsSpreadsheetID, cfg.SheetsSheetName)
		if err != nil {
			logger.Error("Failed to initialize Sheets exporter", "error", err)
			os.Exit(1)
		}
		exporter = sheetExporter
		logger.Info("Alert export to Google Sheets enabled",
			"spreadsheet_id", cfg.SheetsSpreadsheetID, "sheet", cfg.SheetsSheetName)
	}

	w := worker.NewAlertWorker(repo, cfg.CategoryBudgets, exporter)

	logger.Info("Starting alert worker", "queue", cfg.AMQPQueue)
	err = amqpClient.ConsumeExpenseEvents(ctx, func(msg *amqp.ExpenseEvent) error {
		return w.HandleExpenseEvent(ctx, msg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Alert worker stopped gracefully")
}
