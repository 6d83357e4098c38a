package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MLotfy88/Medi-Tempo/config"
	"github.com/MLotfy88/Medi-Tempo/data"
	"github.com/MLotfy88/Medi-Tempo/dosage"
	"github.com/MLotfy88/Medi-Tempo/handlers"
	"github.com/MLotfy88/Medi-Tempo/health"
	"github.com/MLotfy88/Medi-Tempo/importer"
	"github.com/MLotfy88/Medi-Tempo/logging"
	"github.com/MLotfy88/Medi-Tempo/scheduler"
	"github.com/MLotfy88/Medi-Tempo/server"
	"github.com/MLotfy88/Medi-Tempo/storage"
	"github.com/MLotfy88/Medi-Tempo/validation"
)

func init() {
	// Read .env from the working directory, then next to the executable
	if err := godotenv.Load(); err != nil {
		ex, err := os.Executable()
		if err != nil {
			slog.Error("Failed to get executable path", "error", err)
			os.Exit(1)
		}
		exPath := filepath.Dir(ex)
		if err := godotenv.Load(filepath.Join(exPath, ".env")); err != nil {
			slog.Debug("No .env file found, using the environment only")
		}
	}
}

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		_ = logging.Close()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.InitLoggerWithOptions(logging.Options{
		Dir:            cfg.LogDir,
		Level:          cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	})
	defer func() {
		if err := logging.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "failed to close log file:", err)
		}
	}()

	logging.Info("Starting Medi-Tempo",
		"env", cfg.Env.String(),
		"storage", cfg.StorageDriver,
		"import_dir", cfg.ImportDir,
		"import_url", cfg.ImportURL)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	kv, err := storage.Open(startupCtx, cfg.StorageOptions())
	if err != nil {
		return err
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logging.Error("Failed to close storage", "error", err)
		}
	}()

	store := data.NewStore(kv)
	store.Load(startupCtx)

	validator := validation.NewDataValidator()
	report := validator.ReportDataQuality(store.Medications())
	logging.Info("Catalog quality",
		"records", report.TotalRecords,
		"zero_price", report.ZeroPrice,
		"unavailable", report.Unavailable,
		"unknown_alternatives", report.AlternativesUnknownToStore)

	rules := dosage.DefaultRules()
	if cfg.DosageRulesFile != "" {
		if rules, err = dosage.LoadRules(cfg.DosageRulesFile); err != nil {
			return err
		}
		logging.Info("Dosage rules loaded", "file", cfg.DosageRulesFile, "rules", len(rules.Rules))
	}
	calculator := dosage.NewCalculator(rules)

	parser := importer.NewParser(importer.DefaultMaxBytes)

	sched := scheduler.NewScheduler(store, parser, scheduler.Options{
		ImportDir:   cfg.ImportDir,
		Interval:    cfg.ImportInterval,
		ImportURL:   cfg.ImportURL,
		ImportTimes: cfg.ImportTimes,
		StaleAfter:  cfg.StaleAfter,
	})
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	healthChecker := health.NewHealthChecker(store, sched, cfg.StaleAfter)
	handler := handlers.NewHTTPHandler(store, validator, parser, calculator, healthChecker, cfg.MaxImportBody)
	srv := server.NewServer(cfg, handler)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		logging.Info("Received signal, shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
