package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/giygas/regimen-forecast/allocation"
	"github.com/giygas/regimen-forecast/config"
	"github.com/giygas/regimen-forecast/data"
	"github.com/giygas/regimen-forecast/dosing"
	"github.com/giygas/regimen-forecast/forecast"
	"github.com/giygas/regimen-forecast/handlers"
	"github.com/giygas/regimen-forecast/health"
	"github.com/giygas/regimen-forecast/inputs"
	"github.com/giygas/regimen-forecast/logging"
	"github.com/giygas/regimen-forecast/scheduler"
	"github.com/giygas/regimen-forecast/server"
	"github.com/giygas/regimen-forecast/validation"
)

// loadEnv reads .env from the working directory, falling back to the
// executable's directory so relative input paths resolve there too.
// dotenvErr reports a .env that could not be read in either place; only
// err is fatal.
func loadEnv() (dotenvErr error, err error) {
	if dotenvErr = godotenv.Load(); dotenvErr == nil {
		return nil, nil
	}

	ex, err := os.Executable()
	if err != nil {
		return dotenvErr, fmt.Errorf("failed to get executable path: %w", err)
	}
	exPath := filepath.Dir(ex)
	if err := os.Chdir(exPath); err != nil {
		return dotenvErr, fmt.Errorf("failed to change directory: %w", err)
	}

	return godotenv.Load(), nil
}

func main() {
	dotenvErr, err := loadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	loggingService := logging.InitLoggerWithOptions(logging.Options{
		LogDir:         cfg.LogDir,
		Env:            cfg.Env,
		Level:          cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	})
	defer func() {
		if err := loggingService.Close(); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to close log file:", err)
		}
	}()

	if dotenvErr != nil {
		// Every setting has a default, so running without .env is allowed
		logging.Debug("No .env file loaded, using environment only", "error", dotenvErr)
	}

	store := data.NewRunContainer()
	store.SetServerStartTime(time.Now())

	validator := validation.NewShareValidator(cfg.Engine)
	engine := allocation.NewEngine(cfg.Engine, validator)
	calculator := dosing.NewCalculator()
	generator := forecast.NewGenerator(engine, calculator)

	source := inputs.NewFileSource(cfg.InputDir, cfg.TaxonomyFile, cfg.AssumptionsFile, cfg.OverridesFile)

	sched := scheduler.NewScheduler(store, source, scheduler.Engines{
		Validator:  validator,
		Allocator:  engine,
		Calculator: calculator,
		Forecaster: generator,
	}, scheduler.Options{
		Interval:     cfg.RefreshInterval,
		HorizonYears: cfg.HorizonYears,
		Fingerprint:  cfg.Engine,
	})

	if err := sched.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	handler := handlers.NewHTTPHandler(handlers.Dependencies{
		Store:        store,
		Health:       health.NewHealthChecker(store, cfg.RefreshInterval, cfg.Engine.ConservationTolerance),
		Validator:    validator,
		Allocator:    engine,
		Calculator:   calculator,
		Forecaster:   generator,
		HorizonYears: cfg.HorizonYears,
	})

	srv := server.NewServer(cfg, handler)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
		return
	case sig := <-quit:
		logging.Info("Received shutdown signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown failed", "error", err)
	}
}
