package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"tracker_server/config"
	"tracker_server/infra/database"
	"tracker_server/internal/bootstrap"
	"tracker_server/pkg/logger"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	// Load .env file if exists (for local development)
	envErr := godotenv.Load()

	mode := flag.String("mode", "api", "Run mode: api, migrate, rollback")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	level := logger.ParseLevel(cfg.LogLevel)
	if cfg.LogLevel == "" && cfg.IsDevelopment() {
		level = zerolog.DebugLevel
	}
	logger.Init(logger.Config{
		Level:   level,
		Service: "tracker-api",
		Console: cfg.IsDevelopment(),
	})
	if envErr != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	switch *mode {
	case "api":
		runAPI(cfg)
	case "migrate":
		runMigrate(cfg, false)
	case "rollback":
		runMigrate(cfg, true)
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

func runMigrate(cfg *config.Config, rollback bool) {
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required for -mode migrate")
	}
	run := database.RunMigrations
	if rollback {
		run = database.RollbackMigration
	}
	if err := run(cfg.DatabaseURL); err != nil {
		logger.Fatal("Migration failed: %v", err)
	}
}

func runAPI(cfg *config.Config) {
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
		}); err != nil {
			logger.WithError(err).Error("Sentry init failed")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), time.Minute)
	app, cleanup, err := bootstrap.NewAPI(startCtx, cfg)
	cancelStart()
	if err != nil {
		logger.Fatal("Failed to initialize API: %v", err)
	}
	defer cleanup()

	// Graceful shutdown with timeout
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("Error shutting down: %v", err)
			return
		}
		logger.Info("API server shut down gracefully")
	}()

	addr := ":" + cfg.Port
	logger.Info("Starting API server on %s", addr)
	if err := app.Listen(addr); err != nil {
		logger.Error("Server stopped: %v", err)
	}
}
