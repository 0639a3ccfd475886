/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the procurement engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment (.env supported)
  2. Configure zerolog
  3. Initialize SQLite store
  4. Wire workflow services and HTTP handlers
  5. Start the backup scheduler when a backup directory is configured
  6. Start server with graceful shutdown

CONFIGURATION:
  All config via environment variables, see config.Load:
  PORT, DB_PATH, LOG_LEVEL, TIER1_MAX, TIER2_MAX, VAT_RATE,
  GOODS_TAX_MIN_BASE, BACKUP_DIR, BACKUP_INTERVAL

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the backup scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  DB_PATH=./data/procure.db ./server

  # Run with in-memory database
  DB_PATH=":memory:" ./server

  # Daily backups
  BACKUP_DIR=./backups BACKUP_INTERVAL=24h ./server

SEE ALSO:
  - config/config.go: Environment loading
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sigap/procure-engine/api"
	"github.com/sigap/procure-engine/config"
	"github.com/sigap/procure-engine/store/sqlite"
	"github.com/sigap/procure-engine/workflow"
)

func main() {
	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	if dir := filepath.Dir(cfg.DBPath); cfg.DBPath != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to create data directory")
		}
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to initialize database")
	}
	defer store.Close()

	// Wire services
	requests := workflow.NewService(store, cfg.Tiers, cfg.Taxes, log)
	vendors := workflow.NewVendorService(store, log)
	budgets := workflow.NewBudgetLedger(store, log)

	handler := api.NewHandler(requests, vendors, budgets, log)
	router := api.NewRouter(handler)

	scheduler := api.NewBackupScheduler(store, cfg.BackupDir, cfg.BackupInterval, log)
	scheduler.Start()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	scheduler.Stop()

	log.Info().Msg("server stopped")
}
