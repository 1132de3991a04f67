/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the distribution ledger server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, flags)
  2. Build the logger
  3. Load the price-tier table (built-in defaults without -tiers)
  4. Initialize SQLite store
  5. Create API handler and reminder scheduler
  6. Configure HTTP router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port       HTTP server port (default: 8080, env PORT)
  -db         SQLite database path (default: ledger.db, env DB_PATH)
              Use ":memory:" for in-memory database
  -log-level  debug, info, warn, error (default: info, env LOG_LEVEL)
  -tiers      JSON price-tier file (env TIER_CONFIG)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the reminder scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/ledger.db"
  ./server -db=":memory:" -port=3000 -log-level=debug

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/savon-distrib/ledger-engine/api"
	"github.com/savon-distrib/ledger-engine/config"
	"github.com/savon-distrib/ledger-engine/factory"
	"github.com/savon-distrib/ledger-engine/profitability"
	"github.com/savon-distrib/ledger-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	tiers, err := factory.NewTierFactory().LoadFile(cfg.TierConfigPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load price tiers")
	}

	store, err := sqlite.New(cfg.DBPath, sqlite.WithTierResolver(tiers))
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	handler := api.NewHandler(store, profitability.NewEngine(tiers), logger)
	handler.Currency = cfg.CurrencyLabel

	reminders := api.NewReminderScheduler(store, logger, cfg.ReminderSchedule)
	reminders.Enabled = cfg.RemindersEnabled
	reminders.Currency = cfg.CurrencyLabel
	handler.Reminders = reminders
	if err := reminders.Start(); err != nil {
		logger.WithError(err).Fatal("failed to start reminder scheduler")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler, cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"port":  cfg.Port,
			"db":    cfg.DBPath,
			"tiers": len(tiers.Tiers()),
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	reminders.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
		return
	}
	logger.Info("server stopped")
}
