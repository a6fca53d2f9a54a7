/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the room ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and environment configuration
  2. Install the structured logger
  3. Initialize SQLite store
  4. Create check-in service and API handler
  5. Start the stale-session sweeper
  6. Start server with graceful shutdown

CONFIGURATION:
  All via environment (see config/config.go):
  PORT, DB_PATH, NIGHT_CUTOFF_HOUR, MAX_SESSION_HOURS, SWEEP_INTERVAL,
  CHECKIN_RATE_LIMIT, CORS_ORIGINS, LOG_LEVEL

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the sweeper
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  DB_PATH=./data/roomledger.db ./server

  # Run with in-memory database
  DB_PATH=:memory: ./server

  # Run on different port
  PORT=3000 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/venueworks/roomledger/api"
	"github.com/venueworks/roomledger/checkin"
	"github.com/venueworks/roomledger/config"
	"github.com/venueworks/roomledger/logging"
	"github.com/venueworks/roomledger/store/sqlite"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.LogLevel)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("failed to initialize database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Initialize service and handler
	service := checkin.NewService(store)
	handler := api.NewHandler(store, service, cfg.NightCutoffHour)

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins:   cfg.CORSOrigins,
		CheckinRateLimit: cfg.CheckinRateLimit,
	})

	// Start the stale-session sweeper
	sweeper := api.NewSweeper(service, store,
		time.Duration(cfg.MaxSessionHours)*time.Hour, cfg.SweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "addr", fmt.Sprintf("http://localhost:%d", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
