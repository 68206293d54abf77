// Package main is the entry point for tao-sentinel, the dividend read service
// and sentiment-driven stake/unstake automation for Bittensor subnets.
//
// The application follows the same layering as the rest of the tree:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Service layer for business logic
// - HTTP handlers for API endpoints
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/tao-sentinel/internal/config"
	"github.com/aristath/tao-sentinel/internal/di"
	"github.com/aristath/tao-sentinel/internal/server"
	"github.com/aristath/tao-sentinel/pkg/logger"
)

// main orchestrates startup:
// 1. Loads configuration from environment variables (.env and optional policy YAML)
// 2. Initializes logging
// 3. Wires all dependencies via the DI container
// 4. Starts the job scheduler and the HTTP server
// 5. Waits for a shutdown signal and drains in-flight work
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().
		Int("port", cfg.Port).
		Int("default_netuid", cfg.DefaultNetuid).
		Msg("Starting tao-sentinel")

	container, _, err := di.Wire(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing connections")
		}
	}()

	// Background maintenance (cache cleanup, WAL checkpoints, backups)
	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		AuthToken: cfg.APIAuthToken,
		Dividends: container.Dividends,
		Trader:    container.Workflow,
		History:   container.History,
		EventBus:  container.EventBus,
		Workflows: container.Workflow,
		Databases: container.Databases(),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// In-flight requests and workflows share one 10 second budget.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := container.Workflow.Shutdown(shutdownCtx); err != nil {
		log.Warn().
			Err(err).
			Int("in_flight", container.Workflow.InFlight()).
			Msg("Trading workflows still running at shutdown")
	}

	container.Scheduler.Stop()

	log.Info().Msg("Server stopped")
}
