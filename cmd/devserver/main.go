package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/conduct-console/internal/config"
	"github.com/stemsi/conduct-console/internal/database"
	"github.com/stemsi/conduct-console/internal/devserver"
	"github.com/stemsi/conduct-console/internal/logger"
	"github.com/stemsi/conduct-console/internal/service"
	"github.com/stemsi/conduct-console/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("session_backend", cfg.SessionBackend).
		Msg("Starting conduct dev server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Session Storage ───────────────────────────────────────────────
	var sessions service.SessionStore
	switch cfg.SessionBackend {
	case config.StoreRedis:
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		sessions = service.NewRedisSessionStore(rdb)
	case config.StoreMemory, "":
		memory := service.NewMemorySessionStore()
		go worker.NewSessionSweeper(memory, time.Minute, log).Start(ctx)
		sessions = memory
	default:
		log.Fatal().Str("backend", cfg.SessionBackend).Msg("Unknown session backend")
	}

	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "admin123"
		log.Warn().Msg("ADMIN_PASSWORD not set, using the demo default")
	}

	srvApp, err := devserver.New(ctx, cfg, sessions, adminPassword, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build dev server")
	}

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srvApp.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Stop background workers after the server stops accepting requests.
	cancel()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
