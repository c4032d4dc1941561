// Command server runs the support-chat backend: an HTTP + WebSocket API for
// matching people seeking support with volunteer listeners, storing their
// conversations, and streaming lifecycle events in real time.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/calmbridge/support-chat-backend/internal/auth"
	"github.com/calmbridge/support-chat-backend/internal/config"
	httpapi "github.com/calmbridge/support-chat-backend/internal/http"
	"github.com/calmbridge/support-chat-backend/internal/observability"
	"github.com/calmbridge/support-chat-backend/internal/pubsub"
	"github.com/calmbridge/support-chat-backend/internal/repo"
	"github.com/calmbridge/support-chat-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Optional .env for local development; real deployments use the process env.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Logging
	zerolog.TimeFieldFormat = time.RFC3339
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().Str("version", version).Str("port", cfg.Port).Msg("starting support-chat backend")

	// Tracing
	ctx := context.Background()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	// Storage
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	// Event fan-out
	broker := pubsub.NewBroker(cfg.EventBuffer, log.Logger)

	// Auth
	tokens := auth.New(cfg.JWT.Secret, cfg.JWT.TTL)

	// HTTP
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	httpapi.RegisterRoutes(router, db, broker, tokens, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}

	// Drop WebSocket subscribers after the listener stops accepting.
	broker.Close()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("bye")
}
