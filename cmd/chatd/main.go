// Command chatd runs the chat client daemon: it exposes the message pipeline
// (send, regenerate, reveal, persistence) over an HTTP API backed by a local
// SQLite store and an upstream completion provider.
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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kchalkias/go-chat-client/internal/ai"
	"github.com/kchalkias/go-chat-client/internal/config"
	httpapi "github.com/kchalkias/go-chat-client/internal/http"
	"github.com/kchalkias/go-chat-client/internal/observability"
	"github.com/kchalkias/go-chat-client/internal/repo"
	"github.com/kchalkias/go-chat-client/internal/session"
	"github.com/kchalkias/go-chat-client/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// logNavigator records first-turn navigation targets. The HTTP surface has
// no page to route; logging the room id lets a UI shell follow along.
type logNavigator struct{}

func (logNavigator) HandleNewRoomNavigation(roomID int64, userMessage, fullContent, model string) {
	log.Info().
		Int64("room_id", roomID).
		Str("model", model).
		Msg("new room ready")
}

func main() {
	// Optional .env for local development; real deployments use the process env.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Logging
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	// Tracing
	ctx := context.Background()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(ctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	// Storage
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("sqlite open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("auto-migrate failed")
	}

	// Completion provider
	var client ai.Client
	switch cfg.AI.Provider {
	case "openai":
		client = ai.NewOpenAIClient(cfg.AI.BaseURL)
	default:
		client = ai.NewGatewayClient(cfg.AI.BaseURL)
	}

	// Transport
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:        db,
		AIClient:  client,
		Sessions:  session.EnvProvider{},
		Navigator: logNavigator{},
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("provider", cfg.AI.Provider).
			Str("version", version).
			Msg("starting chat client")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "forced shutdown: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("stopped")
}
