package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"webhook-ingest/internal/api"
	"webhook-ingest/internal/config"
	"webhook-ingest/internal/ingest"
	"webhook-ingest/internal/metrics"
	"webhook-ingest/internal/query"
	"webhook-ingest/internal/signature"
	"webhook-ingest/internal/storage"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Init Metrics
	metrics.Init()

	// Load Configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		logger = logger.Level(level)
	}
	logger.Info().Msg("configuration loaded")

	// The write path is unusable without the shared secret; refuse to start.
	if cfg.Webhook.Secret == "" {
		logger.Fatal().Msg("WEBHOOK_SECRET not set")
	}

	// Init Store
	ctx := context.Background()
	var store storage.MessageStore
	switch cfg.Database.Driver {
	case "postgres":
		store, err = storage.NewPostgres(ctx, cfg.Database.URL, cfg.Query.MaxLimit)
	case "sqlite":
		store, err = storage.NewSQLite(ctx, cfg.Database.URL, cfg.Query.MaxLimit)
	default:
		logger.Fatal().Str("driver", cfg.Database.Driver).Msg("unknown database driver")
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init store")
	}
	defer store.Close()
	logger.Info().Str("driver", cfg.Database.Driver).Msg("store connected")

	// Wire core components
	verifier := signature.New(cfg.Webhook.Secret)
	pipeline := ingest.NewPipeline(verifier, store, metrics.OutcomeRecorder{})
	engine := query.NewEngine(store, cfg.Query.DefaultLimit, cfg.Query.MaxLimit)

	// Init API
	apiHandler := api.NewAPI(pipeline, engine, store, cfg, logger)
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      apiHandler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful Shutdown Setup
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-runCtx.Done() // Wait for interrupt signal
	logger.Info().Msg("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown error")
	}

	logger.Info().Msg("graceful shutdown complete")
}
