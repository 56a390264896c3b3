package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/brojonat/mcphub/service/config"
	"github.com/brojonat/mcphub/service/db"
	"github.com/brojonat/mcphub/service/metrics"
	natspkg "github.com/brojonat/mcphub/service/nats"
	"github.com/brojonat/mcphub/service/search"
	"github.com/brojonat/mcphub/service/server"
	"github.com/brojonat/mcphub/service/temporal"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"store_backend", cfg.StoreBackend,
		"version", cfg.Version,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	var store db.ListingStore
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		store = db.NewMemoryStore()
		logger.Warn("using in-memory store, listings will not survive a restart")
	default:
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database")

		pgStore := db.NewStore(dbPool, metricsCollector)
		if err := pgStore.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		store = pgStore
	}

	scorer := search.NewInferenceScorer(
		cfg.InferenceURL,
		cfg.InferenceAPIKey,
		&http.Client{Timeout: cfg.InferenceTimeout},
		metricsCollector,
		logger,
	)
	if cfg.InferenceAPIKey == "" {
		logger.Warn("INFERENCE_API_KEY not set, pro search will fall back to basic results")
	}
	ranker := search.NewRanker(search.RankerConfig{
		Scorer:        scorer,
		MaxCandidates: cfg.SearchMaxCandidates,
		Metrics:       metricsCollector,
		Logger:        logger,
	})

	httpServer := server.New(cfg, store, ranker, logger).WithMetrics(metricsCollector)

	if cfg.NATSURL != "" {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()

		ssePublisher, err := server.NewSSEPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create SSE publisher", "error", err)
			os.Exit(1)
		}
		httpServer.WithPublisher(publisher).WithSSE(ssePublisher)
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	} else {
		logger.Warn("NATS_URL not set, events and streaming disabled")
	}

	if cfg.TemporalHost != "" {
		temporalClient, err := temporal.NewClient(
			cfg.TemporalHost,
			cfg.TemporalNamespace,
			cfg.TemporalTaskQueue,
			logger,
		)
		if err != nil {
			logger.Error("failed to create temporal client", "error", err)
			os.Exit(1)
		}
		defer temporalClient.Close()
		httpServer.WithReviewer(temporalClient)
	} else {
		logger.Warn("TEMPORAL_HOST not set, review decisions are applied directly")
	}

	logger.Info("server initialized, all dependencies ready",
		"nats_url", cfg.NATSURL,
		"temporal_host", cfg.TemporalHost,
		"chain_id", cfg.ChainID,
		"admin_configured", cfg.AdminAddress != "",
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
