package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/brojonat/mcphub/service/config"
	"github.com/brojonat/mcphub/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ensures the listing tables exist and rewrites stored owner addresses into
// canonical form so owner lookups match what the API now writes.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("starting owner migration")

	cfg := config.MustLoad()
	if cfg.StoreBackend != config.StoreBackendPostgres {
		logger.Error("owner migration requires the postgres store", "store_backend", cfg.StoreBackend)
		os.Exit(1)
	}

	ctx := context.Background()
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

	store := db.NewStore(dbPool, nil)
	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	invalidCount := 0
	for _, c := range db.Collections {
		res, err := store.NormalizeOwners(ctx, c)
		if err != nil {
			logger.Error("failed to normalize owners", "collection", c, "error", err)
			os.Exit(1)
		}
		for _, id := range res.Invalid {
			logger.Warn("listing has an invalid owner", "collection", c, "id", id)
		}
		invalidCount += len(res.Invalid)

		logger.Info("collection migrated",
			"collection", c,
			"scanned", res.Scanned,
			"updated", res.Updated,
			"invalid", len(res.Invalid),
		)
	}

	logger.Info("migration complete", "invalid", invalidCount)
	if invalidCount > 0 {
		os.Exit(1)
	}
}
