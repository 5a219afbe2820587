package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/streamhaus/play-history-service/internal/config"
	"github.com/streamhaus/play-history-service/internal/httpserver"
	"github.com/streamhaus/play-history-service/internal/idempotency"
	"github.com/streamhaus/play-history-service/internal/logging"
	"github.com/streamhaus/play-history-service/internal/service"
	"github.com/streamhaus/play-history-service/internal/store"
)

// main boots the service: config → logger → DB → schema → HTTP server.
func main() {
	// Load runtime config from environment (PORT, DB_URL, LOG_LEVEL).
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := logging.New(cfg.LogLevel)

	// Connect to durable storage (Postgres) using a connection pool.
	db, err := store.NewPostgresStore(cfg.DBURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Ensure required tables/indexes exist so `docker compose up --build` is enough.
	if err := db.EnsureSchema(); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}

	svc := service.New(db, idempotency.NewMemoryCache(), logger)

	router := httpserver.NewRouter(db, svc)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info().Str("addr", addr).Msg("server started")
	if err := router.Run(addr); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
