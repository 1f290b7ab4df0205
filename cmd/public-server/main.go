package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"roleplay-training-backend/internal/api"
	"roleplay-training-backend/internal/api/router"
	"roleplay-training-backend/internal/database"
	"roleplay-training-backend/internal/env"
	"roleplay-training-backend/internal/logger"
	"roleplay-training-backend/internal/queue"
	"roleplay-training-backend/internal/websocket"
)

func main() {
	cfg := env.MustLoad()
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	log = log.With().Str("service", "public-server").Logger()

	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("db init failed")
	}
	defer db.Close()
	if db.Redis == nil {
		log.Warn().Msg("no redis configured; embed rate limits are per instance")
	}

	services, err := router.NewServices(db, cfg, websocket.NewPublisher(db.Redis, nil), log)
	if err != nil {
		log.Fatal().Err(err).Msg("service init failed")
	}

	queueManager := queue.NewRequestQueueManager(cfg.RequestQueueSize, cfg.RequestQueueWorkers, log)
	defer queueManager.Shutdown()

	prefix := "/api/public/v1"
	server := api.NewAPIServer(
		api.Options{
			ListenAddr:         cfg.PublicListenAddr,
			Queue:              queueManager,
			Database:           db,
			Config:             cfg,
			Logger:             log,
			CORSAllowedOrigins: []string{"*"},
		},
		router.UtilsRoutes(prefix, "public-server"),
		router.EmbedChatRoutes(prefix, services),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}
