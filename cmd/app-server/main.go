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
	internaljwt "roleplay-training-backend/internal/jwt"
	"roleplay-training-backend/internal/logger"
	"roleplay-training-backend/internal/queue"
	"roleplay-training-backend/internal/websocket"
)

func main() {
	cfg := env.MustLoad(env.UserSecretKey)
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	log = log.With().Str("service", "app-server").Logger()

	internaljwt.Configure(cfg.UserSecret)

	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("db init failed")
	}
	defer db.Close()

	services, err := router.NewServices(db, cfg, websocket.NewPublisher(db.Redis, nil), log)
	if err != nil {
		log.Fatal().Err(err).Msg("service init failed")
	}

	queueManager := queue.NewRequestQueueManager(cfg.RequestQueueSize, cfg.RequestQueueWorkers, log)
	defer queueManager.Shutdown()

	prefix := "/api/v1"
	server := api.NewAPIServer(
		api.Options{
			ListenAddr: cfg.AppListenAddr,
			Queue:      queueManager,
			Database:   db,
			Config:     cfg,
			Logger:     log,
		},
		router.UtilsRoutes(prefix, "app-server"),
		router.ChatRoutes(prefix, services),
		router.ConversationRoutes(prefix, services),
		router.OrganizationRoutes(prefix, services),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}
