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
	cfg := env.MustLoad(env.UserSecretKey, env.ChatRedisURL)
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	log = log.With().Str("service", "ws-server").Logger()

	internaljwt.Configure(cfg.UserSecret)

	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("db init failed")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub(db.Redis, log)
	go hub.Run(ctx)
	handler := websocket.NewHandler(hub, log)

	services, err := router.NewServices(db, cfg, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("service init failed")
	}

	queueManager := queue.NewRequestQueueManager(cfg.RequestQueueSize, cfg.RequestQueueWorkers, log)
	defer queueManager.Shutdown()

	prefix := "/api/ws/v1"
	server := api.NewAPIServer(
		api.Options{
			ListenAddr: cfg.WSListenAddr,
			Queue:      queueManager,
			Database:   db,
			Websocket:  handler,
			Config:     cfg,
			Logger:     log,
		},
		router.UtilsRoutes(prefix, "ws-server"),
		router.ConversationWebsocketRoutes(prefix, services),
	)

	if err := server.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}
