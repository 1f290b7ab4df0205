package main

import (
	"context"
	"time"

	"roleplay-training-backend/internal/database"
	"roleplay-training-backend/internal/env"
	"roleplay-training-backend/internal/logger"
	"roleplay-training-backend/internal/service/auth"
)

func main() {
	cfg := env.MustLoad()
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	log = log.With().Str("service", "bootstrap-tables").Logger()

	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("db init failed")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	created, err := db.Client.EnsureTables(ctx, database.Schema())
	if err != nil {
		log.Fatal().Err(err).Msg("ensure tables failed")
	}
	if len(created) == 0 {
		log.Info().Msg("all tables already exist")
	} else {
		log.Info().Strs("tables", created).Msg("tables created")
	}

	if cfg.PlatformAdminUserID == "" {
		return
	}
	profile, err := auth.New(db).EnsurePlatformAdmin(ctx, cfg.PlatformAdminUserID, cfg.PlatformAdminEmail, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("seed platform admin failed")
	}
	log.Info().Str("user_id", profile.UserID).Msg("platform admin ready")
}
