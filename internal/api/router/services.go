package router

import (
	"fmt"

	"roleplay-training-backend/internal/assistant"
	"roleplay-training-backend/internal/database"
	"roleplay-training-backend/internal/env"
	"roleplay-training-backend/internal/ratelimit"
	authservice "roleplay-training-backend/internal/service/auth"
	chatservice "roleplay-training-backend/internal/service/chat"
	conversationservice "roleplay-training-backend/internal/service/conversation"
	"roleplay-training-backend/internal/service/credit"
	embedservice "roleplay-training-backend/internal/service/embed"
	"roleplay-training-backend/internal/service/message"
	organizationservice "roleplay-training-backend/internal/service/organization"
	reviewservice "roleplay-training-backend/internal/service/review"
	"roleplay-training-backend/internal/websocket"

	"github.com/rs/zerolog"
)

// Services is the wired service graph shared by the route registrars of
// one server.
type Services struct {
	Auth          *authservice.Service
	Messages      *message.Store
	Ledger        *credit.Ledger
	Embeds        *embedservice.Service
	Conversations *conversationservice.Service
	Chat          *chatservice.Service
	Reviews       *reviewservice.Service
	Organizations *organizationservice.Service
}

// NewServices wires every service against db. publisher may be nil, in
// which case no live events are sent.
func NewServices(db *database.Database, cfg env.Config, publisher *websocket.Publisher, logger zerolog.Logger) (*Services, error) {
	limiter, err := ratelimit.New(db.Redis, ratelimit.Config{
		Max:       cfg.EmbedRateLimitMax,
		Window:    cfg.EmbedRateLimitWindow,
		KeyPrefix: "embed-rl:",
	})
	if err != nil {
		return nil, fmt.Errorf("init embed rate limiter: %w", err)
	}

	ai := assistant.NewClient(assistant.Config{
		URL:     cfg.AIWebhookURL,
		Secret:  cfg.AIWebhookSecret,
		Timeout: cfg.AIWebhookTimeout,
	})
	if !ai.Enabled() {
		logger.Warn().Msg("AI webhook not configured; chat and review endpoints will fail")
	}

	conversationRepo := conversationservice.NewDynamoRepository(db)
	messages := message.New(db)
	ledger := credit.New(db)
	embeds := embedservice.New(db, limiter, logger.With().Str("component", "embed").Logger())

	var chatPublisher chatservice.Publisher
	var reviewPublisher reviewservice.Publisher
	if publisher != nil {
		chatPublisher = publisher
		reviewPublisher = publisher
	}

	reviews := reviewservice.New(reviewservice.Dependencies{
		Repository:    reviewservice.NewDynamoRepository(db),
		Conversations: conversationRepo,
		Transcripts:   messages,
		Evaluator:     ai,
		Publisher:     reviewPublisher,
		Logger:        logger.With().Str("component", "review").Logger(),
	})

	conversations := conversationservice.NewWithRepository(conversationRepo, nil,
		conversationservice.WithEmbedTokens(embeds),
		conversationservice.WithMessages(messages),
		conversationservice.WithPurgers(messages, embeds, reviews),
		conversationservice.WithLogger(logger.With().Str("component", "conversation").Logger()),
	)

	chat := chatservice.New(chatservice.Dependencies{
		Repository: conversationRepo,
		Messages:   messages,
		Ledger:     ledger,
		Assistant:  ai,
		Embeds:     embeds,
		Publisher:  chatPublisher,
		Logger:     logger.With().Str("component", "chat").Logger(),
	})

	organizations := organizationservice.New(db, ledger, cfg.InitialOrganizationCredits,
		logger.With().Str("component", "organization").Logger())

	return &Services{
		Auth:          authservice.New(db),
		Messages:      messages,
		Ledger:        ledger,
		Embeds:        embeds,
		Conversations: conversations,
		Chat:          chat,
		Reviews:       reviews,
		Organizations: organizations,
	}, nil
}
