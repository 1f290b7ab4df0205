package embed

import (
	"context"
	"errors"
	"strings"
	"time"

	"roleplay-training-backend/internal/database"
	"roleplay-training-backend/internal/model"
	"roleplay-training-backend/internal/ratelimit"
	"roleplay-training-backend/internal/service/apperror"
	"roleplay-training-backend/internal/service/auth"
	"roleplay-training-backend/internal/service/conversation"
	"roleplay-training-backend/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Reason string

const (
	ReasonAllowed              Reason = "allowed"
	ReasonTokenInvalid         Reason = "token_invalid"
	ReasonConversationMismatch Reason = "conversation_mismatch"
	ReasonConversationInactive Reason = "conversation_inactive"
	ReasonEmbedDisabled        Reason = "embed_disabled"
	ReasonTenantMismatch       Reason = "tenant_mismatch"
	ReasonOriginMissing        Reason = "origin_missing"
	ReasonOriginNotAllowed     Reason = "origin_not_allowed"
	ReasonTenantDisabled       Reason = "tenant_disabled"
	ReasonRateLimited          Reason = "rate_limited"
)

// Unknown tokens, foreign conversations and foreign organizations share one
// message so a caller cannot tell which part was wrong.
const deniedMessage = "Not found or access denied."

type ConversationReader interface {
	GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error)
	GetOrganization(ctx context.Context, organizationID string) (model.OrganizationItem, error)
	GetScenario(ctx context.Context, scenarioID string) (model.ScenarioItem, error)
}

type AuthorizeRequest struct {
	Token          string
	ConversationID string
	Origin         string
	ClientIP       string
}

// Grant is the outcome of a successful authorization.
type Grant struct {
	Token        model.EmbedTokenItem
	Conversation model.ConversationItem
	Organization model.OrganizationItem
}

type Service struct {
	tokens        Repository
	conversations ConversationReader
	limiter       ratelimit.Limiter
	now           func() time.Time
	newToken      func() string
	logger        zerolog.Logger
}

func New(db *database.Database, limiter ratelimit.Limiter, logger zerolog.Logger) *Service {
	return NewWithRepository(NewDynamoRepository(db), conversation.NewDynamoRepository(db), limiter, nil, logger)
}

func NewWithRepository(
	tokens Repository,
	conversations ConversationReader,
	limiter ratelimit.Limiter,
	now func() time.Time,
	logger zerolog.Logger,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		tokens:        tokens,
		conversations: conversations,
		limiter:       limiter,
		now:           now,
		newToken:      utils.CreateToken,
		logger:        logger,
	}
}

// Authorize decides whether an anonymous embed request may use a
// conversation. Checks run in a fixed order and the first failure wins.
func (s *Service) Authorize(ctx context.Context, req AuthorizeRequest) (Grant, error) {
	grant, err := s.VerifyToken(ctx, req.Token, req.ConversationID)
	if err != nil {
		return Grant{}, err
	}
	conv := grant.Conversation

	if !conv.IsActive() {
		return Grant{}, s.reject(ReasonConversationInactive, apperror.Conflict("This conversation is inactive.", nil))
	}
	if !conv.PublicEmbedEnabled {
		return Grant{}, s.reject(ReasonEmbedDisabled, apperror.Forbidden("Public embed is disabled for this conversation.", nil))
	}
	if grant.Token.OrganizationID != conv.OrganizationID {
		return Grant{}, s.reject(ReasonTenantMismatch, apperror.Forbidden(deniedMessage, nil))
	}

	if len(conv.EmbedAllowedOrigins) > 0 {
		origin := utils.NormalizeOrigin(req.Origin)
		if origin == "" {
			return Grant{}, s.reject(ReasonOriginMissing, apperror.Forbidden("Origin header is required.", nil))
		}
		if !originAllowed(origin, conv.EmbedAllowedOrigins) {
			return Grant{}, s.reject(ReasonOriginNotAllowed, apperror.Forbidden("Origin not allowed.", nil))
		}
	}

	org, err := s.conversations.GetOrganization(ctx, conv.OrganizationID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return Grant{}, s.reject(ReasonTenantMismatch, apperror.Forbidden(deniedMessage, err))
		}
		return Grant{}, apperror.Internal("failed to load organization", err)
	}
	if org.IsDisabled {
		return Grant{}, s.reject(ReasonTenantDisabled, apperror.Forbidden("This organization is disabled.", nil))
	}

	if s.limiter != nil {
		clientIP := req.ClientIP
		if clientIP == "" {
			clientIP = "unknown"
		}
		allowed, err := s.limiter.Allow(ctx, ratelimit.Key(grant.Token.Token, clientIP))
		if err != nil {
			return Grant{}, apperror.Internal("rate limit check failed", err)
		}
		if !allowed {
			return Grant{}, s.reject(ReasonRateLimited, apperror.New(apperror.CodeRateLimited, "Too many requests. Please wait a moment.", nil))
		}
	}

	embedDecisions.WithLabelValues(string(ReasonAllowed)).Inc()
	grant.Organization = org
	return grant, nil
}

// VerifyToken checks that token is active and bound to conversationID. It
// is the first step of Authorize and also gates websocket joins.
func (s *Service) VerifyToken(ctx context.Context, token, conversationID string) (Grant, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Grant{}, s.reject(ReasonTokenInvalid, apperror.Forbidden(deniedMessage, nil))
	}
	if _, err := uuid.Parse(conversationID); err != nil {
		return Grant{}, apperror.Validation("conversationId must be a UUID", err)
	}

	item, err := s.tokens.GetToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Grant{}, s.reject(ReasonTokenInvalid, apperror.Forbidden(deniedMessage, err))
		}
		return Grant{}, apperror.Internal("failed to load embed token", err)
	}
	if !item.Active {
		return Grant{}, s.reject(ReasonTokenInvalid, apperror.Forbidden(deniedMessage, nil))
	}
	if item.ConversationID != conversationID {
		return Grant{}, s.reject(ReasonConversationMismatch, apperror.Forbidden(deniedMessage, nil))
	}

	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return Grant{}, s.reject(ReasonConversationMismatch, apperror.Forbidden(deniedMessage, err))
		}
		return Grant{}, apperror.Internal("failed to load conversation", err)
	}

	return Grant{Token: item, Conversation: conv}, nil
}

// GetOrCreateConversationToken returns the active token of an embeddable
// conversation, issuing one if needed.
func (s *Service) GetOrCreateConversationToken(ctx context.Context, caller auth.Caller, conversationID string) (string, error) {
	if !caller.IsManager() {
		return "", apperror.Forbidden("admin role required", nil)
	}
	if _, err := uuid.Parse(conversationID); err != nil {
		return "", apperror.Validation("conversationId must be a UUID", err)
	}

	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return "", apperror.NotFound("conversation not found", err)
		}
		return "", apperror.Internal("failed to load conversation", err)
	}
	if !caller.CanAccess(conv.OrganizationID) {
		return "", apperror.NotFound("conversation not found", nil)
	}
	if !conv.PublicEmbedEnabled {
		return "", apperror.Validation("Public embed is not enabled for this conversation.", nil)
	}

	item, err := s.ensureConversationToken(ctx, conv.OrganizationID, conv.ConversationID, caller.UserID)
	if err != nil {
		return "", apperror.Internal("failed to issue embed token", err)
	}
	return item.Token, nil
}

// GetOrCreateScenarioToken serves the legacy per-scenario embed flow.
func (s *Service) GetOrCreateScenarioToken(ctx context.Context, caller auth.Caller, scenarioID string) (string, error) {
	if !caller.IsManager() {
		return "", apperror.Forbidden("admin role required", nil)
	}
	if _, err := uuid.Parse(scenarioID); err != nil {
		return "", apperror.Validation("scenarioId must be a UUID", err)
	}

	scenario, err := s.conversations.GetScenario(ctx, scenarioID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return "", apperror.NotFound("scenario not found", err)
		}
		return "", apperror.Internal("failed to load scenario", err)
	}
	if !caller.CanAccess(scenario.OrganizationID) {
		return "", apperror.NotFound("scenario not found", nil)
	}

	existing, err := s.tokens.FindScenarioToken(ctx, scenario.OrganizationID, scenario.ScenarioID)
	if err == nil {
		return existing.Token, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", apperror.Internal("failed to load embed token", err)
	}

	item := model.EmbedTokenItem{
		Token:          s.newToken(),
		OrganizationID: scenario.OrganizationID,
		ScenarioID:     scenario.ScenarioID,
		Active:         true,
		CreatedBy:      caller.UserID,
		CreatedAt:      model.FormatTimestamp(s.now()),
	}
	if err := s.tokens.CreateToken(ctx, item); err != nil {
		return "", apperror.Internal("failed to issue embed token", err)
	}
	return item.Token, nil
}

// EnsureConversationToken issues a token for a conversation that has none.
func (s *Service) EnsureConversationToken(ctx context.Context, organizationID, conversationID, createdBy string) error {
	_, err := s.ensureConversationToken(ctx, organizationID, conversationID, createdBy)
	return err
}

// PurgeConversation drops the tokens of a deleted conversation.
func (s *Service) PurgeConversation(ctx context.Context, conversationID string) error {
	return s.tokens.DeleteConversationTokens(ctx, conversationID)
}

func (s *Service) ensureConversationToken(ctx context.Context, organizationID, conversationID, createdBy string) (model.EmbedTokenItem, error) {
	existing, err := s.tokens.FindConversationToken(ctx, conversationID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.EmbedTokenItem{}, err
	}

	item := model.EmbedTokenItem{
		Token:          s.newToken(),
		OrganizationID: organizationID,
		ConversationID: conversationID,
		Active:         true,
		CreatedBy:      createdBy,
		CreatedAt:      model.FormatTimestamp(s.now()),
	}
	if err := s.tokens.CreateToken(ctx, item); err != nil {
		return model.EmbedTokenItem{}, err
	}
	return item, nil
}

func (s *Service) reject(reason Reason, err *apperror.Error) error {
	embedDecisions.WithLabelValues(string(reason)).Inc()
	s.logger.Info().Str("reason", string(reason)).Msg("embed request rejected")
	return err.WithReason(string(reason))
}

func originAllowed(origin string, allowed []string) bool {
	for _, candidate := range allowed {
		if utils.NormalizeOrigin(candidate) == origin {
			return true
		}
	}
	return false
}
