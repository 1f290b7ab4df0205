package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"roleplay-training-backend/internal/database"
	"roleplay-training-backend/internal/model"
	"roleplay-training-backend/internal/service/apperror"
	"roleplay-training-backend/internal/service/auth"
	"roleplay-training-backend/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	MaxGoalLength      = 500
	MaxAllowedOrigins  = 10
	defaultMessagePage = 100
)

// EmbedTokenIssuer makes sure an embeddable conversation has an active token.
type EmbedTokenIssuer interface {
	EnsureConversationToken(ctx context.Context, organizationID, conversationID, createdBy string) error
}

// Purger removes data that belongs to a deleted conversation.
type Purger interface {
	PurgeConversation(ctx context.Context, conversationID string) error
}

type MessageLister interface {
	ListTranscript(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error)
}

type CreateParams struct {
	ScenarioID          string
	Goal                string
	PublicEmbed         bool
	EmbedAllowedOrigins []string
}

type UpdateParams struct {
	ConversationID string
	Patch          Patch
}

type Service struct {
	repo     Repository
	tokens   EmbedTokenIssuer
	messages MessageLister
	purgers  []Purger
	now      func() time.Time
	newID    func() string
	logger   zerolog.Logger
}

type Option func(*Service)

func WithEmbedTokens(tokens EmbedTokenIssuer) Option {
	return func(s *Service) { s.tokens = tokens }
}

func WithMessages(messages MessageLister) Option {
	return func(s *Service) { s.messages = messages }
}

// WithPurgers registers cleanup hooks run after a conversation is deleted.
func WithPurgers(purgers ...Purger) Option {
	return func(s *Service) { s.purgers = append(s.purgers, purgers...) }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(db *database.Database, opts ...Option) *Service {
	return NewWithRepository(NewDynamoRepository(db), nil, opts...)
}

func NewWithRepository(repo Repository, now func() time.Time, opts ...Option) *Service {
	if now == nil {
		now = time.Now
	}
	s := &Service{
		repo:   repo,
		now:    now,
		newID:  uuid.NewString,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a conversation on one of the caller's organization scenarios.
func (s *Service) Create(ctx context.Context, caller auth.Caller, params CreateParams) (model.ConversationItem, error) {
	if caller.OrganizationID == "" {
		return model.ConversationItem{}, apperror.Forbidden("caller has no organization", nil)
	}
	if _, err := uuid.Parse(params.ScenarioID); err != nil {
		return model.ConversationItem{}, apperror.Validation("scenarioId must be a UUID", err)
	}

	goal := strings.TrimSpace(params.Goal)
	if len(goal) > MaxGoalLength {
		return model.ConversationItem{}, apperror.Validation(fmt.Sprintf("goal must be at most %d characters", MaxGoalLength), nil)
	}

	origins, err := normalizeOrigins(params.EmbedAllowedOrigins)
	if err != nil {
		return model.ConversationItem{}, err
	}

	scenario, err := s.repo.GetScenario(ctx, params.ScenarioID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ConversationItem{}, apperror.NotFound("scenario not found", err)
		}
		return model.ConversationItem{}, apperror.Internal("failed to load scenario", err)
	}
	if scenario.OrganizationID != caller.OrganizationID {
		return model.ConversationItem{}, apperror.NotFound("scenario not found", nil)
	}

	now := model.FormatTimestamp(s.now())
	item := model.ConversationItem{
		ConversationID:      s.newID(),
		OrganizationID:      caller.OrganizationID,
		ScenarioID:          scenario.ScenarioID,
		StartedBy:           caller.UserID,
		Status:              model.ConversationStatusActive,
		Mode:                model.ConversationModeText,
		Goal:                goal,
		PublicEmbedEnabled:  params.PublicEmbed,
		EmbedAllowedOrigins: origins,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.repo.CreateConversation(ctx, item); err != nil {
		return model.ConversationItem{}, apperror.Internal("failed to create conversation", err)
	}

	if item.PublicEmbedEnabled {
		s.ensureToken(ctx, item, caller.UserID)
	}

	return item, nil
}

// Update changes conversation settings. Only managers may call it, and only
// platform admins may reach other organizations.
func (s *Service) Update(ctx context.Context, caller auth.Caller, params UpdateParams) (model.ConversationItem, error) {
	if !caller.IsManager() {
		return model.ConversationItem{}, apperror.Forbidden("admin role required", nil)
	}

	patch := params.Patch
	if patch.empty() {
		return model.ConversationItem{}, apperror.Validation("no fields to update", nil)
	}
	if patch.Goal != nil {
		goal := strings.TrimSpace(*patch.Goal)
		if len(goal) > MaxGoalLength {
			return model.ConversationItem{}, apperror.Validation(fmt.Sprintf("goal must be at most %d characters", MaxGoalLength), nil)
		}
		patch.Goal = &goal
	}
	if patch.EmbedAllowedOrigins != nil {
		origins, err := normalizeOrigins(*patch.EmbedAllowedOrigins)
		if err != nil {
			return model.ConversationItem{}, err
		}
		patch.EmbedAllowedOrigins = &origins
	}
	if patch.Status != nil && *patch.Status != model.ConversationStatusActive && *patch.Status != model.ConversationStatusInactive {
		return model.ConversationItem{}, apperror.Validation("status must be active or inactive", nil)
	}
	if patch.Mode != nil && *patch.Mode != model.ConversationModeText && *patch.Mode != model.ConversationModeVoice {
		return model.ConversationItem{}, apperror.Validation("mode must be text or voice", nil)
	}

	if _, err := s.load(ctx, caller, params.ConversationID); err != nil {
		return model.ConversationItem{}, err
	}

	updated, err := s.repo.UpdateConversation(ctx, params.ConversationID, patch, model.FormatTimestamp(s.now()))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ConversationItem{}, apperror.NotFound("conversation not found", err)
		}
		return model.ConversationItem{}, apperror.Internal("failed to update conversation", err)
	}

	if patch.PublicEmbedEnabled != nil && *patch.PublicEmbedEnabled {
		s.ensureToken(ctx, updated, caller.UserID)
	}

	return updated, nil
}

// Delete removes the conversation and then its messages, tokens and review.
// Credit ledger entries are kept and still name the conversation.
func (s *Service) Delete(ctx context.Context, caller auth.Caller, conversationID string) error {
	if !caller.IsManager() {
		return apperror.Forbidden("admin role required", nil)
	}
	if _, err := s.load(ctx, caller, conversationID); err != nil {
		return err
	}

	if err := s.repo.DeleteConversation(ctx, conversationID); err != nil {
		return apperror.Internal("failed to delete conversation", err)
	}

	for _, p := range s.purgers {
		if err := p.PurgeConversation(ctx, conversationID); err != nil {
			s.logger.Error().Err(err).Str("conversation_id", conversationID).Msg("conversation cleanup failed")
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, caller auth.Caller, conversationID string) (model.ConversationItem, error) {
	return s.load(ctx, caller, conversationID)
}

// Messages returns the visible transcript, oldest first.
func (s *Service) Messages(ctx context.Context, caller auth.Caller, conversationID string, limit int) ([]model.MessageItem, error) {
	if s.messages == nil {
		return nil, apperror.Internal("message store not configured", nil)
	}
	if _, err := s.load(ctx, caller, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessagePage
	}

	items, err := s.messages.ListTranscript(ctx, conversationID, limit)
	if err != nil {
		return nil, apperror.Internal("failed to load messages", err)
	}
	return items, nil
}

func (s *Service) load(ctx context.Context, caller auth.Caller, conversationID string) (model.ConversationItem, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return model.ConversationItem{}, apperror.Validation("conversationId must be a UUID", err)
	}

	item, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ConversationItem{}, apperror.NotFound("conversation not found", err)
		}
		return model.ConversationItem{}, apperror.Internal("failed to load conversation", err)
	}
	if !caller.CanAccess(item.OrganizationID) {
		return model.ConversationItem{}, apperror.NotFound("conversation not found", nil)
	}
	return item, nil
}

func (s *Service) ensureToken(ctx context.Context, item model.ConversationItem, createdBy string) {
	if s.tokens == nil {
		return
	}
	if err := s.tokens.EnsureConversationToken(ctx, item.OrganizationID, item.ConversationID, createdBy); err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", item.ConversationID).Msg("failed to issue embed token")
	}
}

func normalizeOrigins(in []string) ([]string, error) {
	if len(in) > MaxAllowedOrigins {
		return nil, apperror.Validation(fmt.Sprintf("at most %d embed origins are allowed", MaxAllowedOrigins), nil)
	}

	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		origin := utils.NormalizeOrigin(raw)
		if origin == "" {
			return nil, apperror.Validation(fmt.Sprintf("invalid embed origin %q", raw), nil)
		}
		if _, ok := seen[origin]; ok {
			continue
		}
		seen[origin] = struct{}{}
		out = append(out, origin)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
