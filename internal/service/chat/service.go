package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"roleplay-training-backend/internal/assistant"
	"roleplay-training-backend/internal/model"
	"roleplay-training-backend/internal/service/apperror"
	"roleplay-training-backend/internal/service/auth"
	"roleplay-training-backend/internal/service/conversation"
	"roleplay-training-backend/internal/service/credit"
	"roleplay-training-backend/internal/service/embed"
	"roleplay-training-backend/internal/service/message"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CompletionMarker in an assistant reply ends the conversation.
const CompletionMarker = "\U0001F44B"

const (
	historyWindow       = 10
	maxUserMessageChars = 4000
)

const (
	msgAINotConfigured   = "AI backend is not configured."
	msgInvalidInput      = "Invalid input."
	msgNotFound          = "Conversation not found."
	msgInactive          = "This conversation is inactive."
	msgOrgDisabled       = "This organization is disabled."
	msgOrgNotFound       = "Organization not found."
	msgScenarioNotFound  = "Scenario not found."
	msgNoCredits         = "Your credits are used up. Buy credits to continue."
	msgSpendFailed       = "Charging credits failed. Please try again."
	msgSaveFailed        = "Saving failed. Please try again."
	msgLoadFailed        = "Loading failed. Please try again."
	msgUpstreamFailure   = "Something went wrong with the AI connection. Please try again."
	msgAccessCheckFailed = "Access check failed."
)

type Source string

const (
	SourceApp   Source = "app"
	SourceEmbed Source = "embed"
)

// Event types published to a conversation room.
const (
	EventTurnCompleted         = "turn.completed"
	EventConversationCompleted = "conversation.completed"
)

type Repository interface {
	GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error)
	GetOrganization(ctx context.Context, organizationID string) (model.OrganizationItem, error)
	GetScenario(ctx context.Context, scenarioID string) (model.ScenarioItem, error)
	SetConversationStatus(ctx context.Context, conversationID string, status model.ConversationStatus, updatedAt string) error
}

type MessageStore interface {
	Append(ctx context.Context, params message.AppendParams) (model.MessageItem, error)
	ListRecent(ctx context.Context, conversationID string, limit int, roles ...model.MessageRole) ([]model.MessageItem, error)
}

type Ledger interface {
	Spend(ctx context.Context, organizationID string, amount int64, reason credit.Reason, conversationID string, createdBy *string) (int64, error)
}

type Assistant interface {
	Enabled() bool
	Respond(ctx context.Context, payload assistant.ConversationPayload) (assistant.Reply, error)
}

type EmbedAuthorizer interface {
	Authorize(ctx context.Context, req embed.AuthorizeRequest) (embed.Grant, error)
}

type Publisher interface {
	PublishConversation(ctx context.Context, conversationID string, event interface{}) error
}

type TurnRequest struct {
	ConversationID string
	UserMessage    string
}

type EmbedTurnRequest struct {
	Token          string
	ConversationID string
	UserMessage    string
	Origin         string
	ClientIP       string
}

type TurnResult struct {
	AssistantMessage string
	CreditsBalance   int64
	Completed        bool
}

// Event is the websocket payload of a finished turn.
type Event struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	Source         Source `json:"source"`
	CreditsBalance int64  `json:"creditsBalance"`
	CreatedAt      string `json:"createdAt"`
}

type Service struct {
	repo      Repository
	messages  MessageStore
	ledger    Ledger
	assistant Assistant
	embeds    EmbedAuthorizer
	publisher Publisher
	now       func() time.Time
	logger    zerolog.Logger
}

type Dependencies struct {
	Repository Repository
	Messages   MessageStore
	Ledger     Ledger
	Assistant  Assistant
	Embeds     EmbedAuthorizer
	// Publisher is optional.
	Publisher Publisher
	Now       func() time.Time
	Logger    zerolog.Logger
}

func New(deps Dependencies) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      deps.Repository,
		messages:  deps.Messages,
		ledger:    deps.Ledger,
		assistant: deps.Assistant,
		embeds:    deps.Embeds,
		publisher: deps.Publisher,
		now:       now,
		logger:    deps.Logger,
	}
}

// IsCompletionSignal reports whether an assistant reply closes the conversation.
func IsCompletionSignal(text string) bool {
	return strings.Contains(text, CompletionMarker)
}

// turn is the resolved context shared by both entry points.
type turn struct {
	source       Source
	conversation model.ConversationItem
	organization model.OrganizationItem
	userMessage  string
	createdBy    *string
}

// SendTurn runs one chat turn for an authenticated organization member.
func (s *Service) SendTurn(ctx context.Context, caller auth.Caller, req TurnRequest) (TurnResult, error) {
	userMessage, err := validateTurn(req.ConversationID, req.UserMessage)
	if err != nil {
		observeTurn(SourceApp, "invalid")
		return TurnResult{}, err
	}
	if !s.assistant.Enabled() {
		observeTurn(SourceApp, "not_configured")
		return TurnResult{}, apperror.Internal(msgAINotConfigured, assistant.ErrNotConfigured)
	}

	conv, err := s.repo.GetConversation(ctx, req.ConversationID)
	if err != nil {
		return TurnResult{}, s.fail(SourceApp, notFoundOr(err, msgNotFound))
	}
	if conv.OrganizationID != caller.OrganizationID {
		return TurnResult{}, s.fail(SourceApp, apperror.NotFound(msgNotFound, nil))
	}
	if !conv.IsActive() {
		return TurnResult{}, s.fail(SourceApp, apperror.Conflict(msgInactive, nil))
	}

	org, err := s.repo.GetOrganization(ctx, conv.OrganizationID)
	if err != nil {
		return TurnResult{}, s.fail(SourceApp, notFoundOr(err, msgOrgNotFound))
	}
	if org.IsDisabled {
		return TurnResult{}, s.fail(SourceApp, apperror.Forbidden(msgOrgDisabled, nil))
	}

	return s.run(ctx, turn{
		source:       SourceApp,
		conversation: conv,
		organization: org,
		userMessage:  userMessage,
		createdBy:    caller.CreatedBy(),
	})
}

// SendEmbedTurn runs one chat turn for an anonymous embed visitor. The
// embed controller resolves the conversation and organization.
func (s *Service) SendEmbedTurn(ctx context.Context, req EmbedTurnRequest) (TurnResult, error) {
	userMessage, err := validateTurn(req.ConversationID, req.UserMessage)
	if err != nil {
		observeTurn(SourceEmbed, "invalid")
		return TurnResult{}, err
	}
	if !s.assistant.Enabled() {
		observeTurn(SourceEmbed, "not_configured")
		return TurnResult{}, apperror.Internal(msgAINotConfigured, assistant.ErrNotConfigured)
	}

	grant, err := s.embeds.Authorize(ctx, embed.AuthorizeRequest{
		Token:          req.Token,
		ConversationID: req.ConversationID,
		Origin:         req.Origin,
		ClientIP:       req.ClientIP,
	})
	if err != nil {
		if _, ok := apperror.As(err); !ok {
			err = apperror.Internal(msgAccessCheckFailed, err)
		}
		return TurnResult{}, s.fail(SourceEmbed, err)
	}

	return s.run(ctx, turn{
		source:       SourceEmbed,
		conversation: grant.Conversation,
		organization: grant.Organization,
		userMessage:  userMessage,
	})
}

func (s *Service) run(ctx context.Context, t turn) (TurnResult, error) {
	conv := t.conversation
	org := t.organization

	if org.CreditsBalance <= 0 {
		return TurnResult{}, s.fail(t.source, apperror.PaymentRequired(msgNoCredits, 0, credit.ErrInsufficientCredits))
	}

	scenario, err := s.repo.GetScenario(ctx, conv.ScenarioID)
	if err != nil {
		return TurnResult{}, s.fail(t.source, notFoundOr(err, msgScenarioNotFound))
	}
	if scenario.OrganizationID != conv.OrganizationID {
		return TurnResult{}, s.fail(t.source, apperror.NotFound(msgScenarioNotFound, nil))
	}

	history, err := s.messages.ListRecent(ctx, conv.ConversationID, historyWindow, model.MessageRoleUser, model.MessageRoleAssistant)
	if err != nil {
		return TurnResult{}, s.fail(t.source, apperror.Internal(msgLoadFailed, err))
	}

	userMeta := map[string]interface{}{}
	if t.source == SourceEmbed {
		userMeta["source"] = string(SourceEmbed)
	}
	if _, err := s.messages.Append(ctx, message.AppendParams{
		ConversationID: conv.ConversationID,
		OrganizationID: conv.OrganizationID,
		Role:           model.MessageRoleUser,
		Content:        t.userMessage,
		InputMode:      model.InputModeText,
		Metadata:       userMeta,
		CreatedBy:      t.createdBy,
	}); err != nil {
		return TurnResult{}, s.fail(t.source, apperror.Internal(msgSaveFailed, err))
	}

	payload := assistant.BuildConversationPayload(assistant.TurnInput{
		Conversation: conv,
		Organization: org,
		Scenario:     scenario,
		History:      history,
		UserMessage:  t.userMessage,
	})
	reply, err := s.assistant.Respond(ctx, payload)
	if err != nil {
		return TurnResult{}, s.fail(t.source, apperror.Upstream(msgUpstreamFailure, err))
	}
	assistantDuration.WithLabelValues(string(t.source)).Observe(reply.Duration.Seconds())
	if err := message.CheckContent(reply.AssistantMessage); err != nil {
		return TurnResult{}, s.fail(t.source, apperror.Upstream(msgUpstreamFailure, err))
	}

	balance, err := s.ledger.Spend(ctx, org.OrganizationID, 1, credit.ReasonChatTurn, conv.ConversationID, t.createdBy)
	if err != nil {
		return TurnResult{}, s.fail(t.source, spendError(err))
	}

	assistantMeta := map[string]interface{}{
		"provider":   assistant.ProviderName,
		"durationMs": reply.Duration.Milliseconds(),
	}
	if debug, ok := decodeDebug(reply.Debug); ok {
		assistantMeta["debug"] = debug
	}
	if t.source == SourceEmbed {
		assistantMeta["source"] = string(SourceEmbed)
	}
	if _, err := s.messages.Append(ctx, message.AppendParams{
		ConversationID: conv.ConversationID,
		OrganizationID: conv.OrganizationID,
		Role:           model.MessageRoleAssistant,
		Content:        reply.AssistantMessage,
		InputMode:      model.InputModeText,
		Metadata:       assistantMeta,
	}); err != nil {
		return TurnResult{}, s.fail(t.source, apperror.Internal(msgSaveFailed, err))
	}

	result := TurnResult{AssistantMessage: reply.AssistantMessage, CreditsBalance: balance}
	if IsCompletionSignal(reply.AssistantMessage) {
		result.Completed = true
		completedConversations.Inc()
		if err := s.repo.SetConversationStatus(ctx, conv.ConversationID, model.ConversationStatusInactive, model.FormatTimestamp(s.now())); err != nil {
			s.logger.Error().Err(err).Str("conversation_id", conv.ConversationID).Msg("failed to mark conversation inactive")
		}
	}

	observeTurn(t.source, "ok")
	s.publish(ctx, t.source, conv.ConversationID, result)
	return result, nil
}

func (s *Service) publish(ctx context.Context, source Source, conversationID string, result TurnResult) {
	if s.publisher == nil {
		return
	}
	createdAt := model.FormatTimestamp(s.now())
	events := []string{EventTurnCompleted}
	if result.Completed {
		events = append(events, EventConversationCompleted)
	}
	for _, eventType := range events {
		event := Event{
			Type:           eventType,
			ConversationID: conversationID,
			Source:         source,
			CreditsBalance: result.CreditsBalance,
			CreatedAt:      createdAt,
		}
		if err := s.publisher.PublishConversation(ctx, conversationID, event); err != nil {
			s.logger.Warn().Err(err).Str("conversation_id", conversationID).Str("event", eventType).Msg("publish failed")
		}
	}
}

func (s *Service) fail(source Source, err error) error {
	outcome := string(apperror.CodeOf(err))
	observeTurn(source, outcome)
	if apperror.CodeOf(err) == apperror.CodeInternal || apperror.CodeOf(err) == apperror.CodeUpstream {
		s.logger.Error().Err(err).AnErr("cause", errors.Unwrap(err)).Str("source", string(source)).Str("outcome", outcome).Msg("chat turn failed")
	}
	return err
}

func validateTurn(conversationID, userMessage string) (string, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return "", apperror.Validation(msgInvalidInput, err)
	}
	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" || utf8.RuneCountInString(userMessage) > maxUserMessageChars {
		return "", apperror.Validation(msgInvalidInput, nil)
	}
	return userMessage, nil
}

func notFoundOr(err error, notFoundMessage string) error {
	if errors.Is(err, conversation.ErrNotFound) {
		return apperror.NotFound(notFoundMessage, err)
	}
	return apperror.Internal(msgLoadFailed, err)
}

// decodeDebug turns the raw debug JSON into plain maps and slices so it is
// stored as a document rather than as bytes.
func decodeDebug(raw json.RawMessage) (interface{}, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var debug interface{}
	if err := json.Unmarshal(raw, &debug); err != nil || debug == nil {
		return nil, false
	}
	return debug, true
}

func spendError(err error) error {
	switch {
	case errors.Is(err, credit.ErrInsufficientCredits):
		return apperror.PaymentRequired(msgNoCredits, 0, err)
	case errors.Is(err, credit.ErrTenantNotFound):
		return apperror.NotFound(msgOrgNotFound, err)
	case errors.Is(err, credit.ErrInvalidAmount):
		return apperror.Validation(msgSpendFailed, err)
	default:
		return apperror.Internal(msgSpendFailed, err)
	}
}
