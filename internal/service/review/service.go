package review

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"roleplay-training-backend/internal/assistant"
	"roleplay-training-backend/internal/model"
	"roleplay-training-backend/internal/service/apperror"
	"roleplay-training-backend/internal/service/auth"
	"roleplay-training-backend/internal/service/conversation"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// TranscriptLimit caps the messages sent to the evaluator.
const TranscriptLimit = 500

// EventReviewCreated is published to the conversation room.
const EventReviewCreated = "review.created"

const (
	msgAINotConfigured = "AI backend is not configured."
	msgInvalidInput    = "Invalid input."
	msgNoAccess        = "No access."
	msgNotFound        = "Conversation not found."
	msgLoadFailed      = "Loading the review failed."
	msgMessagesFailed  = "Loading messages failed."
	msgSaveFailed      = "Saving the review failed."
	msgUpstreamFailure = "Something went wrong with the AI connection. Please try again."
	msgEmptyReview     = "Review is empty or invalid."
	msgInvalidReview   = "Review has an invalid format."
)

type ConversationReader interface {
	GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error)
}

type Transcripts interface {
	ListTranscript(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error)
}

type Evaluator interface {
	Enabled() bool
	Evaluate(ctx context.Context, payload assistant.ReviewPayload) (json.RawMessage, error)
}

type Publisher interface {
	PublishConversation(ctx context.Context, conversationID string, event interface{}) error
}

// Review is what callers see. Review holds the evaluator object verbatim.
type Review struct {
	Review          json.RawMessage `json:"review"`
	FeedbackSummary *string         `json:"feedbackSummary"`
	IsPassed        *bool           `json:"isPassed"`
	CreatedAt       string          `json:"createdAt"`
}

type Event struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	CreatedAt      string `json:"createdAt"`
}

type Service struct {
	repo          Repository
	conversations ConversationReader
	transcripts   Transcripts
	evaluator     Evaluator
	publisher     Publisher
	group         singleflight.Group
	now           func() time.Time
	newID         func() string
	logger        zerolog.Logger
}

type Dependencies struct {
	Repository    Repository
	Conversations ConversationReader
	Transcripts   Transcripts
	Evaluator     Evaluator
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
		repo:          deps.Repository,
		conversations: deps.Conversations,
		transcripts:   deps.Transcripts,
		evaluator:     deps.Evaluator,
		publisher:     deps.Publisher,
		now:           now,
		newID:         uuid.NewString,
		logger:        deps.Logger,
	}
}

// GetOrCreate returns the stored review of a conversation, evaluating the
// transcript once when there is none. Concurrent callers share one result.
func (s *Service) GetOrCreate(ctx context.Context, caller auth.Caller, conversationID string) (Review, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return Review{}, apperror.Validation(msgInvalidInput, err)
	}
	if !s.evaluator.Enabled() {
		return Review{}, apperror.Internal(msgAINotConfigured, assistant.ErrNotConfigured)
	}
	if caller.OrganizationID == "" && !caller.IsPlatformAdmin() {
		return Review{}, apperror.Forbidden(msgNoAccess, nil)
	}

	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return Review{}, apperror.NotFound(msgNotFound, err)
		}
		return Review{}, apperror.Internal(msgLoadFailed, err)
	}
	if !caller.CanAccess(conv.OrganizationID) {
		return Review{}, apperror.Forbidden(msgNoAccess, nil)
	}

	v, err, _ := s.group.Do(conversationID, func() (interface{}, error) {
		return s.getOrCreate(ctx, conv)
	})
	if err != nil {
		reviewsTotal.WithLabelValues("failed").Inc()
		return Review{}, err
	}
	return v.(Review), nil
}

// PurgeConversation drops the review of a deleted conversation.
func (s *Service) PurgeConversation(ctx context.Context, conversationID string) error {
	err := s.repo.DeleteReview(ctx, conversationID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (s *Service) getOrCreate(ctx context.Context, conv model.ConversationItem) (Review, error) {
	existing, err := s.repo.GetReview(ctx, conv.ConversationID)
	if err == nil {
		reviewsTotal.WithLabelValues("cached").Inc()
		return fromItem(existing), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Review{}, apperror.Internal(msgLoadFailed, err)
	}

	transcript, err := s.transcripts.ListTranscript(ctx, conv.ConversationID, TranscriptLimit)
	if err != nil {
		return Review{}, apperror.Internal(msgMessagesFailed, err)
	}

	raw, err := s.evaluator.Evaluate(ctx, assistant.BuildReviewPayload(conv.ConversationID, transcript))
	if err != nil {
		if errors.Is(err, assistant.ErrMalformed) {
			return Review{}, apperror.Upstream(msgEmptyReview, err)
		}
		return Review{}, apperror.Upstream(msgUpstreamFailure, err)
	}

	evaluation, stored, err := ParseEvaluation(raw)
	if err != nil {
		if errors.Is(err, ErrInvalidEvaluation) {
			return Review{}, apperror.Upstream(msgInvalidReview, err)
		}
		return Review{}, apperror.Upstream(msgEmptyReview, err)
	}

	summary := evaluation.FeedbackSummary
	passed := evaluation.IsPassed
	item := model.ConversationReviewItem{
		ConversationID:  conv.ConversationID,
		ReviewID:        s.newID(),
		OrganizationID:  conv.OrganizationID,
		ReviewJSON:      string(stored),
		FeedbackSummary: &summary,
		IsPassed:        &passed,
		CreatedAt:       model.FormatTimestamp(s.now()),
	}

	if err := s.repo.CreateReview(ctx, item); err != nil {
		if !errors.Is(err, ErrAlreadyExists) {
			return Review{}, apperror.Internal(msgSaveFailed, err)
		}
		// Another instance stored its review first; that one wins.
		winner, err := s.repo.GetReview(ctx, conv.ConversationID)
		if err != nil {
			return Review{}, apperror.Internal(msgLoadFailed, err)
		}
		reviewsTotal.WithLabelValues("cached").Inc()
		return fromItem(winner), nil
	}

	reviewsTotal.WithLabelValues("created").Inc()
	s.logger.Info().
		Str("conversation_id", conv.ConversationID).
		Bool("is_passed", passed).
		Int("transcript_messages", len(transcript)).
		Msg("review created")

	if s.publisher != nil {
		event := Event{Type: EventReviewCreated, ConversationID: conv.ConversationID, CreatedAt: item.CreatedAt}
		if err := s.publisher.PublishConversation(ctx, conv.ConversationID, event); err != nil {
			s.logger.Warn().Err(err).Str("conversation_id", conv.ConversationID).Msg("publish failed")
		}
	}
	return fromItem(item), nil
}

func fromItem(item model.ConversationReviewItem) Review {
	return Review{
		Review:          json.RawMessage(item.ReviewJSON),
		FeedbackSummary: item.FeedbackSummary,
		IsPassed:        item.IsPassed,
		CreatedAt:       item.CreatedAt,
	}
}
