package message

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"roleplay-training-backend/internal/database"
	"roleplay-training-backend/internal/model"

	"github.com/google/uuid"
)

const (
	// MaxContentBytes keeps a message and its metadata under the 400 KB
	// DynamoDB item limit.
	MaxContentBytes = 350 * 1024
	// MaxListLimit bounds ListRecent and ListTranscript.
	MaxListLimit = 500
)

var ErrInvalidMessage = errors.New("message store: invalid message")

type AppendParams struct {
	ConversationID string
	OrganizationID string
	Role           model.MessageRole
	Content        string
	InputMode      model.InputMode
	AudioURL       string
	Metadata       map[string]interface{}
	CreatedBy      *string
}

// Store is the append-only message log of every conversation.
type Store struct {
	repo  Repository
	now   func() time.Time
	newID func() string
}

func New(db *database.Database) *Store {
	return NewWithRepository(NewDynamoRepository(db), nil)
}

func NewWithRepository(repo Repository, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		repo:  repo,
		now:   now,
		newID: uuid.NewString,
	}
}

// CheckContent reports whether content can be stored as one message.
func CheckContent(content string) error {
	if content == "" || len(content) > MaxContentBytes {
		return fmt.Errorf("%w: content length %d", ErrInvalidMessage, len(content))
	}
	return nil
}

func (s *Store) Append(ctx context.Context, params AppendParams) (model.MessageItem, error) {
	if strings.TrimSpace(params.ConversationID) == "" || strings.TrimSpace(params.OrganizationID) == "" {
		return model.MessageItem{}, fmt.Errorf("%w: conversation and organization are required", ErrInvalidMessage)
	}
	switch params.Role {
	case model.MessageRoleUser, model.MessageRoleAssistant, model.MessageRoleSystem:
	default:
		return model.MessageItem{}, fmt.Errorf("%w: unknown role %q", ErrInvalidMessage, params.Role)
	}
	if err := CheckContent(params.Content); err != nil {
		return model.MessageItem{}, err
	}

	inputMode := params.InputMode
	if inputMode == "" {
		inputMode = model.InputModeText
	}

	id := s.newID()
	createdAt := model.FormatTimestamp(s.now())
	item := model.MessageItem{
		ConversationID: params.ConversationID,
		SortKey:        model.SortKey(createdAt, id),
		MessageID:      id,
		OrganizationID: params.OrganizationID,
		Role:           params.Role,
		Content:        params.Content,
		InputMode:      inputMode,
		AudioURL:       params.AudioURL,
		Metadata:       params.Metadata,
		CreatedBy:      params.CreatedBy,
		CreatedAt:      createdAt,
	}

	if err := s.repo.PutMessage(ctx, item); err != nil {
		return model.MessageItem{}, fmt.Errorf("append message: %w", err)
	}
	return item, nil
}

// ListRecent returns the most recent limit messages with one of roles,
// ordered oldest first.
func (s *Store) ListRecent(ctx context.Context, conversationID string, limit int, roles ...model.MessageRole) ([]model.MessageItem, error) {
	limit = clampLimit(limit)

	items, err := s.repo.ListMessages(ctx, conversationID, true, limit, roles)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}

	sortAscending(items)
	return items, nil
}

// ListTranscript returns the first limit user and assistant messages of a
// conversation, oldest first.
func (s *Store) ListTranscript(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error) {
	limit = clampLimit(limit)

	items, err := s.repo.ListMessages(ctx, conversationID, false, limit, []model.MessageRole{model.MessageRoleUser, model.MessageRoleAssistant})
	if err != nil {
		return nil, fmt.Errorf("list transcript: %w", err)
	}

	sortAscending(items)
	return items, nil
}

// PurgeConversation removes every message of a deleted conversation.
func (s *Store) PurgeConversation(ctx context.Context, conversationID string) error {
	if err := s.repo.DeleteMessages(ctx, conversationID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 1
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func sortAscending(items []model.MessageItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt != items[j].CreatedAt {
			return items[i].CreatedAt < items[j].CreatedAt
		}
		return items[i].MessageID < items[j].MessageID
	})
}
