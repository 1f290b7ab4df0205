package review

import (
	"context"
	"errors"

	"roleplay-training-backend/internal/database"
	"roleplay-training-backend/internal/model"
)

var (
	ErrNotFound      = errors.New("review repository: not found")
	ErrAlreadyExists = errors.New("review repository: review already exists")
)

type Repository interface {
	GetReview(ctx context.Context, conversationID string) (model.ConversationReviewItem, error)
	// CreateReview stores item unless the conversation already has a review,
	// in which case it returns ErrAlreadyExists.
	CreateReview(ctx context.Context, item model.ConversationReviewItem) error
	DeleteReview(ctx context.Context, conversationID string) error
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) *DynamoRepository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetReview(ctx context.Context, conversationID string) (model.ConversationReviewItem, error) {
	var item model.ConversationReviewItem
	// Consistent so a creator that lost the conditional put sees the winner.
	err := r.db.Client.GetItemConsistent(ctx, model.ConversationReviewsTable, database.StringKey("conversationId", conversationID), &item)
	if err != nil {
		if errors.Is(err, database.ErrItemNotFound) {
			return model.ConversationReviewItem{}, ErrNotFound
		}
		return model.ConversationReviewItem{}, err
	}
	return item, nil
}

func (r *DynamoRepository) CreateReview(ctx context.Context, item model.ConversationReviewItem) error {
	err := r.db.Client.PutItemIfAbsent(ctx, model.ConversationReviewsTable, "conversationId", item)
	if errors.Is(err, database.ErrConditionFailed) {
		return ErrAlreadyExists
	}
	return err
}

func (r *DynamoRepository) DeleteReview(ctx context.Context, conversationID string) error {
	return r.db.Client.DeleteItem(ctx, model.ConversationReviewsTable, database.StringKey("conversationId", conversationID))
}
