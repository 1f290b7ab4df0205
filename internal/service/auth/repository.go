package auth

import (
	"context"
	"errors"

	"roleplay-training-backend/internal/database"
	"roleplay-training-backend/internal/model"
)

var ErrNotFound = errors.New("auth repository: not found")

type Repository interface {
	GetProfile(ctx context.Context, userID string) (model.ProfileItem, error)
	PutProfile(ctx context.Context, profile model.ProfileItem) error
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) *DynamoRepository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetProfile(ctx context.Context, userID string) (model.ProfileItem, error) {
	var profile model.ProfileItem
	err := r.db.Client.GetItem(ctx, model.ProfilesTable, database.StringKey("userId", userID), &profile)
	if err != nil {
		if errors.Is(err, database.ErrItemNotFound) {
			return model.ProfileItem{}, ErrNotFound
		}
		return model.ProfileItem{}, err
	}
	return profile, nil
}

func (r *DynamoRepository) PutProfile(ctx context.Context, profile model.ProfileItem) error {
	return r.db.Client.PutItem(ctx, model.ProfilesTable, profile)
}
