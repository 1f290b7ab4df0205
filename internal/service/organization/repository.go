package organization

import (
	"context"
	"errors"

	"roleplay-training-backend/internal/database"
	"roleplay-training-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var (
	ErrNotFound  = errors.New("organization repository: not found")
	ErrSlugTaken = errors.New("organization repository: slug taken")
)

type Repository interface {
	GetOrganization(ctx context.Context, organizationID string) (model.OrganizationItem, error)
	// CreateOrganization stores item and reserves its slug in one
	// transaction. A reserved slug yields ErrSlugTaken.
	CreateOrganization(ctx context.Context, item model.OrganizationItem) error
	SetDisabled(ctx context.Context, organizationID string, disabled bool, updatedAt string) (model.OrganizationItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) *DynamoRepository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetOrganization(ctx context.Context, organizationID string) (model.OrganizationItem, error) {
	var item model.OrganizationItem
	err := r.db.Client.GetItem(ctx, model.OrganizationsTable, database.StringKey("organizationId", organizationID), &item)
	if err != nil {
		if errors.Is(err, database.ErrItemNotFound) {
			return model.OrganizationItem{}, ErrNotFound
		}
		return model.OrganizationItem{}, err
	}
	return item, nil
}

func (r *DynamoRepository) CreateOrganization(ctx context.Context, item model.OrganizationItem) error {
	slug, err := database.TransactPut(
		model.OrganizationSlugsTable,
		model.OrganizationSlugItem{Slug: item.Slug, OrganizationID: item.OrganizationID},
		"attribute_not_exists(slug)",
		nil,
	)
	if err != nil {
		return err
	}
	org, err := database.TransactPut(
		model.OrganizationsTable,
		item,
		"attribute_not_exists(organizationId)",
		nil,
	)
	if err != nil {
		return err
	}

	err = r.db.Client.TransactWriteItems(ctx, []types.TransactWriteItem{slug, org})
	var canceled *database.TransactionCanceledError
	if errors.As(err, &canceled) && canceled.ConditionFailedAt(0) {
		return ErrSlugTaken
	}
	return err
}

func (r *DynamoRepository) SetDisabled(ctx context.Context, organizationID string, disabled bool, updatedAt string) (model.OrganizationItem, error) {
	var updated model.OrganizationItem
	err := r.db.Client.UpdateItem(
		ctx,
		model.OrganizationsTable,
		database.StringKey("organizationId", organizationID),
		"SET isDisabled = :disabled, updatedAt = :now",
		"attribute_exists(organizationId)",
		map[string]types.AttributeValue{
			":disabled": &types.AttributeValueMemberBOOL{Value: disabled},
			":now":      &types.AttributeValueMemberS{Value: updatedAt},
		},
		nil,
		&updated,
	)
	if err != nil {
		if errors.Is(err, database.ErrConditionFailed) {
			return model.OrganizationItem{}, ErrNotFound
		}
		return model.OrganizationItem{}, err
	}
	return updated, nil
}
