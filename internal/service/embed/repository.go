package embed

import (
	"context"
	"errors"
	"fmt"

	"roleplay-training-backend/internal/database"
	"roleplay-training-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("embed repository: not found")

type Repository interface {
	GetToken(ctx context.Context, token string) (model.EmbedTokenItem, error)
	// FindConversationToken returns the newest active token of a conversation.
	FindConversationToken(ctx context.Context, conversationID string) (model.EmbedTokenItem, error)
	// FindScenarioToken returns the newest active token of a scenario.
	FindScenarioToken(ctx context.Context, organizationID, scenarioID string) (model.EmbedTokenItem, error)
	CreateToken(ctx context.Context, item model.EmbedTokenItem) error
	DeleteConversationTokens(ctx context.Context, conversationID string) error
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) *DynamoRepository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetToken(ctx context.Context, token string) (model.EmbedTokenItem, error) {
	var item model.EmbedTokenItem
	err := r.db.Client.GetItem(ctx, model.EmbedTokensTable, database.StringKey("token", token), &item)
	if err != nil {
		if errors.Is(err, database.ErrItemNotFound) {
			return model.EmbedTokenItem{}, ErrNotFound
		}
		return model.EmbedTokenItem{}, err
	}
	return item, nil
}

func (r *DynamoRepository) FindConversationToken(ctx context.Context, conversationID string) (model.EmbedTokenItem, error) {
	items, err := r.queryIndex(ctx, model.EmbedTokensByConversationIndex, "conversationId", conversationID)
	if err != nil {
		return model.EmbedTokenItem{}, err
	}
	for _, item := range items {
		if item.Active {
			return item, nil
		}
	}
	return model.EmbedTokenItem{}, ErrNotFound
}

func (r *DynamoRepository) FindScenarioToken(ctx context.Context, organizationID, scenarioID string) (model.EmbedTokenItem, error) {
	items, err := r.queryIndex(ctx, model.EmbedTokensByScenarioIndex, "scenarioId", scenarioID)
	if err != nil {
		return model.EmbedTokenItem{}, err
	}
	for _, item := range items {
		if item.Active && item.OrganizationID == organizationID {
			return item, nil
		}
	}
	return model.EmbedTokenItem{}, ErrNotFound
}

func (r *DynamoRepository) CreateToken(ctx context.Context, item model.EmbedTokenItem) error {
	return r.db.Client.PutItemIfAbsent(ctx, model.EmbedTokensTable, "token", item)
}

func (r *DynamoRepository) DeleteConversationTokens(ctx context.Context, conversationID string) error {
	items, err := r.queryIndex(ctx, model.EmbedTokensByConversationIndex, "conversationId", conversationID)
	if err != nil {
		return err
	}

	keys := make([]map[string]types.AttributeValue, 0, len(items))
	for _, item := range items {
		keys = append(keys, database.StringKey("token", item.Token))
	}
	return r.db.Client.BatchDeleteItems(ctx, model.EmbedTokensTable, keys)
}

func (r *DynamoRepository) queryIndex(ctx context.Context, index, attr, value string) ([]model.EmbedTokenItem, error) {
	raw, err := r.db.Client.QueryItems(
		ctx,
		model.EmbedTokensTable,
		aws.String(index),
		"#k = :v",
		map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberS{Value: value},
		},
		map[string]string{"#k": attr},
		aws.Bool(false),
	)
	if err != nil {
		return nil, err
	}

	items := make([]model.EmbedTokenItem, 0, len(raw))
	for _, av := range raw {
		var item model.EmbedTokenItem
		if err := attributevalue.UnmarshalMap(av, &item); err != nil {
			return nil, fmt.Errorf("unmarshal embed token: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}
