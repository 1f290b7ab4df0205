package message

import (
	"context"
	"fmt"

	"roleplay-training-backend/internal/database"
	"roleplay-training-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Repository interface {
	PutMessage(ctx context.Context, item model.MessageItem) error
	// ListMessages returns up to limit messages of the given roles, newest
	// first when newestFirst is set and oldest first otherwise. A nil roles
	// slice matches every role.
	ListMessages(ctx context.Context, conversationID string, newestFirst bool, limit int, roles []model.MessageRole) ([]model.MessageItem, error)
	DeleteMessages(ctx context.Context, conversationID string) error
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) *DynamoRepository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) PutMessage(ctx context.Context, item model.MessageItem) error {
	return r.db.Client.PutItem(ctx, model.MessagesTable, item)
}

func (r *DynamoRepository) ListMessages(
	ctx context.Context,
	conversationID string,
	newestFirst bool,
	limit int,
	roles []model.MessageRole,
) ([]model.MessageItem, error) {
	pageSize := limit
	if len(roles) > 0 {
		pageSize = limit * 2
	}

	values := map[string]types.AttributeValue{
		":conversationId": &types.AttributeValueMemberS{Value: conversationID},
	}

	var (
		out     []model.MessageItem
		lastKey map[string]types.AttributeValue
	)
	for {
		page, err := r.db.Client.QueryPaginated(
			ctx,
			model.MessagesTable,
			nil,
			"conversationId = :conversationId",
			values,
			pageSize,
			lastKey,
			aws.Bool(!newestFirst),
		)
		if err != nil {
			return nil, err
		}

		for _, raw := range page.Items {
			var item model.MessageItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("unmarshal message: %w", err)
			}
			if !matchesRole(item.Role, roles) {
				continue
			}
			out = append(out, item)
			if len(out) == limit {
				return out, nil
			}
		}

		if !page.HasMore {
			return out, nil
		}
		lastKey = page.LastEvaluatedKey
	}
}

func (r *DynamoRepository) DeleteMessages(ctx context.Context, conversationID string) error {
	items, err := r.db.Client.QueryAll(
		ctx,
		model.MessagesTable,
		nil,
		"conversationId = :conversationId",
		map[string]types.AttributeValue{
			":conversationId": &types.AttributeValueMemberS{Value: conversationID},
		},
	)
	if err != nil {
		return err
	}

	keys := make([]map[string]types.AttributeValue, 0, len(items))
	for _, item := range items {
		keys = append(keys, map[string]types.AttributeValue{
			"conversationId": item["conversationId"],
			"sortKey":        item["sortKey"],
		})
	}
	return r.db.Client.BatchDeleteItems(ctx, model.MessagesTable, keys)
}

func matchesRole(role model.MessageRole, roles []model.MessageRole) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
