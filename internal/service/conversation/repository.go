package conversation

import (
	"context"
	"errors"
	"strings"

	"roleplay-training-backend/internal/database"
	"roleplay-training-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var ErrNotFound = errors.New("conversation repository: not found")

// Patch lists the fields an update may change. Nil fields are left alone.
// A non-nil, empty EmbedAllowedOrigins clears the allow-list.
type Patch struct {
	Goal                *string
	PublicEmbedEnabled  *bool
	EmbedAllowedOrigins *[]string
	Status              *model.ConversationStatus
	Mode                *model.ConversationMode
}

func (p Patch) empty() bool {
	return p.Goal == nil && p.PublicEmbedEnabled == nil && p.EmbedAllowedOrigins == nil && p.Status == nil && p.Mode == nil
}

type Repository interface {
	GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error)
	CreateConversation(ctx context.Context, item model.ConversationItem) error
	UpdateConversation(ctx context.Context, conversationID string, patch Patch, updatedAt string) (model.ConversationItem, error)
	SetConversationStatus(ctx context.Context, conversationID string, status model.ConversationStatus, updatedAt string) error
	DeleteConversation(ctx context.Context, conversationID string) error
	GetScenario(ctx context.Context, scenarioID string) (model.ScenarioItem, error)
	GetOrganization(ctx context.Context, organizationID string) (model.OrganizationItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) *DynamoRepository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	var item model.ConversationItem
	if err := r.get(ctx, model.ConversationsTable, "conversationId", conversationID, &item); err != nil {
		return model.ConversationItem{}, err
	}
	return item, nil
}

func (r *DynamoRepository) CreateConversation(ctx context.Context, item model.ConversationItem) error {
	return r.db.Client.PutItemIfAbsent(ctx, model.ConversationsTable, "conversationId", item)
}

func (r *DynamoRepository) UpdateConversation(ctx context.Context, conversationID string, patch Patch, updatedAt string) (model.ConversationItem, error) {
	sets := []string{"updatedAt = :updatedAt"}
	var removes []string
	values := map[string]types.AttributeValue{
		":updatedAt": &types.AttributeValueMemberS{Value: updatedAt},
	}
	names := map[string]string{}

	if patch.Goal != nil {
		if *patch.Goal == "" {
			removes = append(removes, "goal")
		} else {
			sets = append(sets, "goal = :goal")
			values[":goal"] = &types.AttributeValueMemberS{Value: *patch.Goal}
		}
	}
	if patch.PublicEmbedEnabled != nil {
		sets = append(sets, "publicEmbedEnabled = :publicEmbedEnabled")
		values[":publicEmbedEnabled"] = &types.AttributeValueMemberBOOL{Value: *patch.PublicEmbedEnabled}
	}
	if patch.EmbedAllowedOrigins != nil {
		if len(*patch.EmbedAllowedOrigins) == 0 {
			removes = append(removes, "embedAllowedOrigins")
		} else {
			av, err := attributevalue.Marshal(*patch.EmbedAllowedOrigins)
			if err != nil {
				return model.ConversationItem{}, err
			}
			sets = append(sets, "embedAllowedOrigins = :origins")
			values[":origins"] = av
		}
	}
	if patch.Status != nil {
		sets = append(sets, "#status = :status")
		names["#status"] = "status"
		values[":status"] = &types.AttributeValueMemberS{Value: string(*patch.Status)}
	}
	if patch.Mode != nil {
		sets = append(sets, "#mode = :mode")
		names["#mode"] = "mode"
		values[":mode"] = &types.AttributeValueMemberS{Value: string(*patch.Mode)}
	}

	expr := "SET " + strings.Join(sets, ", ")
	if len(removes) > 0 {
		expr += " REMOVE " + strings.Join(removes, ", ")
	}

	var item model.ConversationItem
	err := r.db.Client.UpdateItem(
		ctx,
		model.ConversationsTable,
		database.StringKey("conversationId", conversationID),
		expr,
		"attribute_exists(conversationId)",
		values,
		names,
		&item,
	)
	if err != nil {
		if errors.Is(err, database.ErrConditionFailed) {
			return model.ConversationItem{}, ErrNotFound
		}
		return model.ConversationItem{}, err
	}
	return item, nil
}

func (r *DynamoRepository) SetConversationStatus(ctx context.Context, conversationID string, status model.ConversationStatus, updatedAt string) error {
	_, err := r.UpdateConversation(ctx, conversationID, Patch{Status: &status}, updatedAt)
	return err
}

func (r *DynamoRepository) DeleteConversation(ctx context.Context, conversationID string) error {
	return r.db.Client.DeleteItem(ctx, model.ConversationsTable, database.StringKey("conversationId", conversationID))
}

func (r *DynamoRepository) GetScenario(ctx context.Context, scenarioID string) (model.ScenarioItem, error) {
	var item model.ScenarioItem
	if err := r.get(ctx, model.ScenariosTable, "scenarioId", scenarioID, &item); err != nil {
		return model.ScenarioItem{}, err
	}
	return item, nil
}

func (r *DynamoRepository) GetOrganization(ctx context.Context, organizationID string) (model.OrganizationItem, error) {
	var item model.OrganizationItem
	if err := r.get(ctx, model.OrganizationsTable, "organizationId", organizationID, &item); err != nil {
		return model.OrganizationItem{}, err
	}
	return item, nil
}

func (r *DynamoRepository) get(ctx context.Context, table, keyName, keyValue string, out interface{}) error {
	if keyValue == "" {
		return ErrNotFound
	}
	err := r.db.Client.GetItem(ctx, table, database.StringKey(keyName, keyValue), out)
	if err != nil {
		if errors.Is(err, database.ErrItemNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
