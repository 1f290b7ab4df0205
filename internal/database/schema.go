package database

import (
	"context"
	"fmt"

	"roleplay-training-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TableSpec describes one table: its hash key, optional range key, and any
// global secondary indexes. All key attributes are strings.
type TableSpec struct {
	Name    string
	HashKey string
	Range   string
	Indexes []IndexSpec
}

type IndexSpec struct {
	Name    string
	HashKey string
	Range   string
}

// Schema lists every table the backend reads or writes.
func Schema() []TableSpec {
	return []TableSpec{
		{Name: model.OrganizationsTable, HashKey: "organizationId"},
		{Name: model.OrganizationSlugsTable, HashKey: "slug"},
		{Name: model.ProfilesTable, HashKey: "userId"},
		{Name: model.ScenariosTable, HashKey: "scenarioId"},
		{Name: model.ConversationsTable, HashKey: "conversationId"},
		{Name: model.MessagesTable, HashKey: "conversationId", Range: "sortKey"},
		{Name: model.CreditLedgerTable, HashKey: "organizationId", Range: "entryKey"},
		{
			Name:    model.EmbedTokensTable,
			HashKey: "token",
			Indexes: []IndexSpec{
				{Name: model.EmbedTokensByConversationIndex, HashKey: "conversationId", Range: "createdAt"},
				{Name: model.EmbedTokensByScenarioIndex, HashKey: "scenarioId", Range: "createdAt"},
			},
		},
		{Name: model.ConversationReviewsTable, HashKey: "conversationId"},
	}
}

func (c *DynamoDBClient) ListTables(ctx context.Context) ([]string, error) {
	var last *string
	var names []string

	for {
		out, err := c.svc.ListTables(ctx, &dynamodb.ListTablesInput{
			ExclusiveStartTableName: last,
			Limit:                   aws.Int32(100),
		})
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}

		names = append(names, out.TableNames...)
		if out.LastEvaluatedTableName == nil {
			break
		}
		last = out.LastEvaluatedTableName
	}

	return names, nil
}

// EnsureTables creates every table in specs that does not exist yet and
// returns the names it created.
func (c *DynamoDBClient) EnsureTables(ctx context.Context, specs []TableSpec) ([]string, error) {
	existing, err := c.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	present := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		present[name] = struct{}{}
	}

	var created []string
	for _, spec := range specs {
		if _, ok := present[spec.Name]; ok {
			continue
		}
		if _, err := c.svc.CreateTable(ctx, CreateTableInput(spec)); err != nil {
			return created, fmt.Errorf("create table %s: %w", spec.Name, err)
		}
		created = append(created, spec.Name)
	}
	return created, nil
}

// CreateTableInput translates a spec into an on-demand CreateTable request.
func CreateTableInput(spec TableSpec) *dynamodb.CreateTableInput {
	attrs := map[string]struct{}{}
	addAttr := func(name string) {
		if name != "" {
			attrs[name] = struct{}{}
		}
	}

	addAttr(spec.HashKey)
	addAttr(spec.Range)

	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(spec.Name),
		BillingMode: types.BillingModePayPerRequest,
		KeySchema:   keySchema(spec.HashKey, spec.Range),
	}

	for _, idx := range spec.Indexes {
		addAttr(idx.HashKey)
		addAttr(idx.Range)
		input.GlobalSecondaryIndexes = append(input.GlobalSecondaryIndexes, types.GlobalSecondaryIndex{
			IndexName:  aws.String(idx.Name),
			KeySchema:  keySchema(idx.HashKey, idx.Range),
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}

	for name := range attrs {
		input.AttributeDefinitions = append(input.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: types.ScalarAttributeTypeS,
		})
	}
	return input
}

func keySchema(hash, rangeKey string) []types.KeySchemaElement {
	elems := []types.KeySchemaElement{
		{AttributeName: aws.String(hash), KeyType: types.KeyTypeHash},
	}
	if rangeKey != "" {
		elems = append(elems, types.KeySchemaElement{AttributeName: aws.String(rangeKey), KeyType: types.KeyTypeRange})
	}
	return elems
}
