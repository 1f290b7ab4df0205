package database

import (
	"testing"

	"roleplay-training-backend/internal/model"
)

func TestCreateTableInputDefinesEveryKeyAttribute(t *testing.T) {
	for _, spec := range Schema() {
		input := CreateTableInput(spec)

		defined := map[string]bool{}
		for _, def := range input.AttributeDefinitions {
			defined[*def.AttributeName] = true
		}

		for _, key := range input.KeySchema {
			if !defined[*key.AttributeName] {
				t.Fatalf("%s: key attribute %s not defined", spec.Name, *key.AttributeName)
			}
		}
		for _, idx := range input.GlobalSecondaryIndexes {
			for _, key := range idx.KeySchema {
				if !defined[*key.AttributeName] {
					t.Fatalf("%s/%s: index attribute %s not defined", spec.Name, *idx.IndexName, *key.AttributeName)
				}
			}
		}
	}
}

func TestSchemaCoversMessagesRangeKey(t *testing.T) {
	for _, spec := range Schema() {
		if spec.Name != model.MessagesTable {
			continue
		}
		input := CreateTableInput(spec)
		if len(input.KeySchema) != 2 || *input.KeySchema[1].AttributeName != "sortKey" {
			t.Fatalf("messages table must be keyed by conversationId and sortKey, got %+v", input.KeySchema)
		}
		return
	}
	t.Fatalf("messages table missing from schema")
}
