package credit

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

var (
	ErrNotFound = errors.New("credit repository: organization not found")
	// ErrBalanceChanged means the balance moved between read and write.
	ErrBalanceChanged = errors.New("credit repository: balance changed")
)

type Repository interface {
	GetBalance(ctx context.Context, organizationID string) (int64, error)
	// ApplyEntry sets the balance to entry.BalanceAfter and records entry,
	// atomically, provided the current balance still equals expected.
	ApplyEntry(ctx context.Context, expected int64, entry model.CreditLedgerEntryItem) error
	ListEntries(ctx context.Context, organizationID string, limit int) ([]model.CreditLedgerEntryItem, error)
}

type DynamoRepository struct {
	db *database.Database
}

func NewDynamoRepository(db *database.Database) *DynamoRepository {
	return &DynamoRepository{db: db}
}

func (r *DynamoRepository) GetBalance(ctx context.Context, organizationID string) (int64, error) {
	var org model.OrganizationItem
	err := r.db.Client.GetItemConsistent(ctx, model.OrganizationsTable, database.StringKey("organizationId", organizationID), &org)
	if err != nil {
		if errors.Is(err, database.ErrItemNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return org.CreditsBalance, nil
}

func (r *DynamoRepository) ApplyEntry(ctx context.Context, expected int64, entry model.CreditLedgerEntryItem) error {
	update := database.TransactUpdate(
		model.OrganizationsTable,
		database.StringKey("organizationId", entry.OrganizationID),
		"SET creditsBalance = :next, updatedAt = :now",
		"attribute_exists(organizationId) AND creditsBalance = :expected",
		map[string]types.AttributeValue{
			":next":     &types.AttributeValueMemberN{Value: fmt.Sprint(entry.BalanceAfter)},
			":expected": &types.AttributeValueMemberN{Value: fmt.Sprint(expected)},
			":now":      &types.AttributeValueMemberS{Value: entry.CreatedAt},
		},
		nil,
	)

	put, err := database.TransactPut(
		model.CreditLedgerTable,
		entry,
		"attribute_not_exists(#k)",
		map[string]string{"#k": "entryKey"},
	)
	if err != nil {
		return err
	}

	err = r.db.Client.TransactWriteItems(ctx, []types.TransactWriteItem{update, put})
	if err == nil {
		return nil
	}

	var canceled *database.TransactionCanceledError
	if errors.As(err, &canceled) && (canceled.ConditionFailedAt(0) || canceled.Conflicted()) {
		return ErrBalanceChanged
	}
	return err
}

func (r *DynamoRepository) ListEntries(ctx context.Context, organizationID string, limit int) ([]model.CreditLedgerEntryItem, error) {
	page, err := r.db.Client.QueryPaginated(
		ctx,
		model.CreditLedgerTable,
		nil,
		"organizationId = :organizationId",
		map[string]types.AttributeValue{
			":organizationId": &types.AttributeValueMemberS{Value: organizationID},
		},
		limit,
		nil,
		aws.Bool(false),
	)
	if err != nil {
		return nil, err
	}

	entries := make([]model.CreditLedgerEntryItem, 0, len(page.Items))
	for _, raw := range page.Items {
		var entry model.CreditLedgerEntryItem
		if err := attributevalue.UnmarshalMap(raw, &entry); err != nil {
			return nil, fmt.Errorf("unmarshal ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
