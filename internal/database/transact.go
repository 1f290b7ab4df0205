package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TransactionCanceledError carries the per-item cancellation codes of a
// rejected TransactWriteItems call, in request order. "None" marks items
// that did not cause the cancellation.
type TransactionCanceledError struct {
	Reasons []string
}

func (e *TransactionCanceledError) Error() string {
	return fmt.Sprintf("transaction canceled: [%s]", strings.Join(e.Reasons, ", "))
}

// ConditionFailedAt reports whether item i failed its condition expression.
func (e *TransactionCanceledError) ConditionFailedAt(i int) bool {
	return i >= 0 && i < len(e.Reasons) && e.Reasons[i] == "ConditionalCheckFailed"
}

// Conflicted reports whether the transaction lost to a concurrent one.
func (e *TransactionCanceledError) Conflicted() bool {
	for _, reason := range e.Reasons {
		if reason == "TransactionConflict" {
			return true
		}
	}
	return false
}

// Unwrap lets callers match condition failures with errors.Is.
func (e *TransactionCanceledError) Unwrap() error {
	for i := range e.Reasons {
		if e.ConditionFailedAt(i) {
			return ErrConditionFailed
		}
	}
	return nil
}

// TransactPut builds a Put action, optionally guarded by condition.
func TransactPut(
	tableName string,
	item interface{},
	condition string,
	exprAttrNames map[string]string,
) (types.TransactWriteItem, error) {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("marshal item: %w", err)
	}

	put := &types.Put{
		TableName: aws.String(tableName),
		Item:      av,
	}
	if condition != "" {
		put.ConditionExpression = aws.String(condition)
	}
	if len(exprAttrNames) > 0 {
		put.ExpressionAttributeNames = exprAttrNames
	}
	return types.TransactWriteItem{Put: put}, nil
}

// TransactUpdate builds an Update action, optionally guarded by condition.
func TransactUpdate(
	tableName string,
	key map[string]types.AttributeValue,
	updateExpr string,
	condition string,
	exprAttrValues map[string]types.AttributeValue,
	exprAttrNames map[string]string,
) types.TransactWriteItem {
	update := &types.Update{
		TableName:                 aws.String(tableName),
		Key:                       key,
		UpdateExpression:          aws.String(updateExpr),
		ExpressionAttributeValues: exprAttrValues,
	}
	if condition != "" {
		update.ConditionExpression = aws.String(condition)
	}
	if len(exprAttrNames) > 0 {
		update.ExpressionAttributeNames = exprAttrNames
	}
	return types.TransactWriteItem{Update: update}
}

// TransactWriteItems applies all items atomically. Cancellations are
// reported as *TransactionCanceledError.
func (c *DynamoDBClient) TransactWriteItems(ctx context.Context, items []types.TransactWriteItem) error {
	if len(items) == 0 {
		return nil
	}

	_, err := c.svc.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err == nil {
		return nil
	}

	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		reasons := make([]string, len(canceled.CancellationReasons))
		for i, reason := range canceled.CancellationReasons {
			reasons[i] = aws.ToString(reason.Code)
		}
		return &TransactionCanceledError{Reasons: reasons}
	}
	return fmt.Errorf("transact write items: %w", err)
}
