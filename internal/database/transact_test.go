package database

import (
	"errors"
	"testing"
)

func TestTransactionCanceledErrorConditionFailure(t *testing.T) {
	err := &TransactionCanceledError{Reasons: []string{"ConditionalCheckFailed", "None"}}

	if !err.ConditionFailedAt(0) {
		t.Fatalf("expected condition failure at index 0")
	}
	if err.ConditionFailedAt(1) || err.ConditionFailedAt(5) {
		t.Fatalf("unexpected condition failure outside index 0")
	}
	if !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("expected errors.Is to match ErrConditionFailed")
	}
	if err.Conflicted() {
		t.Fatalf("did not expect conflict")
	}
}

func TestTransactionCanceledErrorConflict(t *testing.T) {
	err := &TransactionCanceledError{Reasons: []string{"TransactionConflict", "None"}}

	if !err.Conflicted() {
		t.Fatalf("expected conflict")
	}
	if errors.Is(err, ErrConditionFailed) {
		t.Fatalf("conflict must not match ErrConditionFailed")
	}
}

func TestTransactPutSetsCondition(t *testing.T) {
	item, err := TransactPut("Table", map[string]string{"id": "1"}, "attribute_not_exists(#k)", map[string]string{"#k": "id"})
	if err != nil {
		t.Fatalf("TransactPut returned error: %v", err)
	}
	if item.Put == nil || item.Put.ConditionExpression == nil {
		t.Fatalf("expected conditional put, got %+v", item)
	}
	if *item.Put.TableName != "Table" {
		t.Fatalf("unexpected table %q", *item.Put.TableName)
	}
}
