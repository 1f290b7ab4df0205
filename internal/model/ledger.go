package model

type LedgerReason string

const (
	LedgerReasonInitialAllocation LedgerReason = "initial_allocation"
	LedgerReasonChatTurn          LedgerReason = "chat_turn"
	LedgerReasonAdminAdjustment   LedgerReason = "admin_adjustment"
)

type CreditLedgerEntryItem struct {
	OrganizationID string       `dynamodbav:"organizationId"`
	EntryKey       string       `dynamodbav:"entryKey"`
	EntryID        string       `dynamodbav:"entryId"`
	Amount         int64        `dynamodbav:"amount"`
	BalanceAfter   int64        `dynamodbav:"balanceAfter"`
	Reason         LedgerReason `dynamodbav:"reason"`
	Note           string       `dynamodbav:"note,omitempty"`
	ConversationID string       `dynamodbav:"conversationId,omitempty"`
	CreatedBy      *string      `dynamodbav:"createdBy"`
	CreatedAt      string       `dynamodbav:"createdAt"`
}
