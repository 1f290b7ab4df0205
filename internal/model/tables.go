package model

import (
	"fmt"
	"time"
)

const (
	OrganizationsTable       = "Organizations"
	OrganizationSlugsTable   = "OrganizationSlugs"
	ProfilesTable            = "Profiles"
	ScenariosTable           = "Scenarios"
	ConversationsTable       = "Conversations"
	MessagesTable            = "Messages"
	CreditLedgerTable        = "CreditLedger"
	EmbedTokensTable         = "EmbedTokens"
	ConversationReviewsTable = "ConversationReviews"
)

const (
	EmbedTokensByConversationIndex = "byConversation"
	EmbedTokensByScenarioIndex     = "byScenario"
)

// TimestampLayout is fixed width so stored timestamps sort lexicographically.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// SortKey joins a timestamp and an id into a range key that orders by time
// and breaks ties by id.
func SortKey(createdAt, id string) string {
	return fmt.Sprintf("%s#%s", createdAt, id)
}
