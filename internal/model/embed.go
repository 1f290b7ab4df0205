package model

// EmbedTokenItem grants anonymous access to one conversation, or to a
// scenario for the legacy embed flow. Exactly one of ConversationID and
// ScenarioID is set.
type EmbedTokenItem struct {
	Token          string `dynamodbav:"token"`
	OrganizationID string `dynamodbav:"organizationId"`
	ConversationID string `dynamodbav:"conversationId,omitempty"`
	ScenarioID     string `dynamodbav:"scenarioId,omitempty"`
	Active         bool   `dynamodbav:"active"`
	CreatedBy      string `dynamodbav:"createdBy,omitempty"`
	CreatedAt      string `dynamodbav:"createdAt"`
}

type ConversationReviewItem struct {
	ConversationID  string  `dynamodbav:"conversationId"`
	ReviewID        string  `dynamodbav:"reviewId"`
	OrganizationID  string  `dynamodbav:"organizationId"`
	ReviewJSON      string  `dynamodbav:"reviewJson"`
	FeedbackSummary *string `dynamodbav:"feedbackSummary"`
	IsPassed        *bool   `dynamodbav:"isPassed"`
	CreatedAt       string  `dynamodbav:"createdAt"`
}
