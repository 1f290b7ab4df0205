package model

type ConversationStatus string

const (
	ConversationStatusActive   ConversationStatus = "active"
	ConversationStatusInactive ConversationStatus = "inactive"
)

type ConversationMode string

const (
	ConversationModeText  ConversationMode = "text"
	ConversationModeVoice ConversationMode = "voice"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

type InputMode string

const (
	InputModeText  InputMode = "text"
	InputModeVoice InputMode = "voice"
)

type ConversationItem struct {
	ConversationID      string             `dynamodbav:"conversationId"`
	OrganizationID      string             `dynamodbav:"organizationId"`
	ScenarioID          string             `dynamodbav:"scenarioId"`
	StartedBy           string             `dynamodbav:"startedBy"`
	Status              ConversationStatus `dynamodbav:"status"`
	Mode                ConversationMode   `dynamodbav:"mode"`
	Goal                string             `dynamodbav:"goal,omitempty"`
	PublicEmbedEnabled  bool               `dynamodbav:"publicEmbedEnabled"`
	EmbedAllowedOrigins []string           `dynamodbav:"embedAllowedOrigins,omitempty"`
	CreatedAt           string             `dynamodbav:"createdAt"`
	UpdatedAt           string             `dynamodbav:"updatedAt"`
}

func (c ConversationItem) IsActive() bool {
	return c.Status == ConversationStatusActive
}

type MessageItem struct {
	ConversationID string                 `dynamodbav:"conversationId"`
	SortKey        string                 `dynamodbav:"sortKey"`
	MessageID      string                 `dynamodbav:"messageId"`
	OrganizationID string                 `dynamodbav:"organizationId"`
	Role           MessageRole            `dynamodbav:"role"`
	Content        string                 `dynamodbav:"content"`
	InputMode      InputMode              `dynamodbav:"inputMode"`
	AudioURL       string                 `dynamodbav:"audioUrl,omitempty"`
	Metadata       map[string]interface{} `dynamodbav:"metadata,omitempty"`
	CreatedBy      *string                `dynamodbav:"createdBy"`
	CreatedAt      string                 `dynamodbav:"createdAt"`
}
