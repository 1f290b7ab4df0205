package dto

type SendTurnRequest struct {
	ConversationID string `json:"conversationId"`
	UserMessage    string `json:"userMessage"`
}

type SendEmbedTurnRequest struct {
	Token          string `json:"token"`
	ConversationID string `json:"conversationId"`
	UserMessage    string `json:"userMessage"`
}

type SendTurnResponse struct {
	AssistantMessage string `json:"assistantMessage"`
	CreditsBalance   int64  `json:"creditsBalance"`
	Completed        bool   `json:"completed"`
}
