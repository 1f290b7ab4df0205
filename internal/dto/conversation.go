package dto

import (
	"roleplay-training-backend/internal/model"
)

type ConversationResponse struct {
	ConversationID      string   `json:"conversationId"`
	OrganizationID      string   `json:"organizationId"`
	ScenarioID          string   `json:"scenarioId"`
	StartedBy           string   `json:"startedBy"`
	Status              string   `json:"status"`
	Mode                string   `json:"mode"`
	Goal                string   `json:"goal,omitempty"`
	PublicEmbedEnabled  bool     `json:"publicEmbedEnabled"`
	EmbedAllowedOrigins []string `json:"embedAllowedOrigins"`
	CreatedAt           string   `json:"createdAt"`
	UpdatedAt           string   `json:"updatedAt"`
}

type MessageResponse struct {
	MessageID      string                 `json:"messageId"`
	ConversationID string                 `json:"conversationId"`
	Role           string                 `json:"role"`
	Content        string                 `json:"content"`
	InputMode      string                 `json:"inputMode"`
	AudioURL       string                 `json:"audioUrl,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedBy      *string                `json:"createdBy"`
	CreatedAt      string                 `json:"createdAt"`
}

type CreateConversationRequest struct {
	ScenarioID          string   `json:"scenarioId"`
	Goal                string   `json:"goal,omitempty"`
	PublicEmbed         bool     `json:"publicEmbed"`
	EmbedAllowedOrigins []string `json:"embedAllowedOrigins,omitempty"`
}

type CreateConversationResponse struct {
	ConversationID string `json:"conversationId"`
}

// UpdateConversationRequest leaves absent fields unchanged.
type UpdateConversationRequest struct {
	ConversationID      string    `json:"conversationId"`
	Goal                *string   `json:"goal,omitempty"`
	PublicEmbedEnabled  *bool     `json:"publicEmbedEnabled,omitempty"`
	EmbedAllowedOrigins *[]string `json:"embedAllowedOrigins,omitempty"`
	Status              *string   `json:"status,omitempty"`
	Mode                *string   `json:"mode,omitempty"`
}

type ConversationIDRequest struct {
	ConversationID string `json:"conversationId"`
}

type ScenarioIDRequest struct {
	ScenarioID string `json:"scenarioId"`
}

type ListMessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
}

type EmbedTokenResponse struct {
	Token string `json:"token"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

func NewConversationResponse(item model.ConversationItem) ConversationResponse {
	origins := item.EmbedAllowedOrigins
	if origins == nil {
		origins = []string{}
	}
	return ConversationResponse{
		ConversationID:      item.ConversationID,
		OrganizationID:      item.OrganizationID,
		ScenarioID:          item.ScenarioID,
		StartedBy:           item.StartedBy,
		Status:              string(item.Status),
		Mode:                string(item.Mode),
		Goal:                item.Goal,
		PublicEmbedEnabled:  item.PublicEmbedEnabled,
		EmbedAllowedOrigins: origins,
		CreatedAt:           item.CreatedAt,
		UpdatedAt:           item.UpdatedAt,
	}
}

func NewMessageResponses(items []model.MessageItem) []MessageResponse {
	out := make([]MessageResponse, 0, len(items))
	for _, item := range items {
		out = append(out, MessageResponse{
			MessageID:      item.MessageID,
			ConversationID: item.ConversationID,
			Role:           string(item.Role),
			Content:        item.Content,
			InputMode:      string(item.InputMode),
			AudioURL:       item.AudioURL,
			Metadata:       item.Metadata,
			CreatedBy:      item.CreatedBy,
			CreatedAt:      item.CreatedAt,
		})
	}
	return out
}
