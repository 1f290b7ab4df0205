package assistant

import (
	"strings"

	"roleplay-training-backend/internal/model"
)

const (
	responseTypeConversation = "conversation"
	responseTypeReview       = "review"

	userLabel      = "Verkoper"
	assistantLabel = "AI"
)

type Company struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
}

type Scenario struct {
	Persona      string  `json:"persona"`
	Topic        string  `json:"topic"`
	Instructions string  `json:"instructions"`
	Evaluation   *string `json:"evaluation"`
}

type HistoryEntry struct {
	Role      model.MessageRole `json:"role"`
	Content   string            `json:"content"`
	CreatedAt string            `json:"createdAt"`
}

// ConversationPayload is the body posted for every chat turn. The flat
// fields serve older workflows; the structured ones are preferred.
type ConversationPayload struct {
	ResponseType string `json:"responseType"`
	SessionID    string `json:"sessionID"`
	Message      string `json:"message"`
	Subject      string `json:"subject"`
	Persona      string `json:"persona"`
	Instructions string `json:"instructions"`

	ConversationID string         `json:"conversationId"`
	Company        Company        `json:"company"`
	Scenario       Scenario       `json:"scenario"`
	Mode           string         `json:"mode"`
	UserMessage    string         `json:"userMessage"`
	History        []HistoryEntry `json:"history"`

	Messages string `json:"messages"`
}

type ReviewPayload struct {
	ResponseType   string `json:"responseType"`
	SessionID      string `json:"sessionID"`
	Messages       string `json:"messages"`
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

type TurnInput struct {
	Conversation model.ConversationItem
	Organization model.OrganizationItem
	Scenario     model.ScenarioItem
	History      []model.MessageItem
	UserMessage  string
}

func BuildConversationPayload(in TurnInput) ConversationPayload {
	history := make([]HistoryEntry, 0, len(in.History))
	for _, msg := range in.History {
		history = append(history, HistoryEntry{
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}

	var evaluation *string
	if in.Scenario.Evaluation != "" {
		e := in.Scenario.Evaluation
		evaluation = &e
	}

	mode := string(in.Conversation.Mode)
	if mode == "" {
		mode = string(model.ConversationModeText)
	}

	lines := transcriptLines(in.History)
	lines = append(lines, userLabel+": "+in.UserMessage)

	return ConversationPayload{
		ResponseType: responseTypeConversation,
		SessionID:    in.Conversation.ConversationID,
		Message:      in.UserMessage,
		Subject:      in.Scenario.Topic,
		Persona:      in.Scenario.Persona,
		Instructions: in.Scenario.Instructions,

		ConversationID: in.Conversation.ConversationID,
		Company:        Company{ID: in.Organization.OrganizationID, Slug: in.Organization.Slug},
		Scenario: Scenario{
			Persona:      in.Scenario.Persona,
			Topic:        in.Scenario.Topic,
			Instructions: in.Scenario.Instructions,
			Evaluation:   evaluation,
		},
		Mode:        mode,
		UserMessage: in.UserMessage,
		History:     history,

		Messages: strings.Join(lines, "\n"),
	}
}

func BuildReviewPayload(conversationID string, transcript []model.MessageItem) ReviewPayload {
	return ReviewPayload{
		ResponseType:   responseTypeReview,
		SessionID:      conversationID,
		Messages:       Transcript(transcript),
		Message:        "",
		ConversationID: conversationID,
	}
}

// Transcript renders messages as "Verkoper: ..." and "AI: ..." lines.
func Transcript(messages []model.MessageItem) string {
	return strings.Join(transcriptLines(messages), "\n")
}

func transcriptLines(messages []model.MessageItem) []string {
	lines := make([]string, 0, len(messages)+1)
	for _, msg := range messages {
		label := assistantLabel
		if msg.Role == model.MessageRoleUser {
			label = userLabel
		}
		lines = append(lines, label+": "+msg.Content)
	}
	return lines
}
