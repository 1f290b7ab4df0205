package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Publisher sends conversation events to the room of the conversation.
// With Redis every ws-server instance receives them; without it they only
// reach rooms of the local hub.
type Publisher struct {
	redisClient *redis.Client
	hub         *Hub
}

// NewPublisher returns nil when neither transport is available.
func NewPublisher(redisClient *redis.Client, hub *Hub) *Publisher {
	if redisClient == nil && hub == nil {
		return nil
	}
	return &Publisher{redisClient: redisClient, hub: hub}
}

func (p *Publisher) PublishConversation(ctx context.Context, conversationID string, event interface{}) error {
	if conversationID == "" {
		return fmt.Errorf("websocket publish: conversation id required")
	}
	if err := p.Publish(ctx, ConversationRoom(conversationID), event); err != nil {
		wsPublished.WithLabelValues("error").Inc()
		return err
	}
	wsPublished.WithLabelValues("ok").Inc()
	return nil
}

func (p *Publisher) Publish(ctx context.Context, roomID string, payload interface{}) error {
	if roomID == "" {
		return fmt.Errorf("websocket publish: roomID required")
	}

	messageJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("websocket publish: marshal payload: %w", err)
	}

	if p.redisClient != nil {
		if err := p.redisClient.Publish(ctx, roomID, string(messageJSON)).Err(); err != nil {
			return fmt.Errorf("websocket publish: redis publish: %w", err)
		}
		return nil
	}

	if !p.hub.send(ctx, &WSMessage{
		Content:   string(messageJSON),
		RoomID:    roomID,
		Timestamp: time.Now().Unix(),
	}) {
		return fmt.Errorf("websocket publish: hub stopped or context done")
	}
	return nil
}
