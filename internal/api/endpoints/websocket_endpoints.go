package endpoints

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"roleplay-training-backend/internal/model"
	"roleplay-training-backend/internal/service/auth"
	embedservice "roleplay-training-backend/internal/service/embed"
	"roleplay-training-backend/internal/websocket"
)

type Authenticator interface {
	Authenticate(ctx context.Context, header string) (auth.Caller, error)
}

type ConversationReader interface {
	Get(ctx context.Context, caller auth.Caller, conversationID string) (model.ConversationItem, error)
}

type EmbedVerifier interface {
	VerifyToken(ctx context.Context, token, conversationID string) (embedservice.Grant, error)
}

type RoomJoiner interface {
	JoinRoom(w http.ResponseWriter, r *http.Request, roomID, userID string)
}

type WebsocketEndpoints interface {
	// Join serves GET {prefix}{conversationId}?token=<jwt or embed token>.
	Join(http.ResponseWriter, *http.Request) error
}

type websocketEndpoints struct {
	auth          Authenticator
	conversations ConversationReader
	embeds        EmbedVerifier
	rooms         RoomJoiner
	prefix        string
}

func NewWebsocketEndpoints(authn Authenticator, conversations ConversationReader, embeds EmbedVerifier, rooms RoomJoiner, prefix string) WebsocketEndpoints {
	return &websocketEndpoints{
		auth:          authn,
		conversations: conversations,
		embeds:        embeds,
		rooms:         rooms,
		prefix:        prefix,
	}
}

func (h *websocketEndpoints) Join(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleJoin,
	})
}

func (h *websocketEndpoints) handleJoin(w http.ResponseWriter, r *http.Request) error {
	parts := pathSegments(r.URL.Path, h.prefix)
	if len(parts) != 1 {
		return notFound(r.URL.Path)
	}
	conversationID := parts[0]

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	}
	if token == "" {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("websocket join without token"),
		}
	}

	userID, err := h.authorize(r.Context(), token, conversationID)
	if err != nil {
		return serviceError(err)
	}

	h.rooms.JoinRoom(w, r, websocket.ConversationRoom(conversationID), userID)
	return nil
}

// authorize accepts a user JWT with access to the conversation, or an
// embed token bound to it. JWTs are recognised by their dots.
func (h *websocketEndpoints) authorize(ctx context.Context, token, conversationID string) (string, error) {
	if strings.Count(token, ".") == 2 {
		caller, err := h.auth.Authenticate(ctx, "Bearer "+token)
		if err != nil {
			return "", err
		}
		if _, err := h.conversations.Get(ctx, caller, conversationID); err != nil {
			return "", err
		}
		return caller.UserID, nil
	}

	if _, err := h.embeds.VerifyToken(ctx, token, conversationID); err != nil {
		return "", err
	}
	return "embed", nil
}
