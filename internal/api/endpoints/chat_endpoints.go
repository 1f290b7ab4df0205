package endpoints

import (
	"context"
	"net/http"

	"roleplay-training-backend/internal/dto"
	"roleplay-training-backend/internal/service/auth"
	chatservice "roleplay-training-backend/internal/service/chat"
	"roleplay-training-backend/utils"
)

type ChatService interface {
	SendTurn(ctx context.Context, caller auth.Caller, req chatservice.TurnRequest) (chatservice.TurnResult, error)
	SendEmbedTurn(ctx context.Context, req chatservice.EmbedTurnRequest) (chatservice.TurnResult, error)
}

type ChatEndpoints interface {
	Send(http.ResponseWriter, *http.Request) error
	EmbedSend(http.ResponseWriter, *http.Request) error
}

type chatEndpoints struct {
	service ChatService
}

func NewChatEndpoints(service ChatService) ChatEndpoints {
	return &chatEndpoints{service: service}
}

func (h *chatEndpoints) Send(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleSend,
	})
}

func (h *chatEndpoints) EmbedSend(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleEmbedSend,
	})
}

func (h *chatEndpoints) handleSend(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerFrom(r)
	if err != nil {
		return err
	}

	var req dto.SendTurnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	result, err := h.service.SendTurn(r.Context(), caller, chatservice.TurnRequest{
		ConversationID: req.ConversationID,
		UserMessage:    req.UserMessage,
	})
	if err != nil {
		return serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, toTurnResponse(result))
}

func (h *chatEndpoints) handleEmbedSend(w http.ResponseWriter, r *http.Request) error {
	var req dto.SendEmbedTurnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	result, err := h.service.SendEmbedTurn(r.Context(), chatservice.EmbedTurnRequest{
		Token:          req.Token,
		ConversationID: req.ConversationID,
		UserMessage:    req.UserMessage,
		Origin:         r.Header.Get("Origin"),
		ClientIP:       utils.RealClientIP(r),
	})
	if err != nil {
		return serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, toTurnResponse(result))
}

func toTurnResponse(result chatservice.TurnResult) dto.SendTurnResponse {
	return dto.SendTurnResponse{
		AssistantMessage: result.AssistantMessage,
		CreditsBalance:   result.CreditsBalance,
		Completed:        result.Completed,
	}
}
