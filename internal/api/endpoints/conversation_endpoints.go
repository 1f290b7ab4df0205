package endpoints

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"roleplay-training-backend/internal/dto"
	"roleplay-training-backend/internal/model"
	"roleplay-training-backend/internal/service/auth"
	conversationservice "roleplay-training-backend/internal/service/conversation"
)

type ConversationService interface {
	Create(ctx context.Context, caller auth.Caller, params conversationservice.CreateParams) (model.ConversationItem, error)
	Update(ctx context.Context, caller auth.Caller, params conversationservice.UpdateParams) (model.ConversationItem, error)
	Delete(ctx context.Context, caller auth.Caller, conversationID string) error
	Get(ctx context.Context, caller auth.Caller, conversationID string) (model.ConversationItem, error)
	Messages(ctx context.Context, caller auth.Caller, conversationID string, limit int) ([]model.MessageItem, error)
}

type EmbedTokenService interface {
	GetOrCreateConversationToken(ctx context.Context, caller auth.Caller, conversationID string) (string, error)
	GetOrCreateScenarioToken(ctx context.Context, caller auth.Caller, scenarioID string) (string, error)
}

type ConversationEndpoints interface {
	Create(http.ResponseWriter, *http.Request) error
	Update(http.ResponseWriter, *http.Request) error
	Delete(http.ResponseWriter, *http.Request) error
	// Conversation serves GET {prefix}{id} and {prefix}{id}/messages.
	Conversation(http.ResponseWriter, *http.Request) error
	EmbedToken(http.ResponseWriter, *http.Request) error
	ScenarioEmbedToken(http.ResponseWriter, *http.Request) error
}

type conversationEndpoints struct {
	service      ConversationService
	tokens       EmbedTokenService
	detailPrefix string
}

// NewConversationEndpoints builds the handlers. detailPrefix is the path
// that precedes the conversation id, e.g. "/api/v1/conversations/".
func NewConversationEndpoints(service ConversationService, tokens EmbedTokenService, detailPrefix string) ConversationEndpoints {
	return &conversationEndpoints{
		service:      service,
		tokens:       tokens,
		detailPrefix: detailPrefix,
	}
}

func (h *conversationEndpoints) Create(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleCreate,
	})
}

func (h *conversationEndpoints) Update(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost:  h.handleUpdate,
		http.MethodPatch: h.handleUpdate,
	})
}

func (h *conversationEndpoints) Delete(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost:   h.handleDelete,
		http.MethodDelete: h.handleDelete,
	})
}

func (h *conversationEndpoints) Conversation(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleGet,
	})
}

func (h *conversationEndpoints) EmbedToken(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleEmbedToken,
	})
}

func (h *conversationEndpoints) ScenarioEmbedToken(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleScenarioEmbedToken,
	})
}

func (h *conversationEndpoints) handleCreate(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerFrom(r)
	if err != nil {
		return err
	}

	var req dto.CreateConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	item, err := h.service.Create(r.Context(), caller, conversationservice.CreateParams{
		ScenarioID:          strings.TrimSpace(req.ScenarioID),
		Goal:                req.Goal,
		PublicEmbed:         req.PublicEmbed,
		EmbedAllowedOrigins: req.EmbedAllowedOrigins,
	})
	if err != nil {
		return serviceError(err)
	}

	return WriteJSON(w, http.StatusCreated, dto.CreateConversationResponse{ConversationID: item.ConversationID})
}

func (h *conversationEndpoints) handleUpdate(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerFrom(r)
	if err != nil {
		return err
	}

	var req dto.UpdateConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	patch := conversationservice.Patch{
		Goal:                req.Goal,
		PublicEmbedEnabled:  req.PublicEmbedEnabled,
		EmbedAllowedOrigins: req.EmbedAllowedOrigins,
	}
	if req.Status != nil {
		status := model.ConversationStatus(strings.TrimSpace(*req.Status))
		patch.Status = &status
	}
	if req.Mode != nil {
		mode := model.ConversationMode(strings.TrimSpace(*req.Mode))
		patch.Mode = &mode
	}

	item, err := h.service.Update(r.Context(), caller, conversationservice.UpdateParams{
		ConversationID: strings.TrimSpace(req.ConversationID),
		Patch:          patch,
	})
	if err != nil {
		return serviceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.NewConversationResponse(item))
}

func (h *conversationEndpoints) handleDelete(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerFrom(r)
	if err != nil {
		return err
	}

	var req dto.ConversationIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	if err := h.service.Delete(r.Context(), caller, strings.TrimSpace(req.ConversationID)); err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.OKResponse{OK: true})
}

func (h *conversationEndpoints) handleGet(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerFrom(r)
	if err != nil {
		return err
	}

	parts := pathSegments(r.URL.Path, h.detailPrefix)
	switch {
	case len(parts) == 1:
		item, err := h.service.Get(r.Context(), caller, parts[0])
		if err != nil {
			return serviceError(err)
		}
		return WriteJSON(w, http.StatusOK, dto.NewConversationResponse(item))

	case len(parts) == 2 && parts[1] == "messages":
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit < 1 {
				return &HTTPError{
					StatusCode: http.StatusBadRequest,
					Message:    "limit must be a positive integer",
					ErrorLog:   fmt.Errorf("invalid limit %q", raw),
				}
			}
		}
		items, err := h.service.Messages(r.Context(), caller, parts[0], limit)
		if err != nil {
			return serviceError(err)
		}
		return WriteJSON(w, http.StatusOK, dto.ListMessagesResponse{Messages: dto.NewMessageResponses(items)})

	default:
		return notFound(r.URL.Path)
	}
}

func (h *conversationEndpoints) handleEmbedToken(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerFrom(r)
	if err != nil {
		return err
	}

	var req dto.ConversationIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	token, err := h.tokens.GetOrCreateConversationToken(r.Context(), caller, strings.TrimSpace(req.ConversationID))
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.EmbedTokenResponse{Token: token})
}

func (h *conversationEndpoints) handleScenarioEmbedToken(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerFrom(r)
	if err != nil {
		return err
	}

	var req dto.ScenarioIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	token, err := h.tokens.GetOrCreateScenarioToken(r.Context(), caller, strings.TrimSpace(req.ScenarioID))
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.EmbedTokenResponse{Token: token})
}
