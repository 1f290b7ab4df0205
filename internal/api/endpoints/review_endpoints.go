package endpoints

import (
	"context"
	"net/http"

	"roleplay-training-backend/internal/dto"
	"roleplay-training-backend/internal/service/auth"
	reviewservice "roleplay-training-backend/internal/service/review"
)

type ReviewService interface {
	GetOrCreate(ctx context.Context, caller auth.Caller, conversationID string) (reviewservice.Review, error)
}

type ReviewEndpoints interface {
	GetOrCreate(http.ResponseWriter, *http.Request) error
}

type reviewEndpoints struct {
	service ReviewService
}

func NewReviewEndpoints(service ReviewService) ReviewEndpoints {
	return &reviewEndpoints{service: service}
}

func (h *reviewEndpoints) GetOrCreate(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleGetOrCreate,
	})
}

func (h *reviewEndpoints) handleGetOrCreate(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerFrom(r)
	if err != nil {
		return err
	}

	var req dto.ConversationIDRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	review, err := h.service.GetOrCreate(r.Context(), caller, req.ConversationID)
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, review)
}
