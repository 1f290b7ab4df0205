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
	organizationservice "roleplay-training-backend/internal/service/organization"
)

type OrganizationService interface {
	CreateOrganization(ctx context.Context, caller auth.Caller, params organizationservice.CreateParams) (model.OrganizationItem, error)
	SetOrganizationDisabled(ctx context.Context, caller auth.Caller, organizationID string, disabled bool) (model.OrganizationItem, error)
	AdjustCredits(ctx context.Context, caller auth.Caller, params organizationservice.AdjustParams) (int64, error)
	Get(ctx context.Context, caller auth.Caller, organizationID string) (model.OrganizationItem, error)
	CreditHistory(ctx context.Context, caller auth.Caller, organizationID string, limit int) ([]model.CreditLedgerEntryItem, error)
}

type OrganizationEndpoints interface {
	Organizations(http.ResponseWriter, *http.Request) error
	// Organization serves GET {prefix}{id} and {prefix}{id}/credits.
	Organization(http.ResponseWriter, *http.Request) error
	AdjustCredits(http.ResponseWriter, *http.Request) error
	SetOrganizationDisabled(http.ResponseWriter, *http.Request) error
}

type organizationEndpoints struct {
	service      OrganizationService
	detailPrefix string
}

func NewOrganizationEndpoints(service OrganizationService, detailPrefix string) OrganizationEndpoints {
	return &organizationEndpoints{service: service, detailPrefix: detailPrefix}
}

func (h *organizationEndpoints) Organizations(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleCreateOrganization,
	})
}

func (h *organizationEndpoints) Organization(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleGetOrganization,
	})
}

func (h *organizationEndpoints) AdjustCredits(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleAdjustCredits,
	})
}

func (h *organizationEndpoints) SetOrganizationDisabled(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleSetDisabled,
	})
}

func (h *organizationEndpoints) handleCreateOrganization(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerFrom(r)
	if err != nil {
		return err
	}

	var req dto.CreateOrganizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	org, err := h.service.CreateOrganization(r.Context(), caller, organizationservice.CreateParams{
		Name: req.Name,
		Slug: req.Slug,
	})
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusCreated, dto.NewOrganizationResponse(org))
}

func (h *organizationEndpoints) handleGetOrganization(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerFrom(r)
	if err != nil {
		return err
	}

	parts := pathSegments(r.URL.Path, h.detailPrefix)
	switch {
	case len(parts) == 1:
		org, err := h.service.Get(r.Context(), caller, parts[0])
		if err != nil {
			return serviceError(err)
		}
		return WriteJSON(w, http.StatusOK, dto.NewOrganizationResponse(org))

	case len(parts) == 2 && parts[1] == "credits":
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
		entries, err := h.service.CreditHistory(r.Context(), caller, parts[0], limit)
		if err != nil {
			return serviceError(err)
		}
		return WriteJSON(w, http.StatusOK, dto.NewCreditHistoryResponse(entries))

	default:
		return notFound(r.URL.Path)
	}
}

func (h *organizationEndpoints) handleAdjustCredits(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerFrom(r)
	if err != nil {
		return err
	}

	var req dto.AdjustCreditsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}

	balance, err := h.service.AdjustCredits(r.Context(), caller, organizationservice.AdjustParams{
		OrganizationID: strings.TrimSpace(req.OrganizationID),
		Amount:         req.Amount,
		Reason:         req.Reason,
	})
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.AdjustCreditsResponse{CreditsBalance: balance})
}

func (h *organizationEndpoints) handleSetDisabled(w http.ResponseWriter, r *http.Request) error {
	caller, err := callerFrom(r)
	if err != nil {
		return err
	}

	var req dto.SetOrganizationDisabledRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if req.IsDisabled == nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "isDisabled is required",
			ErrorLog:   fmt.Errorf("set organization disabled: missing isDisabled"),
		}
	}

	org, err := h.service.SetOrganizationDisabled(r.Context(), caller, strings.TrimSpace(req.OrganizationID), *req.IsDisabled)
	if err != nil {
		return serviceError(err)
	}
	return WriteJSON(w, http.StatusOK, dto.NewOrganizationResponse(org))
}
