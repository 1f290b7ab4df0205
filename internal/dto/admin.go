package dto

import "roleplay-training-backend/internal/model"

type CreateOrganizationRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type OrganizationResponse struct {
	OrganizationID string `json:"organizationId"`
	Slug           string `json:"slug"`
	Name           string `json:"name"`
	CreditsBalance int64  `json:"creditsBalance"`
	IsDisabled     bool   `json:"isDisabled"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

type AdjustCreditsRequest struct {
	OrganizationID string `json:"organizationId"`
	Amount         int64  `json:"amount"`
	Reason         string `json:"reason"`
}

type AdjustCreditsResponse struct {
	CreditsBalance int64 `json:"creditsBalance"`
}

type SetOrganizationDisabledRequest struct {
	OrganizationID string `json:"organizationId"`
	IsDisabled     *bool  `json:"isDisabled"`
}

type CreditEntryResponse struct {
	EntryID        string  `json:"entryId"`
	Amount         int64   `json:"amount"`
	BalanceAfter   int64   `json:"balanceAfter"`
	Reason         string  `json:"reason"`
	Note           string  `json:"note,omitempty"`
	ConversationID string  `json:"conversationId,omitempty"`
	CreatedBy      *string `json:"createdBy"`
	CreatedAt      string  `json:"createdAt"`
}

type CreditHistoryResponse struct {
	Entries []CreditEntryResponse `json:"entries"`
}

func NewOrganizationResponse(item model.OrganizationItem) OrganizationResponse {
	return OrganizationResponse{
		OrganizationID: item.OrganizationID,
		Slug:           item.Slug,
		Name:           item.Name,
		CreditsBalance: item.CreditsBalance,
		IsDisabled:     item.IsDisabled,
		CreatedAt:      item.CreatedAt,
		UpdatedAt:      item.UpdatedAt,
	}
}

func NewCreditHistoryResponse(items []model.CreditLedgerEntryItem) CreditHistoryResponse {
	entries := make([]CreditEntryResponse, 0, len(items))
	for _, item := range items {
		entries = append(entries, CreditEntryResponse{
			EntryID:        item.EntryID,
			Amount:         item.Amount,
			BalanceAfter:   item.BalanceAfter,
			Reason:         string(item.Reason),
			Note:           item.Note,
			ConversationID: item.ConversationID,
			CreatedBy:      item.CreatedBy,
			CreatedAt:      item.CreatedAt,
		})
	}
	return CreditHistoryResponse{Entries: entries}
}
