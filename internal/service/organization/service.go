package organization

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"roleplay-training-backend/internal/database"
	"roleplay-training-backend/internal/model"
	"roleplay-training-backend/internal/service/apperror"
	"roleplay-training-backend/internal/service/auth"
	"roleplay-training-backend/internal/service/credit"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	maxReasonLength = 200
	maxNameLength   = 200
	minSlugLength   = 2
	maxSlugLength   = 64
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type Ledger interface {
	Allocate(ctx context.Context, organizationID string, amount int64, createdBy *string) (int64, error)
	Adjust(ctx context.Context, organizationID string, delta int64, note string, createdBy *string) (int64, error)
	Entries(ctx context.Context, organizationID string, limit int) ([]model.CreditLedgerEntryItem, error)
}

type CreateParams struct {
	Name string
	Slug string
}

type AdjustParams struct {
	OrganizationID string
	Amount         int64
	Reason         string
}

type Service struct {
	repo           Repository
	ledger         Ledger
	initialCredits int64
	now            func() time.Time
	newID          func() string
	logger         zerolog.Logger
}

func New(db *database.Database, ledger Ledger, initialCredits int64, logger zerolog.Logger) *Service {
	return NewWithRepository(NewDynamoRepository(db), ledger, initialCredits, nil, logger)
}

func NewWithRepository(repo Repository, ledger Ledger, initialCredits int64, now func() time.Time, logger zerolog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:           repo,
		ledger:         ledger,
		initialCredits: initialCredits,
		now:            now,
		newID:          uuid.NewString,
		logger:         logger,
	}
}

// CreateOrganization registers an organization with a unique slug and
// grants it the configured initial credits through the ledger.
func (s *Service) CreateOrganization(ctx context.Context, caller auth.Caller, params CreateParams) (model.OrganizationItem, error) {
	if !caller.IsPlatformAdmin() {
		return model.OrganizationItem{}, apperror.Forbidden("platform admin role required", nil)
	}

	name := strings.TrimSpace(params.Name)
	slug := strings.ToLower(strings.TrimSpace(params.Slug))
	if n := utf8.RuneCountInString(name); n < 2 || n > maxNameLength {
		return model.OrganizationItem{}, apperror.Validation("name must be between 2 and 200 characters", nil)
	}
	if len(slug) < minSlugLength || len(slug) > maxSlugLength || !slugPattern.MatchString(slug) {
		return model.OrganizationItem{}, apperror.Validation("slug must be 2-64 lowercase letters, digits or dashes", nil)
	}

	now := model.FormatTimestamp(s.now())
	item := model.OrganizationItem{
		OrganizationID: s.newID(),
		Slug:           slug,
		Name:           name,
		CreditsBalance: 0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateOrganization(ctx, item); err != nil {
		if errors.Is(err, ErrSlugTaken) {
			return model.OrganizationItem{}, apperror.Conflict("This slug is already in use.", err)
		}
		return model.OrganizationItem{}, apperror.Internal("failed to create organization", err)
	}

	if s.initialCredits > 0 {
		balance, err := s.ledger.Allocate(ctx, item.OrganizationID, s.initialCredits, caller.CreatedBy())
		if err != nil {
			// The organization exists without credits; an adjustment can fix it.
			s.logger.Error().Err(err).Str("organization_id", item.OrganizationID).Msg("initial credit allocation failed")
			return model.OrganizationItem{}, apperror.Internal("organization created but initial credits failed", err)
		}
		item.CreditsBalance = balance
	}

	s.logger.Info().
		Str("organization_id", item.OrganizationID).
		Str("slug", item.Slug).
		Int64("credits", item.CreditsBalance).
		Msg("organization created")
	return item, nil
}

func (s *Service) SetOrganizationDisabled(ctx context.Context, caller auth.Caller, organizationID string, disabled bool) (model.OrganizationItem, error) {
	if !caller.IsPlatformAdmin() {
		return model.OrganizationItem{}, apperror.Forbidden("platform admin role required", nil)
	}
	if _, err := uuid.Parse(organizationID); err != nil {
		return model.OrganizationItem{}, apperror.Validation("organizationId must be a UUID", err)
	}

	updated, err := s.repo.SetDisabled(ctx, organizationID, disabled, model.FormatTimestamp(s.now()))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.OrganizationItem{}, apperror.NotFound("organization not found", err)
		}
		return model.OrganizationItem{}, apperror.Internal("failed to update organization", err)
	}
	return updated, nil
}

// AdjustCredits applies a manual credit correction and returns the new balance.
func (s *Service) AdjustCredits(ctx context.Context, caller auth.Caller, params AdjustParams) (int64, error) {
	if !caller.IsPlatformAdmin() {
		return 0, apperror.Forbidden("platform admin role required", nil)
	}
	if _, err := uuid.Parse(params.OrganizationID); err != nil {
		return 0, apperror.Validation("organizationId must be a UUID", err)
	}
	reason := strings.TrimSpace(params.Reason)
	if reason == "" || utf8.RuneCountInString(reason) > maxReasonLength {
		return 0, apperror.Validation("reason must be between 1 and 200 characters", nil)
	}
	if params.Amount == 0 {
		return 0, apperror.Validation("amount must not be zero", nil)
	}

	balance, err := s.ledger.Adjust(ctx, params.OrganizationID, params.Amount, reason, caller.CreatedBy())
	if err != nil {
		switch {
		case errors.Is(err, credit.ErrInsufficientCredits):
			return 0, apperror.Validation("insufficient credits to deduct", err)
		case errors.Is(err, credit.ErrTenantNotFound):
			return 0, apperror.NotFound("organization not found", err)
		case errors.Is(err, credit.ErrInvalidAmount):
			return 0, apperror.Validation("amount must not be zero", err)
		default:
			return 0, apperror.Internal("adjusting credits failed", err)
		}
	}

	s.logger.Info().
		Str("organization_id", params.OrganizationID).
		Int64("amount", params.Amount).
		Int64("balance", balance).
		Msg("credits adjusted")
	return balance, nil
}

// Get returns an organization to its members and to platform admins.
func (s *Service) Get(ctx context.Context, caller auth.Caller, organizationID string) (model.OrganizationItem, error) {
	if organizationID == "" {
		organizationID = caller.OrganizationID
	}
	if !caller.CanAccess(organizationID) {
		return model.OrganizationItem{}, apperror.NotFound("organization not found", nil)
	}

	item, err := s.repo.GetOrganization(ctx, organizationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.OrganizationItem{}, apperror.NotFound("organization not found", err)
		}
		return model.OrganizationItem{}, apperror.Internal("failed to load organization", err)
	}
	return item, nil
}

// CreditHistory lists the newest ledger entries of an organization.
func (s *Service) CreditHistory(ctx context.Context, caller auth.Caller, organizationID string, limit int) ([]model.CreditLedgerEntryItem, error) {
	if _, err := s.Get(ctx, caller, organizationID); err != nil {
		return nil, err
	}
	if organizationID == "" {
		organizationID = caller.OrganizationID
	}
	if !caller.IsManager() {
		return nil, apperror.Forbidden("admin role required", nil)
	}

	entries, err := s.ledger.Entries(ctx, organizationID, limit)
	if err != nil {
		return nil, apperror.Internal("failed to load credit history", err)
	}
	return entries, nil
}
