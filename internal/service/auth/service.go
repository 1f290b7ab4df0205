package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"roleplay-training-backend/internal/database"
	internaljwt "roleplay-training-backend/internal/jwt"
	"roleplay-training-backend/internal/model"
	"roleplay-training-backend/internal/service/apperror"
)

type Service struct {
	repo Repository
}

func New(db *database.Database) *Service {
	return &Service{repo: NewDynamoRepository(db)}
}

func NewWithRepository(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate resolves an "Authorization: Bearer <jwt>" header to a Caller.
func (s *Service) Authenticate(ctx context.Context, header string) (Caller, error) {
	token := bearerToken(header)
	if token == "" {
		return Caller{}, apperror.Unauthorized("missing bearer token", nil)
	}

	claims, err := internaljwt.ParseUserClaims(token)
	if err != nil {
		return Caller{}, apperror.Unauthorized("invalid token", err)
	}

	profile, err := s.repo.GetProfile(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Caller{}, apperror.Forbidden("profile not found", err)
		}
		return Caller{}, apperror.Internal("failed to load profile", err)
	}
	if profile.OrganizationID == "" && !(Caller{Role: profile.Role}).IsPlatformAdmin() {
		return Caller{}, apperror.Forbidden("profile has no organization", nil)
	}

	email := profile.Email
	if email == "" {
		email = claims.Email
	}

	return Caller{
		UserID:         profile.UserID,
		Email:          email,
		OrganizationID: profile.OrganizationID,
		Role:           profile.Role,
	}, nil
}

// AuthenticateManager is Authenticate restricted to organization and
// platform admins.
func (s *Service) AuthenticateManager(ctx context.Context, header string) (Caller, error) {
	caller, err := s.Authenticate(ctx, header)
	if err != nil {
		return Caller{}, err
	}
	if !caller.IsManager() {
		return Caller{}, apperror.Forbidden("admin role required", nil)
	}
	return caller, nil
}

func (s *Service) AuthenticatePlatformAdmin(ctx context.Context, header string) (Caller, error) {
	caller, err := s.Authenticate(ctx, header)
	if err != nil {
		return Caller{}, err
	}
	if !caller.IsPlatformAdmin() {
		return Caller{}, apperror.Forbidden("platform admin role required", nil)
	}
	return caller, nil
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}

// EnsurePlatformAdmin makes userID a platform admin, creating the profile
// when it does not exist. Used when bootstrapping an environment.
func (s *Service) EnsurePlatformAdmin(ctx context.Context, userID, email string, now time.Time) (model.ProfileItem, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return model.ProfileItem{}, apperror.Validation("user id is required", nil)
	}

	profile, err := s.repo.GetProfile(ctx, userID)
	switch {
	case err == nil:
		if profile.Role == model.RolePlatformAdmin {
			return profile, nil
		}
	case errors.Is(err, ErrNotFound):
		profile = model.ProfileItem{UserID: userID, CreatedAt: model.FormatTimestamp(now)}
	default:
		return model.ProfileItem{}, apperror.Internal("failed to load profile", err)
	}

	profile.Role = model.RolePlatformAdmin
	if email = strings.TrimSpace(email); email != "" {
		profile.Email = email
	}
	if err := s.repo.PutProfile(ctx, profile); err != nil {
		return model.ProfileItem{}, apperror.Internal("failed to save profile", err)
	}
	return profile, nil
}
