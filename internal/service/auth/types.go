package auth

import "roleplay-training-backend/internal/model"

// Caller is the authenticated principal of a request. OrganizationID and
// Role come from the stored profile, never from the token.
type Caller struct {
	UserID         string
	Email          string
	OrganizationID string
	Role           model.ProfileRole
}

func (c Caller) IsPlatformAdmin() bool {
	return c.Role == model.RolePlatformAdmin
}

// IsManager reports whether the caller may manage conversations and embeds
// within their organization.
func (c Caller) IsManager() bool {
	return c.Role == model.RoleOrganizationAdmin || c.Role == model.RolePlatformAdmin
}

// CanAccess reports whether the caller may read data owned by organizationID.
func (c Caller) CanAccess(organizationID string) bool {
	if c.IsPlatformAdmin() {
		return true
	}
	return organizationID != "" && c.OrganizationID == organizationID
}

// CreatedBy returns the caller id as a nullable audit reference.
func (c Caller) CreatedBy() *string {
	if c.UserID == "" {
		return nil
	}
	id := c.UserID
	return &id
}
