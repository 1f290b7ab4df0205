package model

type ProfileRole string

const (
	RoleMember            ProfileRole = "member"
	RoleOrganizationAdmin ProfileRole = "organization_admin"
	RolePlatformAdmin     ProfileRole = "platform_admin"
)

type OrganizationItem struct {
	OrganizationID string `dynamodbav:"organizationId"`
	Slug           string `dynamodbav:"slug"`
	Name           string `dynamodbav:"name"`
	CreditsBalance int64  `dynamodbav:"creditsBalance"`
	IsDisabled     bool   `dynamodbav:"isDisabled"`
	CreatedAt      string `dynamodbav:"createdAt"`
	UpdatedAt      string `dynamodbav:"updatedAt"`
}

// OrganizationSlugItem reserves a slug so two organizations cannot share it.
type OrganizationSlugItem struct {
	Slug           string `dynamodbav:"slug"`
	OrganizationID string `dynamodbav:"organizationId"`
}

type ProfileItem struct {
	UserID         string      `dynamodbav:"userId"`
	OrganizationID string      `dynamodbav:"organizationId"`
	Email          string      `dynamodbav:"email"`
	Role           ProfileRole `dynamodbav:"role"`
	CreatedAt      string      `dynamodbav:"createdAt"`
}

type ScenarioItem struct {
	ScenarioID     string `dynamodbav:"scenarioId"`
	OrganizationID string `dynamodbav:"organizationId"`
	Title          string `dynamodbav:"title"`
	Persona        string `dynamodbav:"persona"`
	Topic          string `dynamodbav:"topic"`
	Instructions   string `dynamodbav:"instructions"`
	Evaluation     string `dynamodbav:"evaluation,omitempty"`
	CreatedAt      string `dynamodbav:"createdAt"`
}
