package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"roleplay-training-backend/internal/model"
	"roleplay-training-backend/internal/service/apperror"
	"roleplay-training-backend/internal/service/auth"
)

const (
	testScenarioID = "6f1c3a52-2f0d-4c1e-9d0a-1b2c3d4e5f60"
	otherScenario  = "7a2d4b63-3e1f-4d2a-8e1b-2c3d4e5f6071"
	testConvID     = "11111111-2222-4333-8444-555555555555"
)

type memoryRepository struct {
	mu            sync.Mutex
	conversations map[string]model.ConversationItem
	scenarios     map[string]model.ScenarioItem
	organizations map[string]model.OrganizationItem
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		conversations: make(map[string]model.ConversationItem),
		scenarios:     make(map[string]model.ScenarioItem),
		organizations: make(map[string]model.OrganizationItem),
	}
}

func (m *memoryRepository) GetConversation(ctx context.Context, id string) (model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.conversations[id]
	if !ok {
		return model.ConversationItem{}, ErrNotFound
	}
	return item, nil
}

func (m *memoryRepository) CreateConversation(ctx context.Context, item model.ConversationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[item.ConversationID] = item
	return nil
}

func (m *memoryRepository) UpdateConversation(ctx context.Context, id string, patch Patch, updatedAt string) (model.ConversationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.conversations[id]
	if !ok {
		return model.ConversationItem{}, ErrNotFound
	}
	if patch.Goal != nil {
		item.Goal = *patch.Goal
	}
	if patch.PublicEmbedEnabled != nil {
		item.PublicEmbedEnabled = *patch.PublicEmbedEnabled
	}
	if patch.EmbedAllowedOrigins != nil {
		item.EmbedAllowedOrigins = *patch.EmbedAllowedOrigins
	}
	if patch.Status != nil {
		item.Status = *patch.Status
	}
	if patch.Mode != nil {
		item.Mode = *patch.Mode
	}
	item.UpdatedAt = updatedAt
	m.conversations[id] = item
	return item, nil
}

func (m *memoryRepository) SetConversationStatus(ctx context.Context, id string, status model.ConversationStatus, updatedAt string) error {
	_, err := m.UpdateConversation(ctx, id, Patch{Status: &status}, updatedAt)
	return err
}

func (m *memoryRepository) DeleteConversation(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, id)
	return nil
}

func (m *memoryRepository) GetScenario(ctx context.Context, id string) (model.ScenarioItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.scenarios[id]
	if !ok {
		return model.ScenarioItem{}, ErrNotFound
	}
	return item, nil
}

func (m *memoryRepository) GetOrganization(ctx context.Context, id string) (model.OrganizationItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.organizations[id]
	if !ok {
		return model.OrganizationItem{}, ErrNotFound
	}
	return item, nil
}

type recordingTokens struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingTokens) EnsureConversationToken(ctx context.Context, organizationID, conversationID, createdBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, conversationID)
	return nil
}

type recordingPurger struct {
	purged []string
}

func (r *recordingPurger) PurgeConversation(ctx context.Context, id string) error {
	r.purged = append(r.purged, id)
	return nil
}

var (
	member   = auth.Caller{UserID: "user-1", OrganizationID: "org-1", Role: model.RoleMember}
	manager  = auth.Caller{UserID: "admin-1", OrganizationID: "org-1", Role: model.RoleOrganizationAdmin}
	outsider = auth.Caller{UserID: "admin-2", OrganizationID: "org-2", Role: model.RoleOrganizationAdmin}
)

func newTestService(opts ...Option) (*Service, *memoryRepository) {
	repo := newMemoryRepository()
	repo.scenarios[testScenarioID] = model.ScenarioItem{ScenarioID: testScenarioID, OrganizationID: "org-1"}
	repo.scenarios[otherScenario] = model.ScenarioItem{ScenarioID: otherScenario, OrganizationID: "org-2"}
	now := func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	svc := NewWithRepository(repo, now, opts...)
	svc.newID = func() string { return testConvID }
	return svc, repo
}

func TestCreateConversation(t *testing.T) {
	tokens := &recordingTokens{}
	svc, _ := newTestService(WithEmbedTokens(tokens))

	item, err := svc.Create(context.Background(), member, CreateParams{
		ScenarioID:          testScenarioID,
		Goal:                "  close the deal ",
		PublicEmbed:         true,
		EmbedAllowedOrigins: []string{"https://Example.com/page", "https://example.com"},
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if item.Status != model.ConversationStatusActive || item.Mode != model.ConversationModeText {
		t.Fatalf("unexpected defaults: %+v", item)
	}
	if item.Goal != "close the deal" {
		t.Fatalf("goal not trimmed: %q", item.Goal)
	}
	if len(item.EmbedAllowedOrigins) != 1 || item.EmbedAllowedOrigins[0] != "https://example.com" {
		t.Fatalf("origins not normalized: %v", item.EmbedAllowedOrigins)
	}
	if len(tokens.calls) != 1 {
		t.Fatalf("expected embed token to be issued, got %v", tokens.calls)
	}
}

func TestCreateRejectsForeignScenario(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), member, CreateParams{ScenarioID: otherScenario})
	if apperror.CodeOf(err) != apperror.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _ := newTestService()

	long := make([]byte, MaxGoalLength+1)
	for i := range long {
		long[i] = 'a'
	}

	cases := []CreateParams{
		{ScenarioID: "not-a-uuid"},
		{ScenarioID: testScenarioID, Goal: string(long)},
		{ScenarioID: testScenarioID, EmbedAllowedOrigins: []string{"not an origin"}},
		{ScenarioID: testScenarioID, EmbedAllowedOrigins: make([]string, MaxAllowedOrigins+1)},
	}
	for i, params := range cases {
		if _, err := svc.Create(context.Background(), member, params); apperror.CodeOf(err) != apperror.CodeValidation {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestUpdateRequiresManager(t *testing.T) {
	svc, repo := newTestService()
	repo.conversations[testConvID] = model.ConversationItem{ConversationID: testConvID, OrganizationID: "org-1", Status: model.ConversationStatusActive}

	status := model.ConversationStatusInactive
	_, err := svc.Update(context.Background(), member, UpdateParams{ConversationID: testConvID, Patch: Patch{Status: &status}})
	if apperror.CodeOf(err) != apperror.CodeForbidden {
		t.Fatalf("expected forbidden for member, got %v", err)
	}

	_, err = svc.Update(context.Background(), outsider, UpdateParams{ConversationID: testConvID, Patch: Patch{Status: &status}})
	if apperror.CodeOf(err) != apperror.CodeNotFound {
		t.Fatalf("expected not found for other organization, got %v", err)
	}
}

func TestUpdateEnablingEmbedIssuesToken(t *testing.T) {
	tokens := &recordingTokens{}
	svc, repo := newTestService(WithEmbedTokens(tokens))
	repo.conversations[testConvID] = model.ConversationItem{
		ConversationID:      testConvID,
		OrganizationID:      "org-1",
		Status:              model.ConversationStatusActive,
		EmbedAllowedOrigins: []string{"https://a.example"},
	}

	enabled := true
	none := []string{}
	updated, err := svc.Update(context.Background(), manager, UpdateParams{
		ConversationID: testConvID,
		Patch:          Patch{PublicEmbedEnabled: &enabled, EmbedAllowedOrigins: &none},
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if !updated.PublicEmbedEnabled || len(updated.EmbedAllowedOrigins) != 0 {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	if len(tokens.calls) != 1 {
		t.Fatalf("expected token issuance, got %v", tokens.calls)
	}
}

func TestUpdateRejectsEmptyPatch(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Update(context.Background(), manager, UpdateParams{ConversationID: testConvID})
	if apperror.CodeOf(err) != apperror.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteRunsPurgers(t *testing.T) {
	purger := &recordingPurger{}
	svc, repo := newTestService(WithPurgers(purger))
	repo.conversations[testConvID] = model.ConversationItem{ConversationID: testConvID, OrganizationID: "org-1"}

	if err := svc.Delete(context.Background(), member, testConvID); apperror.CodeOf(err) != apperror.CodeForbidden {
		t.Fatalf("expected member delete to be forbidden, got %v", err)
	}

	if err := svc.Delete(context.Background(), manager, testConvID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, ok := repo.conversations[testConvID]; ok {
		t.Fatalf("conversation still present")
	}
	if len(purger.purged) != 1 || purger.purged[0] != testConvID {
		t.Fatalf("expected purge of %s, got %v", testConvID, purger.purged)
	}
}

func TestPlatformAdminCrossesOrganizations(t *testing.T) {
	svc, repo := newTestService()
	repo.conversations[testConvID] = model.ConversationItem{ConversationID: testConvID, OrganizationID: "org-1"}

	platform := auth.Caller{UserID: "root", Role: model.RolePlatformAdmin}
	if _, err := svc.Get(context.Background(), platform, testConvID); err != nil {
		t.Fatalf("expected platform admin access, got %v", err)
	}
}
