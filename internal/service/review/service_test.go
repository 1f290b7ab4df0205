package review

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"roleplay-training-backend/internal/assistant"
	"roleplay-training-backend/internal/model"
	"roleplay-training-backend/internal/service/apperror"
	"roleplay-training-backend/internal/service/auth"
	"roleplay-training-backend/internal/service/conversation"

	"github.com/rs/zerolog"
)

const convID = "11111111-2222-4333-8444-555555555555"

type memoryRepo struct {
	mu      sync.Mutex
	items   map[string]model.ConversationReviewItem
	onWrite func()
}

func (m *memoryRepo) GetReview(ctx context.Context, conversationID string) (model.ConversationReviewItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[conversationID]
	if !ok {
		return model.ConversationReviewItem{}, ErrNotFound
	}
	return item, nil
}

func (m *memoryRepo) CreateReview(ctx context.Context, item model.ConversationReviewItem) error {
	if m.onWrite != nil {
		m.onWrite()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ConversationID]; ok {
		return ErrAlreadyExists
	}
	m.items[item.ConversationID] = item
	return nil
}

func (m *memoryRepo) DeleteReview(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, conversationID)
	return nil
}

type memoryConversations map[string]model.ConversationItem

func (m memoryConversations) GetConversation(ctx context.Context, id string) (model.ConversationItem, error) {
	item, ok := m[id]
	if !ok {
		return model.ConversationItem{}, conversation.ErrNotFound
	}
	return item, nil
}

type staticTranscripts []model.MessageItem

func (s staticTranscripts) ListTranscript(ctx context.Context, conversationID string, limit int) ([]model.MessageItem, error) {
	return s, nil
}

type fixture struct {
	svc      *Service
	repo     *memoryRepo
	calls    int32
	lastBody assistant.ReviewPayload
	reply    string
	mu       sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:  &memoryRepo{items: map[string]model.ConversationReviewItem{}},
		reply: `{"assistantMessage":{"feedback":[{"question":"Opening?","answer":"Good"}],"feedbackSummary":"Solid","isPassed":true}}`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.calls, 1)
		var body assistant.ReviewPayload
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.lastBody = body
		reply := f.reply
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)

	f.svc = New(Dependencies{
		Repository: f.repo,
		Conversations: memoryConversations{
			convID: {ConversationID: convID, OrganizationID: "org-1", Status: model.ConversationStatusInactive},
		},
		Transcripts: staticTranscripts{
			{Role: model.MessageRoleUser, Content: "Hello"},
			{Role: model.MessageRoleAssistant, Content: "Hi there"},
		},
		Evaluator: assistant.NewClient(assistant.Config{URL: server.URL, Secret: "secret", Timeout: 5 * time.Second}),
		Now:       func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
		Logger:    zerolog.Nop(),
	})
	return f
}

func member() auth.Caller {
	return auth.Caller{UserID: "u-1", OrganizationID: "org-1", Role: model.RoleMember}
}

func TestGetOrCreateCreatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.GetOrCreate(ctx, member(), convID)
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if first.FeedbackSummary == nil || *first.FeedbackSummary != "Solid" || first.IsPassed == nil || !*first.IsPassed {
		t.Fatalf("unexpected review: %+v", first)
	}
	if f.lastBody.ResponseType != "review" || f.lastBody.SessionID != convID || f.lastBody.Messages != "Verkoper: Hello\nAI: Hi there" {
		t.Fatalf("unexpected evaluator payload: %+v", f.lastBody)
	}

	second, err := f.svc.GetOrCreate(ctx, member(), convID)
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if string(second.Review) != string(first.Review) || second.CreatedAt != first.CreatedAt {
		t.Fatalf("expected stored review to be returned verbatim")
	}
	if atomic.LoadInt32(&f.calls) != 1 {
		t.Fatalf("expected one evaluator call, got %d", f.calls)
	}
}

func TestGetOrCreateConcurrentCallers(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	results := make([]Review, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.GetOrCreate(context.Background(), member(), convID)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d failed: %v", i, err)
		}
		if string(results[i].Review) != string(results[0].Review) {
			t.Fatalf("callers observed different reviews")
		}
	}
	if len(f.repo.items) != 1 {
		t.Fatalf("expected one stored review, got %d", len(f.repo.items))
	}
}

func TestGetOrCreateConflictReturnsWinner(t *testing.T) {
	f := newFixture(t)
	summary := "Other instance"
	passed := false
	f.repo.onWrite = func() {
		f.repo.mu.Lock()
		f.repo.items[convID] = model.ConversationReviewItem{
			ConversationID:  convID,
			ReviewJSON:      `{"feedbackSummary":"Other instance"}`,
			FeedbackSummary: &summary,
			IsPassed:        &passed,
			CreatedAt:       "2024-02-01T00:00:00.000000000Z",
		}
		f.repo.mu.Unlock()
	}

	got, err := f.svc.GetOrCreate(context.Background(), member(), convID)
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if got.FeedbackSummary == nil || *got.FeedbackSummary != "Other instance" {
		t.Fatalf("expected the stored winner, got %+v", got)
	}
}

func TestGetOrCreateStringReply(t *testing.T) {
	f := newFixture(t)
	f.reply = `{"assistantMessage":"{\"isPassed\":false}"}`

	got, err := f.svc.GetOrCreate(context.Background(), member(), convID)
	if err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if got.FeedbackSummary == nil || *got.FeedbackSummary != "" || got.IsPassed == nil || *got.IsPassed {
		t.Fatalf("expected defaults, got %+v", got)
	}
	if string(got.Review) != `{"isPassed":false}` {
		t.Fatalf("unexpected stored review %s", got.Review)
	}
}

func TestGetOrCreateBadReplies(t *testing.T) {
	replies := map[string]string{
		"missing":      `{}`,
		"null":         `{"assistantMessage":null}`,
		"number":       `{"assistantMessage":42}`,
		"bad string":   `{"assistantMessage":"not json"}`,
		"wrong type":   `{"assistantMessage":{"isPassed":"yes"}}`,
		"bad feedback": `{"assistantMessage":{"feedback":[{"question":"q"}]}}`,
	}
	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.reply = reply

			_, err := f.svc.GetOrCreate(context.Background(), member(), convID)
			if apperror.CodeOf(err) != apperror.CodeUpstream {
				t.Fatalf("expected upstream error, got %v", err)
			}
			if len(f.repo.items) != 0 {
				t.Fatalf("nothing may be stored for a bad reply")
			}
		})
	}
}

func TestGetOrCreateAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outsider := auth.Caller{UserID: "u-2", OrganizationID: "org-2", Role: model.RoleOrganizationAdmin}
	if _, err := f.svc.GetOrCreate(ctx, outsider, convID); apperror.CodeOf(err) != apperror.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	if _, err := f.svc.GetOrCreate(ctx, member(), "22222222-3333-4444-8555-666666666666"); apperror.CodeOf(err) != apperror.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	if _, err := f.svc.GetOrCreate(ctx, member(), "nope"); apperror.CodeOf(err) != apperror.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	platform := auth.Caller{UserID: "root", Role: model.RolePlatformAdmin}
	if _, err := f.svc.GetOrCreate(ctx, platform, convID); err != nil {
		t.Fatalf("platform admin must bypass the organization check: %v", err)
	}
}

func TestPurgeConversation(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.GetOrCreate(context.Background(), member(), convID); err != nil {
		t.Fatalf("GetOrCreate returned error: %v", err)
	}
	if err := f.svc.PurgeConversation(context.Background(), convID); err != nil {
		t.Fatalf("PurgeConversation returned error: %v", err)
	}
	if len(f.repo.items) != 0 {
		t.Fatalf("review must be removed")
	}
}
