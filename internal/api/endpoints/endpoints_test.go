package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"roleplay-training-backend/internal/api"
	"roleplay-training-backend/internal/api/middleware"
	"roleplay-training-backend/internal/model"
	"roleplay-training-backend/internal/queue"
	"roleplay-training-backend/internal/service/apperror"
	"roleplay-training-backend/internal/service/auth"
	chatservice "roleplay-training-backend/internal/service/chat"
	reviewservice "roleplay-training-backend/internal/service/review"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T, register api.RouteRegistrar) http.Handler {
	t.Helper()
	queueManager := queue.NewRequestQueueManager(10, 1, zerolog.Nop())
	t.Cleanup(queueManager.Shutdown)

	server := api.NewAPIServer(api.Options{
		ListenAddr: ":0",
		Queue:      queueManager,
		Logger:     zerolog.Nop(),
		Registerer: prometheus.NewRegistry(),
	}, register)
	return server.Routes()
}

// testAuthenticate treats the bearer token as the user id.
func testAuthenticate(ctx context.Context, header string) (auth.Caller, error) {
	userID := strings.TrimPrefix(header, "Bearer ")
	if userID == "" || userID == header {
		return auth.Caller{}, apperror.Unauthorized("missing bearer token", nil)
	}
	return auth.Caller{UserID: userID, OrganizationID: "org-1", Role: model.RoleMember}, nil
}

func doRequest(t *testing.T, h http.Handler, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

var bearer = map[string]string{"Authorization": "Bearer user-1"}

type fakeChatService struct {
	mu      sync.Mutex
	callers []auth.Caller
	turns   []chatservice.TurnRequest
	embeds  []chatservice.EmbedTurnRequest
	result  chatservice.TurnResult
	err     error
}

func (f *fakeChatService) SendTurn(ctx context.Context, caller auth.Caller, req chatservice.TurnRequest) (chatservice.TurnResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callers = append(f.callers, caller)
	f.turns = append(f.turns, req)
	return f.result, f.err
}

func (f *fakeChatService) SendEmbedTurn(ctx context.Context, req chatservice.EmbedTurnRequest) (chatservice.TurnResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embeds = append(f.embeds, req)
	return f.result, f.err
}

func chatRoutes(svc *fakeChatService) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		h := NewChatEndpoints(svc)
		mux.HandleFunc("/api/v1/chat/send", s.MakeHTTPHandleFunc(h.Send, middleware.Authenticate(testAuthenticate)))
		mux.HandleFunc("/api/public/v1/embed/chat/send", s.MakeHTTPHandleFunc(h.EmbedSend))
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestServer(t, func(mux *http.ServeMux, s *api.APIServer) {
		mux.HandleFunc("/api/v1/health", s.MakeHTTPHandleFunc(NewUtilsEndpoints("app-server").Health))
	})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["status"] != "ok" || resp["service"] != "app-server" {
		t.Fatalf("unexpected health body %v", resp)
	}
}

func TestSendTurnRequiresAuth(t *testing.T) {
	svc := &fakeChatService{}
	h := newTestServer(t, chatRoutes(svc))

	rec := doRequest(t, h, http.MethodPost, "/api/v1/chat/send", map[string]string{"conversationId": "c1", "userMessage": "hi"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if len(svc.turns) != 0 {
		t.Fatalf("service should not be called without auth")
	}
}

func TestSendTurnSuccess(t *testing.T) {
	svc := &fakeChatService{result: chatservice.TurnResult{AssistantMessage: "hello trainee", CreditsBalance: 41, Completed: true}}
	h := newTestServer(t, chatRoutes(svc))

	rec := doRequest(t, h, http.MethodPost, "/api/v1/chat/send", map[string]string{"conversationId": "c1", "userMessage": "hi"}, bearer)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		AssistantMessage string `json:"assistantMessage"`
		CreditsBalance   int64  `json:"creditsBalance"`
		Completed        bool   `json:"completed"`
	}
	decodeBody(t, rec, &resp)
	if resp.AssistantMessage != "hello trainee" || resp.CreditsBalance != 41 || !resp.Completed {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(svc.turns) != 1 || svc.turns[0].ConversationID != "c1" || svc.turns[0].UserMessage != "hi" {
		t.Fatalf("unexpected turn %+v", svc.turns)
	}
	if svc.callers[0].UserID != "user-1" {
		t.Fatalf("expected caller user-1, got %+v", svc.callers[0])
	}
}

func TestSendTurnPaymentRequired(t *testing.T) {
	svc := &fakeChatService{err: apperror.PaymentRequired("insufficient credits", 0, nil)}
	h := newTestServer(t, chatRoutes(svc))

	rec := doRequest(t, h, http.MethodPost, "/api/v1/chat/send", map[string]string{"conversationId": "c1", "userMessage": "hi"}, bearer)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected status 402, got %d", rec.Code)
	}
	var resp struct {
		Message        string `json:"message"`
		CreditsBalance *int64 `json:"creditsBalance"`
	}
	decodeBody(t, rec, &resp)
	if resp.Message != "insufficient credits" || resp.CreditsBalance == nil || *resp.CreditsBalance != 0 {
		t.Fatalf("unexpected 402 body %s", rec.Body.String())
	}
}

func TestSendTurnInvalidBody(t *testing.T) {
	svc := &fakeChatService{}
	h := newTestServer(t, chatRoutes(svc))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/send", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer user-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestSendTurnMethodNotAllowed(t *testing.T) {
	h := newTestServer(t, chatRoutes(&fakeChatService{}))

	rec := doRequest(t, h, http.MethodGet, "/api/v1/chat/send", nil, bearer)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}

func TestEmbedSendForwardsOriginAndClientIP(t *testing.T) {
	svc := &fakeChatService{result: chatservice.TurnResult{AssistantMessage: "ok", CreditsBalance: 9}}
	h := newTestServer(t, chatRoutes(svc))

	rec := doRequest(t, h, http.MethodPost, "/api/public/v1/embed/chat/send",
		map[string]string{"token": "tok", "conversationId": "c1", "userMessage": "hi"},
		map[string]string{"Origin": "https://customer.example", "X-Forwarded-For": "203.0.113.7, 10.0.0.1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.embeds) != 1 {
		t.Fatalf("expected one embed turn, got %d", len(svc.embeds))
	}
	got := svc.embeds[0]
	if got.Token != "tok" || got.Origin != "https://customer.example" || got.ClientIP != "203.0.113.7" {
		t.Fatalf("unexpected embed request %+v", got)
	}
}

func TestEmbedSendRateLimited(t *testing.T) {
	svc := &fakeChatService{err: apperror.New(apperror.CodeRateLimited, "too many requests", nil)}
	h := newTestServer(t, chatRoutes(svc))

	rec := doRequest(t, h, http.MethodPost, "/api/public/v1/embed/chat/send",
		map[string]string{"token": "tok", "conversationId": "c1", "userMessage": "hi"}, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", rec.Code)
	}
}

type fakeReviewService struct {
	review reviewservice.Review
	err    error
	got    string
}

func (f *fakeReviewService) GetOrCreate(ctx context.Context, caller auth.Caller, conversationID string) (reviewservice.Review, error) {
	f.got = conversationID
	return f.review, f.err
}

func TestReviewGetOrCreate(t *testing.T) {
	summary := "Good opening"
	passed := true
	svc := &fakeReviewService{review: reviewservice.Review{
		Review:          json.RawMessage(`{"score":8}`),
		FeedbackSummary: &summary,
		IsPassed:        &passed,
		CreatedAt:       "2024-01-01T00:00:00.000Z",
	}}
	h := newTestServer(t, func(mux *http.ServeMux, s *api.APIServer) {
		mux.HandleFunc("/api/v1/conversations/review/get-or-create",
			s.MakeHTTPHandleFunc(NewReviewEndpoints(svc).GetOrCreate, middleware.Authenticate(testAuthenticate)))
	})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/conversations/review/get-or-create", map[string]string{"conversationId": "c1"}, bearer)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Review          map[string]int `json:"review"`
		FeedbackSummary *string        `json:"feedbackSummary"`
		IsPassed        *bool          `json:"isPassed"`
	}
	decodeBody(t, rec, &resp)
	if resp.Review["score"] != 8 || resp.FeedbackSummary == nil || *resp.FeedbackSummary != summary || resp.IsPassed == nil || !*resp.IsPassed {
		t.Fatalf("unexpected review %s", rec.Body.String())
	}
	if svc.got != "c1" {
		t.Fatalf("expected conversation c1, got %q", svc.got)
	}
}

func TestReviewUpstreamFailure(t *testing.T) {
	svc := &fakeReviewService{err: apperror.Upstream("review generation failed", nil)}
	h := newTestServer(t, func(mux *http.ServeMux, s *api.APIServer) {
		mux.HandleFunc("/review", s.MakeHTTPHandleFunc(NewReviewEndpoints(svc).GetOrCreate, middleware.Authenticate(testAuthenticate)))
	})

	rec := doRequest(t, h, http.MethodPost, "/review", map[string]string{"conversationId": "c1"}, bearer)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rec.Code)
	}
}
