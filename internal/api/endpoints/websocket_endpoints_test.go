package endpoints

import (
	"context"
	"net/http"
	"testing"

	"roleplay-training-backend/internal/api"
	"roleplay-training-backend/internal/model"
	"roleplay-training-backend/internal/service/apperror"
	"roleplay-training-backend/internal/service/auth"
	embedservice "roleplay-training-backend/internal/service/embed"
)

type fakeAuthenticator struct{}

func (fakeAuthenticator) Authenticate(ctx context.Context, header string) (auth.Caller, error) {
	return testAuthenticate(ctx, header)
}

type fakeEmbedVerifier struct {
	token string
}

func (f fakeEmbedVerifier) VerifyToken(ctx context.Context, token, conversationID string) (embedservice.Grant, error) {
	if token != f.token {
		return embedservice.Grant{}, apperror.Unauthorized("invalid embed token", nil)
	}
	return embedservice.Grant{Conversation: model.ConversationItem{ConversationID: conversationID}}, nil
}

type recordingRooms struct {
	roomID string
	userID string
}

func (r *recordingRooms) JoinRoom(w http.ResponseWriter, req *http.Request, roomID, userID string) {
	r.roomID = roomID
	r.userID = userID
	w.WriteHeader(http.StatusOK)
}

func websocketRoutes(rooms *recordingRooms) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		h := NewWebsocketEndpoints(fakeAuthenticator{}, newFakeConversationService(), fakeEmbedVerifier{token: "embedtoken"}, rooms, "/api/ws/v1/conversations/")
		mux.HandleFunc("/api/ws/v1/conversations/", s.MakeHTTPHandleFunc(h.Join))
	}
}

func TestWebsocketJoinWithUserToken(t *testing.T) {
	rooms := &recordingRooms{}
	h := newTestServer(t, websocketRoutes(rooms))

	// Three dot-separated parts look like a JWT; the fake authenticator
	// uses the whole token as the user id.
	rec := doRequest(t, h, http.MethodGet, "/api/ws/v1/conversations/conv-1?token=a.b.c", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected join, got %d: %s", rec.Code, rec.Body.String())
	}
	if rooms.roomID != "conversation:conv-1" || rooms.userID != "a.b.c" {
		t.Fatalf("unexpected join %+v", rooms)
	}
}

func TestWebsocketJoinWithEmbedToken(t *testing.T) {
	rooms := &recordingRooms{}
	h := newTestServer(t, websocketRoutes(rooms))

	rec := doRequest(t, h, http.MethodGet, "/api/ws/v1/conversations/conv-1?token=embedtoken", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected join, got %d", rec.Code)
	}
	if rooms.userID != "embed" {
		t.Fatalf("expected embed user, got %q", rooms.userID)
	}

	rooms.roomID = ""
	rec = doRequest(t, h, http.MethodGet, "/api/ws/v1/conversations/conv-1?token=wrong", nil, nil)
	if rec.Code != http.StatusUnauthorized || rooms.roomID != "" {
		t.Fatalf("expected 401 without join, got %d room=%q", rec.Code, rooms.roomID)
	}
}

func TestWebsocketJoinRejects(t *testing.T) {
	rooms := &recordingRooms{}
	h := newTestServer(t, websocketRoutes(rooms))

	rec := doRequest(t, h, http.MethodGet, "/api/ws/v1/conversations/conv-1", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without token, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/ws/v1/conversations/missing?token=a.b.c", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for unknown conversation, got %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/ws/v1/conversations/conv-1/extra?token=a.b.c", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for extra segments, got %d", rec.Code)
	}
	if rooms.roomID != "" {
		t.Fatalf("no join expected, got %q", rooms.roomID)
	}
}
