package router

import (
	"net/http"

	"roleplay-training-backend/internal/api"
	"roleplay-training-backend/internal/api/endpoints"
	"roleplay-training-backend/internal/api/middleware"
)

func ChatRoutes(prefix string, svc *Services) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		chatEndpoints := endpoints.NewChatEndpoints(svc.Chat)
		reviewEndpoints := endpoints.NewReviewEndpoints(svc.Reviews)
		authenticated := middleware.Authenticate(svc.Auth.Authenticate)

		mux.HandleFunc(prefix+"/chat/send", s.MakeHTTPHandleFunc(chatEndpoints.Send, authenticated))
		mux.HandleFunc(prefix+"/conversations/review/get-or-create", s.MakeHTTPHandleFunc(reviewEndpoints.GetOrCreate, authenticated))
	}
}

// EmbedChatRoutes serves anonymous embed turns; the embed token is the
// credential.
func EmbedChatRoutes(prefix string, svc *Services) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		chatEndpoints := endpoints.NewChatEndpoints(svc.Chat)
		mux.HandleFunc(prefix+"/embed/chat/send", s.MakeHTTPHandleFunc(chatEndpoints.EmbedSend))
	}
}
