package router

import (
	"net/http"
	"strings"

	"roleplay-training-backend/internal/api"
	"roleplay-training-backend/internal/api/endpoints"
	"roleplay-training-backend/internal/api/middleware"
)

func ConversationRoutes(prefix string, svc *Services) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		convEndpoints := endpoints.NewConversationEndpoints(svc.Conversations, svc.Embeds, base+"/conversations/")
		authenticated := middleware.Authenticate(svc.Auth.Authenticate)

		mux.HandleFunc(base+"/conversations/create", s.MakeHTTPHandleFunc(convEndpoints.Create, authenticated))
		mux.HandleFunc(base+"/conversations/update", s.MakeHTTPHandleFunc(convEndpoints.Update, authenticated))
		mux.HandleFunc(base+"/conversations/delete", s.MakeHTTPHandleFunc(convEndpoints.Delete, authenticated))
		mux.HandleFunc(base+"/conversations/embed-token/get-or-create", s.MakeHTTPHandleFunc(convEndpoints.EmbedToken, authenticated))
		mux.HandleFunc(base+"/conversations/", s.MakeHTTPHandleFunc(convEndpoints.Conversation, authenticated))
		mux.HandleFunc(base+"/embed-tokens/get-or-create", s.MakeHTTPHandleFunc(convEndpoints.ScenarioEmbedToken, authenticated))
	}
}

// ConversationWebsocketRoutes needs a server built with a websocket handler.
func ConversationWebsocketRoutes(prefix string, svc *Services) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		wsEndpoints := endpoints.NewWebsocketEndpoints(svc.Auth, svc.Conversations, svc.Embeds, s.Handler(), base+"/conversations/")

		mux.HandleFunc(base+"/conversations/", s.MakeHTTPHandleFunc(wsEndpoints.Join))
	}
}
