package router

import (
	"net/http"
	"strings"

	"roleplay-training-backend/internal/api"
	"roleplay-training-backend/internal/api/endpoints"
	"roleplay-training-backend/internal/api/middleware"
)

func OrganizationRoutes(prefix string, svc *Services) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		orgEndpoints := endpoints.NewOrganizationEndpoints(svc.Organizations, base+"/organizations/")
		authenticated := middleware.Authenticate(svc.Auth.Authenticate)
		platformAdmin := middleware.Authenticate(svc.Auth.AuthenticatePlatformAdmin)

		mux.HandleFunc(base+"/organizations/", s.MakeHTTPHandleFunc(orgEndpoints.Organization, authenticated))
		mux.HandleFunc(base+"/admin/organizations", s.MakeHTTPHandleFunc(orgEndpoints.Organizations, platformAdmin))
		mux.HandleFunc(base+"/admin/adjust-credits", s.MakeHTTPHandleFunc(orgEndpoints.AdjustCredits, platformAdmin))
		mux.HandleFunc(base+"/admin/set-organization-disabled", s.MakeHTTPHandleFunc(orgEndpoints.SetOrganizationDisabled, platformAdmin))
	}
}
