package middleware

import (
	"net/http"
	"strings"

	"roleplay-training-backend/utils"
)

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
}

// originPolicy matches request origins against the configured list using the
// same normalization the embed allow-lists use, so "https://App.example:443/"
// and "https://app.example" name one origin.
type originPolicy struct {
	any         bool
	credentials bool
	origins     map[string]struct{}
}

func newOriginPolicy(config CORSConfig) originPolicy {
	p := originPolicy{credentials: config.AllowCredentials, origins: make(map[string]struct{})}
	for _, o := range config.AllowedOrigins {
		if strings.TrimSpace(o) == "*" {
			p.any = true
			continue
		}
		if n := utils.NormalizeOrigin(o); n != "" {
			p.origins[n] = struct{}{}
		}
	}
	return p
}

// allow returns the Access-Control-Allow-Origin value for origin, or "".
func (p originPolicy) allow(origin string) string {
	if p.any {
		if p.credentials {
			return origin
		}
		return "*"
	}
	if n := utils.NormalizeOrigin(origin); n != "" {
		if _, ok := p.origins[n]; ok {
			return origin
		}
	}
	return ""
}

func CORS(config CORSConfig) Middleware {
	policy := newOriginPolicy(config)
	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")

	return func(f http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			allowedOrigin := policy.allow(r.Header.Get("Origin"))

			if allowedOrigin != "" {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", allowedOrigin)
				if config.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
			}
			if allowedOrigin != "*" {
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				if allowedOrigin == "" {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				w.WriteHeader(http.StatusOK)
				return
			}

			f(w, r)
		}
	}
}
