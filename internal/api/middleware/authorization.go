package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"roleplay-training-backend/internal/service/apperror"
	"roleplay-training-backend/internal/service/auth"
)

// AuthenticateFunc resolves an Authorization header to a caller, e.g.
// (*auth.Service).AuthenticateManager.
type AuthenticateFunc func(ctx context.Context, header string) (auth.Caller, error)

type callerKey struct{}

func WithCaller(ctx context.Context, caller auth.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom returns the caller stored by Authenticate.
func CallerFrom(ctx context.Context) (auth.Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(auth.Caller)
	return caller, ok
}

// Authenticate rejects the request unless authenticate accepts its bearer
// token, and stores the resulting caller in the request context.
func Authenticate(authenticate AuthenticateFunc) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			caller, err := authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				status := http.StatusUnauthorized
				message := "Unauthorized"
				if appErr, ok := apperror.As(err); ok {
					status = apperror.HTTPStatus(appErr.Code)
					message = appErr.Message
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
				return
			}

			next(w, r.WithContext(WithCaller(r.Context(), caller)))
		}
	}
}
