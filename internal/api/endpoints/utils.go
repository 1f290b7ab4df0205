package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"roleplay-training-backend/internal/api"
	"roleplay-training-backend/internal/api/middleware"
	"roleplay-training-backend/internal/service/auth"
)

const maxBodyBytes = 64 << 10

type HTTPError = api.HTTPError

type ApiMessageResponse struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	return api.WriteJSON(w, status, v)
}

func MethodHandler(
	w http.ResponseWriter,
	r *http.Request,
	allowed map[string]func(http.ResponseWriter, *http.Request) error,
) error {
	if handler, ok := allowed[r.Method]; ok {
		return handler(w, r)
	}
	return &HTTPError{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    "Method not allowed.",
		ErrorLog:   fmt.Errorf("method not allowed"),
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		message := "Invalid input."
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			message = "Request body too large."
		} else if errors.Is(err, io.EOF) {
			message = "Request body is required."
		}
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    message,
			ErrorLog:   fmt.Errorf("decode request body: %w", err),
		}
	}
	return nil
}

// callerFrom returns the caller stored by middleware.Authenticate.
func callerFrom(r *http.Request) (auth.Caller, error) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		return auth.Caller{}, &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("no caller in request context"),
		}
	}
	return caller, nil
}

func serviceError(err error) error {
	if err == nil {
		return nil
	}
	return api.FromServiceError(err)
}

// pathSegments returns the segments of path after prefix, or nil when path
// does not start with prefix.
func pathSegments(path, prefix string) []string {
	trimmed := strings.TrimPrefix(path, prefix)
	if trimmed == path || prefix == "" {
		return nil
	}
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func notFound(path string) error {
	return &HTTPError{
		StatusCode: http.StatusNotFound,
		Message:    "Not found.",
		ErrorLog:   fmt.Errorf("no route for %s", path),
	}
}
