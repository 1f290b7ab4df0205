package api

import (
	"net/http"

	"roleplay-training-backend/internal/service/apperror"
)

type HTTPError struct {
	StatusCode int
	Message    string
	ErrorLog   error
	// CreditsBalance is echoed to the client on 402.
	CreditsBalance *int64
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.ErrorLog
}

type ApiError struct {
	Error          string `json:"message"`
	CreditsBalance *int64 `json:"creditsBalance,omitempty"`
	DBError        string `json:"dbError,omitempty"`
}

// FromServiceError converts a service error into the HTTPError written to
// the client. Errors without a code become 500.
func FromServiceError(err error) *HTTPError {
	appErr, ok := apperror.As(err)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   err,
		}
	}
	return &HTTPError{
		StatusCode:     apperror.HTTPStatus(appErr.Code),
		Message:        appErr.Message,
		ErrorLog:       err,
		CreditsBalance: appErr.CreditsBalance,
	}
}
