package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"roleplay-training-backend/internal/api/middleware"
	"roleplay-training-backend/internal/queue"
)

type apiFunc func(http.ResponseWriter, *http.Request) error

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// MakeHTTPHandleFunc runs f on the request queue behind CORS, access
// logging and the given auth middlewares, outermost first.
func (s *APIServer) MakeHTTPHandleFunc(f apiFunc, authMiddleware ...middleware.Middleware) http.HandlerFunc {
	corsConfig := middleware.CORSConfig{
		AllowedOrigins:   s.cors,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "OPTIONS", "DELETE"},
		AllowedHeaders:   []string{"Content-Type", "X-Requested-With", "Authorization"},
		AllowCredentials: true,
	}

	baseHandler := func(w http.ResponseWriter, r *http.Request) {
		errc := make(chan error, 1)

		job := queue.Job{
			Fn: func() error {
				return f(w, r)
			},
			Errc: errc,
		}

		s.requestQueueManager.EnqueueJob(job)

		if err := <-errc; err != nil {
			s.writeError(w, r, err)
		}
	}

	middlewares := []middleware.Middleware{
		middleware.CORS(corsConfig),
		middleware.Logging(s.logger),
	}

	finalHandler := func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		middleware.Chain(baseHandler, authMiddleware...)(w, r)
	}

	return middleware.Chain(finalHandler, middlewares...)
}

func (s *APIServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = FromServiceError(err)
	}

	event := s.logger.Warn()
	if httpErr.StatusCode >= http.StatusInternalServerError {
		event = s.logger.Error()
	}
	event.Err(httpErr.ErrorLog).
		Int("status", httpErr.StatusCode).
		Str("method", r.Method).
		Str("uri", r.URL.RequestURI()).
		Msg(httpErr.Message)

	body := ApiError{Error: httpErr.Message, CreditsBalance: httpErr.CreditsBalance}
	if s.exposeErrorDetail && httpErr.StatusCode == http.StatusInternalServerError && httpErr.ErrorLog != nil {
		body.DBError = httpErr.ErrorLog.Error()
	}

	if werr := WriteJSON(w, httpErr.StatusCode, body); werr != nil {
		s.logger.Error().Err(werr).Msg("write error response")
	}
}
