package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"roleplay-training-backend/internal/database"
	"roleplay-training-backend/internal/env"
	"roleplay-training-backend/internal/queue"
	"roleplay-training-backend/internal/websocket"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type RouteRegistrar func(mux *http.ServeMux, s *APIServer)

type Options struct {
	ListenAddr string
	Queue      *queue.RequestQueueManager
	Database   *database.Database
	Websocket  *websocket.Handler
	Config     env.Config
	Logger     zerolog.Logger
	// CORSAllowedOrigins overrides Config.CORSAllowedOrigins. The public
	// embed server passes "*" because embeds run on customer sites.
	CORSAllowedOrigins []string
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

type APIServer struct {
	listenAddr          string
	requestQueueManager *queue.RequestQueueManager
	db                  *database.Database
	routeRegistrars     []RouteRegistrar
	handler             *websocket.Handler
	metrics             *metrics
	config              env.Config
	logger              zerolog.Logger
	cors                []string
	exposeErrorDetail   bool
}

func NewAPIServer(opts Options, registrars ...RouteRegistrar) *APIServer {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	cors := opts.CORSAllowedOrigins
	if len(cors) == 0 {
		cors = opts.Config.CORSAllowedOrigins
	}
	if len(cors) == 0 {
		cors = []string{"http://localhost:3000"}
	}

	return &APIServer{
		listenAddr:          opts.ListenAddr,
		requestQueueManager: opts.Queue,
		db:                  opts.Database,
		handler:             opts.Websocket,
		routeRegistrars:     registrars,
		metrics:             newMetrics(reg, opts.ListenAddr, opts.Queue),
		config:              opts.Config,
		logger:              opts.Logger,
		cors:                cors,
		exposeErrorDetail:   !opts.Config.IsProduction(),
	}
}

// Routes builds the instrumented mux with every registrar and /metrics.
func (s *APIServer) Routes() http.Handler {
	mux := http.NewServeMux()

	for _, reg := range s.routeRegistrars {
		reg(mux, s)
	}

	mux.Handle("/metrics", s.metrics.metricsHandler())

	return s.metrics.instrument(mux)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *APIServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.listenAddr).Msg("server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Str("addr", s.listenAddr).Msg("server stopped")
	return nil
}

func (s *APIServer) Database() *database.Database {
	return s.db
}

func (s *APIServer) Handler() *websocket.Handler {
	return s.handler
}

func (s *APIServer) Config() env.Config {
	return s.config
}

func (s *APIServer) Logger() zerolog.Logger {
	return s.logger
}
