package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Config holds the REST server configuration.
type Config struct {
	ListenAddr  string
	RoutePrefix string // e.g. "/rest/v1"; "" mounts activities at the root
}

// Server represents the REST HTTP server.
type Server struct {
	config   Config
	handler  *ActivityHandler
	router   *mux.Router
	server   *http.Server
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
	logger   zerolog.Logger
}

// NewServer creates a new REST server.
func NewServer(cfg Config, handler *ActivityHandler, logger zerolog.Logger) *Server {
	s := &Server{
		config:  cfg,
		handler: handler,
		router:  mux.NewRouter(),
		logger:  logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Apply global middleware
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(MetricsMiddleware)
	s.router.Use(RecoveryMiddleware(s.logger))

	// mux skips Use middleware when no route matches
	s.router.NotFoundHandler = s.chain(http.HandlerFunc(notFound))
	s.router.MethodNotAllowedHandler = s.chain(http.HandlerFunc(methodNotAllowed))

	s.router.HandleFunc("/health", Health).Methods(http.MethodGet)

	api := s.router
	if s.config.RoutePrefix != "" {
		api = s.router.PathPrefix(s.config.RoutePrefix).Subrouter()
	}

	api.HandleFunc("/activities", s.handler.List).Methods(http.MethodGet)
	api.HandleFunc("/activities", s.handler.Create).Methods(http.MethodPost)
	api.HandleFunc("/activities/{id}", s.handler.Get).Methods(http.MethodGet)
	api.HandleFunc("/activities/{id}", s.handler.Edit).Methods(http.MethodPatch)
	api.HandleFunc("/activities/{id}", s.handler.Delete).Methods(http.MethodDelete)
}

// chain applies the global middleware to a handler outside the router.
func (s *Server) chain(h http.Handler) http.Handler {
	return RequestIDMiddleware(LoggingMiddleware(s.logger)(MetricsMiddleware(RecoveryMiddleware(s.logger)(h))))
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start binds the listener (unless one was provided) and serves in the background.
func (s *Server) Start() error {
	ln := s.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", s.config.ListenAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr, err)
		}
		s.listener = ln
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting REST server")
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("REST server error")
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.config.ListenAddr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping REST server")
	return s.server.Shutdown(ctx)
}
