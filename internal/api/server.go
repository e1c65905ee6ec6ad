package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Server is the HTTP transport over Backend, grounded on the chi wiring
// eduard256-Strix's internal/api/routes.go uses for its own REST surface.
type Server struct {
	router  chi.Router
	backend Backend
	logger  zerolog.Logger
}

// NewServer builds the coverage REST/streaming surface over backend.
func NewServer(backend Backend, logger zerolog.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		backend: backend,
		logger:  logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Route("/runs", func(r chi.Router) {
		// The stream endpoint is long-lived by design; everything else
		// gets a request timeout so a stuck handler can't hang a client.
		r.With(middleware.Timeout(60 * time.Second)).Get("/", s.handleListActive)
		r.With(middleware.Timeout(60 * time.Second)).Get("/{runID}", s.handleGetStatus)
		r.With(middleware.Timeout(60 * time.Second)).Get("/{runID}/summary", s.handleGetSummary)
		r.Get("/{runID}/stream", s.handleSubscribe)
		r.With(middleware.Timeout(60 * time.Second)).Delete("/{runID}", s.handleCleanup)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
