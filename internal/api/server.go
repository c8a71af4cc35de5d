// Package api provides the HTTP API server and handlers for the photo library.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/photoshelf/internal/library"
	"github.com/listenupapp/photoshelf/internal/sse"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	services *Services
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger
	opts     Options
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, logger *slog.Logger, opts Options) *Server {
	opts.setDefaults()

	s := &Server{
		services: services,
		router:   chi.NewRouter(),
		logger:   logger,
		opts:     opts,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Photoshelf API", Version)
	// Envelope first: later transformers may replace *APIError with a copy.
	humaConfig.Transformers = append([]huma.Transformer{EnvelopeTransformer}, humaConfig.Transformers...)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for OpenAPI generation and tests.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) library() *library.Library {
	return s.services.Library
}

// emit forwards a change notification to the event feed, if any.
func (s *Server) emit(event sse.Event) {
	if s.services.Events != nil {
		s.services.Events.Emit(event)
	}
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Content-Length", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Length", "X-Request-Id"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerPhotoRoutes()
	s.registerTagRoutes()
	s.registerImportRoutes()
	s.registerImageRoutes()
	s.registerEventRoutes()
}

func (s *Server) registerEventRoutes() {
	if s.services.Events == nil {
		return
	}
	// Streams use chi directly; huma would buffer the response.
	s.router.Get("/api/v1/events", sse.NewHandler(s.services.Events, s.logger).ServeHTTP)
}
