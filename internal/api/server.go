// Package api provides the HTTP API server and handlers for the QueryClip server.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/queryclip/queryclip-server/internal/capture"
	"github.com/queryclip/queryclip-server/internal/collection"
	"github.com/queryclip/queryclip-server/internal/http/response"
	"github.com/queryclip/queryclip-server/internal/persist"
	"github.com/queryclip/queryclip-server/internal/search"
	"github.com/queryclip/queryclip-server/internal/sse"
	"github.com/queryclip/queryclip-server/internal/validation"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store        *collection.Store
	sync         *persist.Sync
	orchestrator *capture.Orchestrator
	searchIndex  *search.SearchIndex
	sseHandler   *sse.Handler
	validator    *validation.Validator
	router       *chi.Mux
	logger       *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(store *collection.Store, sync *persist.Sync, orchestrator *capture.Orchestrator, searchIndex *search.SearchIndex, sseHandler *sse.Handler, logger *slog.Logger) *Server {
	s := &Server{
		store:        store,
		sync:         sync,
		orchestrator: orchestrator,
		searchIndex:  searchIndex,
		sseHandler:   sseHandler,
		validator:    validation.New(),
		router:       chi.NewRouter(),
		logger:       logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// The panel is injected into video pages, so requests arrive from
	// arbitrary page origins.
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	// Keep a single misbehaving page from flooding the capture service.
	limiter := NewRateLimiter(120, time.Minute, 30)
	s.router.Use(RateLimitMiddleware(limiter, s.logger))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check.
	s.router.Get("/health", s.handleHealthCheck)

	// API v1.
	s.router.Route("/api/v1", func(r chi.Router) {
		// Collection items.
		r.Route("/items", func(r chi.Router) {
			r.Get("/", s.handleListItems)
			r.Post("/", s.handleCreateItem)
			r.Delete("/", s.handleClearCollection)
			r.Get("/grouped", s.handleGroupedItems)
			r.Put("/order", s.handleReorder)
			r.Patch("/{id}", s.handleUpdateItem)
			r.Delete("/{id}", s.handleRemoveItem)
			r.Post("/{id}/move", s.handleMoveItem)
		})

		// Chapters.
		r.Route("/chapters", func(r chi.Router) {
			r.Get("/", s.handleListChapters)
			r.Post("/", s.handleCreateChapter)
			r.Patch("/{id}", s.handleUpdateChapter)
			r.Delete("/{id}", s.handleDeleteChapter)
		})

		// Capture.
		r.Route("/capture", func(r chi.Router) {
			r.Post("/", s.handleCapture)
			r.Post("/batch", s.handleBatchCapture)
			r.Get("/batch", s.handleBatchStatus)
			r.Delete("/batch", s.handleCancelBatch)
		})

		// Persisted state.
		r.Route("/state", func(r chi.Router) {
			r.Get("/", s.handleGetState)
			r.Post("/save", s.handleSaveState)
			r.Delete("/", s.handleClearState)
		})

		// Video context.
		r.Put("/video", s.handleSetVideoContext)

		// Search.
		r.Get("/search", s.handleSearch)

		// Event stream.
		r.Get("/events/stream", s.sseHandler.ServeHTTP)
	})
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status    string `json:"status"`
	ItemCount int    `json:"item_count"`
}

// handleHealthCheck returns server health status.
func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, HealthResponse{
		Status:    "healthy",
		ItemCount: s.store.Len(),
	}, s.logger)
}
