// Package server hosts the room relay: a chi HTTP server with one
// websocket endpoint for room traffic and a small REST surface for
// execution, review, and diagnostics.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"coderoom/internal/config"
	"coderoom/internal/executor"
	"coderoom/internal/review"
)

// Server is the HTTP server for the coderoom relay.
type Server struct {
	cfg      *config.Config
	hub      *Hub
	host     *executor.Host
	reviewer *review.Reviewer
	router   chi.Router
	http     *http.Server
}

// New creates a Server. reviewer may be nil, disabling the review endpoint.
func New(cfg *config.Config, host *executor.Host, reviewer *review.Reviewer) *Server {
	s := &Server{
		cfg:      cfg,
		hub:      NewHub(),
		host:     host,
		reviewer: reviewer,
		router:   chi.NewRouter(),
	}
	s.setupRoutes()
	go s.hub.Run()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// Room traffic
	r.Get("/ws", s.handleWebSocket)

	r.Get("/health", s.handleHealth)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentType)

		r.Get("/stats", s.handleStats)
		r.Get("/rooms/{id}", s.handleGetRoom)
		r.Post("/execute", s.handleExecute)
		r.Post("/review", s.handleReview)
	})
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening on the given port. The hub loop is already
// running; New started it.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	log.Printf("coderoom server starting on http://localhost%s", addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server. The HTTP server drains first:
// in-flight API requests still need the hub loop to answer their queries, so
// the hub stops only once no request can be waiting on it.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")
	defer s.hub.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(shutdownCtx)
}
