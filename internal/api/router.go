// Package api wires the HTTP routes of the studyhall AI service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/agentoven/studyhall/internal/api/handlers"
	"github.com/agentoven/studyhall/internal/api/middleware"
)

// NewRouter creates the HTTP router with all API routes. A nil metrics
// handler leaves /metrics unmounted.
func NewRouter(h *handlers.Handlers, auth *middleware.AuthMiddleware, metrics http.Handler) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-Trace-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", h.Health)
	r.Get("/version", h.GetVersion)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	// API v1
	r.Route("/api/v1/ai", func(r chi.Router) {
		r.Use(auth.Handler)
		r.Use(middleware.CallerScope)

		r.Post("/chat", h.PostChat)
		r.Get("/agents", h.ListAgents)
		r.Get("/tools", h.ListTools)
	})

	return r
}
