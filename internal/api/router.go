package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Health probes
	r.Get("/healthy", s.handleHealthy)
	r.Get("/ready", s.handleReady)

	// Metrics exposition for pull-based scraping
	r.Get("/metrics", s.handleMetrics)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/ids", s.handleListIDs)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleCreateDevice)
			r.Get("/analytics", s.handleAnalytics)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Put("/", s.handleUpdateDevice)
				r.Delete("/", s.handleDeleteDevice)
			})
		})
	})

	// WebSocket for real-time state updates
	r.Get("/ws", s.handleWebSocket)

	return r
}
