package api

import (
	"context"
	"net/http"
	"time"
)

// handleAnalytics returns the current analytics snapshot as JSON.
func (s *Server) handleAnalytics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// handleMetrics renders all counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	if err := s.metrics.WritePrometheus(w); err != nil {
		s.logger.Warn("metrics exposition write failed", "error", err)
	}
}

// readinessCheckTimeout bounds each dependency probe.
const readinessCheckTimeout = 2 * time.Second

// handleHealthy is the liveness probe: the process is up and serving.
func (s *Server) handleHealthy(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  int64(time.Since(s.startTime).Seconds()),
	})
}

// handleReady is the readiness probe: dependencies can serve requests.
// Storage failing means mutations cannot commit, so the instance reports
// not ready and load balancers stop routing to it.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessCheckTimeout)
		defer cancel()

		if err := s.database.HealthCheck(ctx); err != nil {
			s.logger.Warn("readiness check failed", "dependency", "database", "error", err)
			writeError(w, http.StatusServiceUnavailable, ErrCodeNotReady, "database unavailable")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
