package api

import (
	"context"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/railrunner/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/triggers", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermTriggerRead)).Get("/", s.handleListTriggers)

				r.Group(func(r chi.Router) {
					r.Use(s.requirePermission(auth.PermTriggerManage))
					r.Post("/", s.handleCreateTrigger)
					r.Post("/show", s.handleShowTriggers)
					r.Patch("/{id}", s.handleUpdateTrigger)
					r.Put("/{id}/position", s.handleMoveTrigger)
					r.Delete("/{id}", s.handleDeleteTrigger)
				})

				r.With(s.requirePermission(auth.PermTriggerRead)).Get("/{id}", s.handleGetTrigger)
			})

			r.Route("/vehicles", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermAutomationRead)).Get("/", s.handleListVehicles)
				r.With(s.requirePermission(auth.PermAutomationToggle)).Post("/{id}/automation", s.handleToggleAutomation)
			})

			r.With(s.requirePermission(auth.PermTriggerRead)).Get("/stations", s.handleListStations)
			r.With(s.requirePermission(auth.PermSystemAdmin)).Get("/audit", s.handleListAudit)

			// WebSocket (token may arrive as a query parameter)
			r.With(s.requirePermission(auth.PermAutomationRead)).Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth reports the engine state and every infrastructure check.
// Any failing check turns the response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	var running bool
	var mapID string
	if err := s.call(ctx, func() error {
		running = s.engine.Running()
		mapID = s.engine.MapID()
		return nil
	}); err != nil {
		s.logger.Warn("health check could not reach event loop", "error", err)
	}
	body["engine"] = map[string]any{"running": running, "map_id": mapID}
	if !running {
		status = http.StatusServiceUnavailable
	}

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := s.checks[name].HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	if len(checks) > 0 {
		body["checks"] = checks
	}

	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}
