package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/clock-in/internal/web/handlers"
	"github.com/kozaktomas/clock-in/internal/web/middleware"
	"github.com/kozaktomas/clock-in/internal/web/static"
)

func (s *Server) setupRoutes() {
	captureHandler := handlers.NewCaptureHandler(s.deps.Registry, s.deps.Logger)
	historyHandler := handlers.NewHistoryHandler(s.deps.Audit, s.deps.Logger)
	configHandler := handlers.NewConfigHandler(s.config, s.deps.AuditBackend)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/config", configHandler.Get)

		// Capture routes act for the bearer token the kiosk signed in with
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireToken())

			r.Post("/capture/sessions", captureHandler.Open)
			r.Get("/capture/sessions/{id}", captureHandler.Get)
			r.Delete("/capture/sessions/{id}", captureHandler.Cancel)
			r.Get("/capture/sessions/{id}/events", captureHandler.Events)
			r.Get("/capture/sessions/{id}/image", captureHandler.Image)
			r.Post("/capture/sessions/{id}/frames", captureHandler.PushFrame)
			r.Post("/capture/sessions/{id}/camera-error", captureHandler.CameraError)
			r.Post("/capture/sessions/{id}/capture", captureHandler.Capture)
			r.Post("/capture/sessions/{id}/retake", captureHandler.Retake)
			r.Put("/capture/sessions/{id}/position", captureHandler.MovePosition)
			r.Post("/capture/sessions/{id}/location/retry", captureHandler.RetryLocation)
			r.Post("/capture/sessions/{id}/submit", captureHandler.Submit)

			r.Get("/capture/history", historyHandler.List)
		})
	})

	// Serve the kiosk page
	s.kiosk = http.FileServerFS(static.FS())
	s.router.Get("/*", s.serveKiosk)
}

// serveKiosk serves the embedded kiosk page and its assets
func (s *Server) serveKiosk(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && !static.Has(r.URL.Path) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	s.kiosk.ServeHTTP(w, r)
}
