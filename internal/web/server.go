package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/clock-in/internal/config"
	"github.com/kozaktomas/clock-in/internal/database"
	"github.com/kozaktomas/clock-in/internal/web/handlers"
	"github.com/kozaktomas/clock-in/internal/web/middleware"
)

const (
	reapInterval   = time.Minute
	sessionMaxIdle = 10 * time.Minute
)

// Dependencies are the collaborators the server routes requests to.
type Dependencies struct {
	Registry     *handlers.Registry
	Audit        database.AuditReader
	AuditBackend string
	Logger       *slog.Logger
}

// Server represents the web server
type Server struct {
	config     *config.Config
	deps       Dependencies
	router     *chi.Mux
	httpServer *http.Server
	kiosk      http.Handler
	stopReaper context.CancelFunc
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	r := chi.NewRouter()

	s := &Server{
		config: cfg,
		deps:   deps,
		router: r,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams stay open for the whole session
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server and the idle session reaper
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopReaper = cancel
	go s.deps.Registry.RunReaper(ctx, reapInterval, sessionMaxIdle)

	s.deps.Logger.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown cancels open sessions and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Logger.Info("shutting down web server")

	if s.stopReaper != nil {
		s.stopReaper()
	}
	// closes SSE streams so Shutdown does not wait on them
	s.deps.Registry.CloseAll()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
