package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/issuegate/internal/eventlog"
	"github.com/mattjoyce/issuegate/internal/events"
	"github.com/mattjoyce/issuegate/internal/upstream"
)

//go:generate mockgen -destination=mocks/mock_issue_tracker.go -package=mocks github.com/mattjoyce/issuegate/internal/api IssueTracker

// IssueTracker is the upstream issues API as the routes use it.
type IssueTracker interface {
	CreateIssue(ctx context.Context, req upstream.CreateIssueRequest) (*upstream.Issue, error)
	ListIssues(ctx context.Context, opts upstream.ListIssuesOptions) ([]upstream.Issue, http.Header, error)
	GetIssue(ctx context.Context, number int) (*upstream.Issue, error)
	UpdateIssue(ctx context.Context, number int, req upstream.UpdateIssueRequest) (*upstream.Issue, error)
	CreateComment(ctx context.Context, number int, body string) (*upstream.Comment, error)
}

// EventLister reads the stored webhook deliveries.
type EventLister interface {
	List(ctx context.Context, opts eventlog.ListOptions) ([]eventlog.Event, error)
}

// Config holds API server configuration
type Config struct {
	Listen string
	// PublicDir, when set and present, is served under /public/.
	PublicDir string
	// StreamKeepAlive is the comment interval on /events/stream.
	StreamKeepAlive time.Duration
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	issues    IssueTracker
	eventLog  EventLister
	webhook   http.Handler
	hub       *events.Hub
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance. hub may be nil, which disables the
// delivery stream.
func New(config Config, issues IssueTracker, eventLog EventLister, webhook http.Handler, hub *events.Hub, logger *slog.Logger) *Server {
	if config.StreamKeepAlive <= 0 {
		config.StreamKeepAlive = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:    config,
		issues:    issues,
		eventLog:  eventLog,
		webhook:   webhook,
		hub:       hub,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverer)

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/openapi.json", s.handleOpenAPI)

	r.Post("/issues", s.handleCreateIssue)
	r.Get("/issues", s.handleListIssues)
	r.Get("/issues/{number}", s.handleGetIssue)
	r.Patch("/issues/{number}", s.handleUpdateIssue)
	r.Post("/issues/{number}/comments", s.handleCreateComment)

	if s.webhook != nil {
		r.Post("/webhook", s.webhook.ServeHTTP)
	}
	r.Get("/events", s.handleListEvents)
	if s.hub != nil {
		r.Get("/events/stream", s.handleEventStream)
	}

	if dir := s.config.PublicDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.Handle("/public/*", http.StripPrefix("/public/", http.FileServer(http.Dir(dir))))
		} else {
			s.logger.Warn("public dir not found; static files disabled", "public_dir", dir)
		}
	}

	return r
}
