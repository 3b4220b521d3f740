// Package httpserver provides the HTTP REST API server for the paper parsing service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-parsing-service/internal/database"
	"github.com/helixir/paper-parsing-service/internal/domain"
	"github.com/helixir/paper-parsing-service/internal/events"
	"github.com/helixir/paper-parsing-service/internal/observability"
	"github.com/helixir/paper-parsing-service/internal/pipeline"
	"github.com/helixir/paper-parsing-service/internal/repository"
)

// Parser runs the extraction pipeline over a spooled PDF.
type Parser interface {
	// ExtractReferences produces the gated bibliography for the document.
	ExtractReferences(ctx context.Context, pdfPath string) ([]domain.ReferenceRecord, error)

	// ExtractMethodsAndTables produces methods text, table candidates and the
	// LLM summary for the document.
	ExtractMethodsAndTables(ctx context.Context, pdfPath, pages string) (pipeline.MethodsTablesResult, error)
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	paperRepo  repository.PaperRepository
	parser     Parser
	publisher  events.Publisher
	db         *database.DB
	metrics    *observability.Metrics
	logger     zerolog.Logger

	uploadDir      string
	uploadMaxBytes int64
	metricsPath    string
	authMiddleware func(http.Handler) http.Handler
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// UploadDir is where uploads are spooled ("" = system temp).
	UploadDir string
	// UploadMaxBytes caps accepted upload sizes.
	UploadMaxBytes int64
	// MetricsPath exposes the Prometheus endpoint when non-empty.
	MetricsPath string
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(
	cfg Config,
	paperRepo repository.PaperRepository,
	parser Parser,
	publisher events.Publisher,
	db *database.DB,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	authMiddleware func(http.Handler) http.Handler,
) *Server {
	s := &Server{
		paperRepo:      paperRepo,
		parser:         parser,
		publisher:      publisher,
		db:             db,
		metrics:        metrics,
		logger:         logger.With().Str("component", "http-server").Logger(),
		uploadDir:      cfg.UploadDir,
		uploadMaxBytes: cfg.UploadMaxBytes,
		metricsPath:    cfg.MetricsPath,
		authMiddleware: authMiddleware,
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Router returns the configured chi router. Used by tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)

	// Health endpoints (no auth)
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	if s.metricsPath != "" {
		r.Method(http.MethodGet, s.metricsPath, promhttp.Handler())
	}

	// API routes with auth
	r.Route("/api/v1/papers", func(r chi.Router) {
		if s.authMiddleware != nil {
			r.Use(s.authMiddleware)
		}

		r.Post("/references", s.parseReferences)
		r.Post("/methods-tables", s.parseMethodsTables)
		r.Get("/", s.listPapers)
		r.Get("/{paperID}", s.getPaper)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
