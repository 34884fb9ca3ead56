// Package api provides the HTTP REST API.
//
// Endpoints:
//
//	Flow-based (via genkit.Handler):
//	  POST /api/chat           - synchronous question answering
//	  POST /api/chat/stream    - streaming answers (Server-Sent Events)
//
//	Standard HTTP handlers:
//	  GET    /health                     - liveness probe
//	  GET    /ready                      - readiness probe (pings backends)
//	  GET    /api/sessions               - list sessions
//	  POST   /api/sessions               - create session
//	  GET    /api/sessions/{id}          - get session
//	  DELETE /api/sessions/{id}          - delete session
//	  GET    /api/sessions/{id}/messages - session history
//	  GET    /api/documents              - list documents
//	  POST   /api/documents              - add document
//	  DELETE /api/documents/{id}         - delete document
//
// File structure:
//   - server.go: server setup and lifecycle
//   - middleware.go: recovery, logging, CORS, rate limiting
//   - health.go: probes
//   - chat.go: chat endpoints (Flow + SSE)
//   - session.go: session endpoints
//   - document.go: document endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ragkit/ragkit/internal/chat"
	"github.com/ragkit/ragkit/internal/log"
	"github.com/ragkit/ragkit/internal/session"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout prevents Slowloris-style attacks.
	ReadHeaderTimeout = 10 * time.Second
	ReadTimeout       = 30 * time.Second
	// WriteTimeout is generous because answers stream token by token.
	WriteTimeout = 120 * time.Second
	IdleTimeout  = 120 * time.Second
)

// Pinger checks reachability of a backend dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerConfig collects the server's dependencies.
type ServerConfig struct {
	Sessions  session.Store
	Documents DocumentService
	ChatFlow  *chat.Flow
	Logger    log.Logger

	// Pingers are checked by the readiness probe, keyed by a short name
	// used in the probe response.
	Pingers map[string]Pinger

	// CORSOrigins lists allowed origins; empty disables CORS headers.
	CORSOrigins []string

	// RateLimit bounds requests per second across the API; zero disables
	// limiting.
	RateLimit rate.Limit
	RateBurst int
}

// Server is the HTTP server for the REST API.
type Server struct {
	mux    *http.ServeMux
	cfg    ServerConfig
	logger log.Logger
}

// NewServer creates a server with all routes registered.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()
	s := &Server{mux: mux, cfg: cfg, logger: logger}

	newHealthHandler(cfg.Pingers, logger).registerRoutes(mux)
	newSessionHandler(cfg.Sessions, logger).registerRoutes(mux)
	newDocumentHandler(cfg.Documents, logger).registerRoutes(mux)
	newChatHandler(cfg.ChatFlow, logger).registerRoutes(mux)

	return s
}

// Handler returns the handler with middleware applied.
// Order: recovery, logging, CORS, rate limiting, then routing.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
	}
	if len(s.cfg.CORSOrigins) > 0 {
		middlewares = append(middlewares, corsMiddleware(s.cfg.CORSOrigins))
	}
	if s.cfg.RateLimit > 0 {
		burst := s.cfg.RateBurst
		if burst <= 0 {
			burst = int(s.cfg.RateLimit)
		}
		middlewares = append(middlewares, rateLimitMiddleware(rate.NewLimiter(s.cfg.RateLimit, burst)))
	}
	return chain(s.mux, middlewares...)
}

// Run starts the server and blocks until the context is canceled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
