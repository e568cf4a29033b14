// Package api provides the HTTP surface of dataquay.
//
// Endpoints:
//
//	GET  /health      — liveness probe
//	GET  /ready       — readiness probe
//	POST /api/message — inbound message envelope; the reply is an SSE
//	                    stream of turn events (heartbeat, text, tool
//	                    progress, loop, error) ending with a done frame
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: logging and recovery middleware
//   - health.go: health check endpoints
//   - message.go: message endpoint and the SSE sender
//   - response.go: JSON response helpers
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dataquay/dataquay/internal/converse"
	"github.com/dataquay/dataquay/internal/log"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:3500"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout limits header reads to mitigate slow clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout must cover a whole streamed turn, including query
	// polling, so it is generous.
	WriteTimeout = 10 * time.Minute

	// IdleTimeout bounds keep-alive connections between requests.
	IdleTimeout = 2 * time.Minute
)

// Server is the HTTP server for dataquay's API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	health  *HealthHandler
	message *MessageHandler
}

// ServerConfig contains the Server's dependencies.
type ServerConfig struct {
	Controller *converse.Controller
	Logger     log.Logger
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Controller == nil {
		return nil, errors.New("turn controller is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}

	mux := http.NewServeMux()
	s := &Server{
		mux:     mux,
		logger:  cfg.Logger.With("component", "api"),
		health:  NewHealthHandler(),
		message: NewMessageHandler(cfg.Controller, cfg.Logger),
	}

	s.health.RegisterRoutes(mux)
	s.message.RegisterRoutes(mux)

	return s, nil
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), loggingMiddleware(s.logger))
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

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
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
