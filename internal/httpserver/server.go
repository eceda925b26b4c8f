// Package httpserver provides the HTTP API for SiteSmith.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sitesmith-tech/sitesmith/internal/config"
	"github.com/sitesmith-tech/sitesmith/internal/httpserver/handlers"
	"github.com/sitesmith-tech/sitesmith/internal/httpserver/middleware"
	"github.com/sitesmith-tech/sitesmith/internal/httpserver/websocket"
	"github.com/sitesmith-tech/sitesmith/internal/progress"
)

// Server is the HTTP server for the provisioning API.
type Server struct {
	config         *config.Config
	router         chi.Router
	httpServer     *http.Server
	streamer       *websocket.Streamer
	rateLimit      func(http.Handler) http.Handler
	closeRateLimit func() error
}

// ServerDeps contains dependencies for creating a new server.
type ServerDeps struct {
	Config   *config.Config
	Bus      *progress.Bus
	Handlers *handlers.Context
}

// NewServer creates a new HTTP server.
func NewServer(deps ServerDeps) *Server {
	s := &Server{
		config:   deps.Config,
		streamer: websocket.NewStreamer(deps.Bus),
	}
	s.rateLimit, s.closeRateLimit = middleware.RateLimit(deps.Config.Auth.RateLimitPerMinute)

	handlers.SetContext(deps.Handlers)

	s.router = s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         deps.Config.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Addr, err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	_ = s.closeRateLimit()
	return s.httpServer.Shutdown(ctx)
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.config.Server.Addr
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.config.Server.ShutdownTimeout > 0 {
		return s.config.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
