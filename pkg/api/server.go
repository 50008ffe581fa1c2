// Package api serves the sharescan HTTP control API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/sharescan/internal/logger"
	"github.com/marmos91/sharescan/pkg/api/auth"
	"github.com/marmos91/sharescan/pkg/api/handlers"
	"github.com/marmos91/sharescan/pkg/config"
)

// Server is the HTTP server of the control API.
type Server struct {
	server       *http.Server
	port         int
	shutdownOnce sync.Once
}

// NewServer creates a stopped API server for rt. Requests to /api/v1 need a
// bearer token when cfg.JWT.Secret is set.
func NewServer(cfg config.APIConfig, rt handlers.Runtime, version string) (*Server, error) {
	var jwtService *auth.JWTService
	if cfg.JWT.Secret != "" {
		svc, err := auth.NewJWTService(auth.JWTConfig{
			Secret:        cfg.JWT.Secret,
			TokenDuration: cfg.JWT.TokenDuration,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure API authentication: %w", err)
		}
		jwtService = svc
	} else {
		logger.Warn("API authentication disabled: api.jwt.secret is not set")
	}

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewRouter(rt, jwtService, version),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		port: cfg.Port,
	}, nil
}

// Start serves the API and blocks until ctx is cancelled or the listener
// fails. Cancellation triggers a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", s.port)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Stop shuts the server down. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("API server shutdown error: %w", err)
			logger.Error("API server shutdown error", logger.Err(err))
			return
		}
		logger.Info("API server stopped gracefully")
	})
	return shutdownErr
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Port returns the configured TCP port.
func (s *Server) Port() int {
	return s.port
}
