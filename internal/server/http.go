// Package server exposes the operational HTTP surface: health, Prometheus
// metrics and a small admin view over the usage ledger. The chat transport
// does not go through here.
package server

import (
	"context"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imagebot/internal/ledger"
)

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	AdminKey        string // Optional: bearer token required for /admin routes
	MetricsEnabled  bool   // Whether to expose Prometheus metrics endpoint
	MetricsEndpoint string // HTTP path for metrics endpoint (default: /metrics)
}

// New creates a new HTTP server over the ledger.
func New(l *ledger.Ledger, cfg *Config) *Server {
	e := echo.New()
	e.HideBanner = true

	handler := NewHandler(l)

	// Build list of paths that skip authentication
	authSkipPaths := []string{"/health"}

	// Determine metrics path
	metricsPath := "/metrics"
	if cfg != nil && cfg.MetricsEnabled {
		if cfg.MetricsEndpoint != "" {
			// Normalize path to prevent traversal attacks
			metricsPath = path.Clean(cfg.MetricsEndpoint)
		}
		authSkipPaths = append(authSkipPaths, metricsPath)
	}

	// Global middleware stack (order matters)
	e.Use(middleware.Recover())

	// Authentication (skips public paths)
	if cfg != nil && cfg.AdminKey != "" {
		e.Use(AuthMiddleware(cfg.AdminKey, authSkipPaths))
	}

	// Public routes
	e.GET("/health", handler.Health)
	if cfg != nil && cfg.MetricsEnabled {
		e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	// Admin routes
	e.GET("/admin/usage", handler.Usage)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
