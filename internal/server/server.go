// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

// Package server exposes the catalog over HTTP: tool CRUD, semantic
// search, search history, health and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

const shutdownTimeout = 10 * time.Second

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	APIPrefix    string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// SearchRateLimit throttles POST {prefix}/search per client IP.
	SearchRateLimit RateLimitConfig
	// TrustedProxies lists CIDRs whose forwarding headers are honoured.
	// When empty the socket peer address is the client IP.
	TrustedProxies []string
	Version         string
	Logger          *slog.Logger
	// Registry receives the HTTP metrics and backs GET /metrics. A fresh
	// registry is used when nil.
	Registry *prometheus.Registry
}

// Server wraps a chi router with a huma API and an HTTP server.
type Server struct {
	router   chi.Router
	api      huma.API
	cfg      Config
	services *Services
	logger   *slog.Logger
}

// New creates a Server with every route registered.
func New(cfg Config, svc *Services) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, tserr.New(tserr.CodeServerConfigInvalid, "listen address is required")
	}
	if svc == nil {
		return nil, tserr.New(tserr.CodeServerConfigInvalid, "services are required")
	}
	if err := cfg.SearchRateLimit.Validate(); err != nil {
		return nil, err
	}
	trusted, err := parseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	logger := cfg.Logger.With("component", "server")
	metrics := newHTTPMetrics(cfg.Registry)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(trustedProxyRealIP(trusted, logger))
	r.Use(requestID)
	r.Use(accessLog(logger))
	r.Use(metrics.middleware)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(newIPLimiter(cfg.SearchRateLimit).forRoute(http.MethodPost, cfg.APIPrefix+"/search"))

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))

	humaConfig := huma.DefaultConfig("Toolsearch", cfg.Version)
	humaConfig.Info.Description = "Tool catalog with semantic search"
	api := humachi.New(r, humaConfig)

	srv := &Server{
		router:   r,
		api:      api,
		cfg:      cfg,
		services: svc,
		logger:   logger,
	}
	srv.registerRoutes()

	return srv, nil
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API, used to generate the OpenAPI document.
func (s *Server) API() huma.API {
	return s.api
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return tserr.Wrapf(err, tserr.CodeServerStartFailure, "listening on %s", s.cfg.ListenAddr)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener. It closes ln before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("listening", "addr", ln.Addr().String(), "api_prefix", s.cfg.APIPrefix)

	select {
	case err := <-errCh:
		if err != nil {
			return tserr.Wrap(err, tserr.CodeServerStartFailure, "serving http")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return tserr.Wrap(err, tserr.CodeServerShutdownFailure, "shutting down")
	}
	s.logger.Info("server stopped")
	return <-errCh
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
