// Package core provides the API chassis for the wellness service. It builds
// a chi router with the cross-cutting concerns (recovery, request IDs,
// logging, CORS, compression, auth) applied before requests reach the
// domain handlers.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wellness/internal/config"
)

// RouteRegistrar mounts a group of handlers under /api.
type RouteRegistrar func(r chi.Router)

// Server holds the API dependencies. Optional collaborators (Metrics,
// Authenticator, RateLimitStore) may be left nil in tests; the matching
// middleware then passes requests through.
type Server struct {
	Config         *config.Config
	Logger         *slog.Logger
	Validator      *Validator
	Metrics        MetricsCollector
	Authenticator  Authenticator
	RateLimitStore RateLimitStore
	HealthProbes   []HealthProbe

	// APIRouteRegistrars are populated by main before MountRoutes. The
	// indirection keeps core free of handler imports.
	APIRouteRegistrars []RouteRegistrar

	closers []func() error
	router  *chi.Mux
}

// NewServer validates the critical dependencies and prepares an empty
// router. Call MountRoutes once the registrars are set.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the chi.Mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers fn to run during Shutdown, in reverse order of
// registration.
func (s *Server) OnShutdown(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Shutdown releases resources registered with OnShutdown. It runs every
// closer and returns their joined errors.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := s.closers[i](); err != nil {
			s.Logger.Error("shutdown hook failed", "error", err)
			errs = append(errs, err)
		}
	}

	s.Logger.Info("server shutdown complete")
	return errors.Join(errs...)
}
