// Package main is the entry point for the wellness API server.
//
// It loads configuration, opens Postgres (and Redis when configured), wires
// the alert, preference, gamification and device handlers onto the core
// chassis, and serves HTTP until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"wellness/internal/api/handlers"
	"wellness/internal/app"
	"wellness/internal/auth"
	"wellness/internal/config"
	"wellness/internal/core"
	"wellness/internal/db"
	"wellness/internal/ratelimit"
	"wellness/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("wellness API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"push_provider", cfg.Push.Provider,
		"redis", cfg.Redis.Enabled(),
	)

	ctx := context.Background()
	infra, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}

	dispatcher, err := infra.Dispatcher()
	if err != nil {
		_ = infra.Close()
		return err
	}

	srv, err := buildServer(cfg, logger, depsFromInfra(infra, dispatcher))
	if err != nil {
		_ = infra.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.OnShutdown(infra.Close)

	return runHTTPServer(srv, cfg, logger)
}

// serverDeps are the collaborators mounted on the server. Production values
// come from depsFromInfra; tests pass fakes.
type serverDeps struct {
	Authenticator core.Authenticator
	RateLimit     core.RateLimitStore
	Metrics       core.MetricsCollector
	Probes        []core.HealthProbe
	Clock         types.Clock

	Dispatcher  handlers.AlertDispatcher
	Preferences handlers.PreferenceStore
	Catalog     handlers.AlertCatalog
	XP          handlers.XPAwarder
	Devices     handlers.DeviceRegistry
}

func depsFromInfra(in *app.Infra, dispatcher handlers.AlertDispatcher) serverDeps {
	deps := serverDeps{
		Authenticator: auth.NewSessionAuthenticator(db.NewSessionRepository(in.Pool), in.Clock, in.Log.With("component", "auth")),
		Probes:        []core.HealthProbe{db.PoolProbe{Pool: in.Pool}},
		Clock:         in.Clock,
		Dispatcher:    dispatcher,
		Preferences:   db.NewPreferenceRepository(in.Pool),
		Catalog:       db.NewAlertTypeRepository(in.Pool),
		XP:            in.Gamification(),
		Devices:       db.NewPushDeviceRepository(in.Pool),
	}

	if in.Redis != nil {
		deps.RateLimit = ratelimit.NewRedisStore(in.Redis, in.Clock)
		deps.Probes = append(deps.Probes, ratelimit.NewProbe(in.Redis))
	} else {
		deps.RateLimit = ratelimit.NewMemoryStore(in.Clock)
	}

	if in.Config.Observability.EnableMetrics {
		deps.Metrics = core.NewCloudWatchRequestMetrics(
			cloudwatch.NewFromConfig(in.AWS), in.Config.Observability.MetricNamespace, in.Log)
	}
	return deps
}

func buildServer(cfg *config.Config, logger *slog.Logger, deps serverDeps) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, err
	}
	srv.Authenticator = deps.Authenticator
	srv.RateLimitStore = deps.RateLimit
	srv.Metrics = deps.Metrics
	srv.HealthProbes = deps.Probes

	srv.APIRouteRegistrars = append(srv.APIRouteRegistrars, handlers.Routes(srv, handlers.Set{
		Cron:         handlers.NewCronHandler(deps.Dispatcher, logger),
		Preferences:  handlers.NewPreferenceHandler(deps.Preferences, deps.Catalog, srv.Validator, deps.Clock, logger),
		Gamification: handlers.NewGamificationHandler(deps.XP, srv.Validator, logger),
		Devices:      handlers.NewDeviceHandler(deps.Devices, srv.Validator, deps.Clock, logger),
	}))

	srv.MountRoutes()
	return srv, nil
}

// runHTTPServer serves until a shutdown signal or a listener error, then
// drains in-flight requests and releases server resources.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// The cron pass runs inside a request.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			_ = srv.Shutdown(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
