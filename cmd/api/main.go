// Package main provides the entrypoint for the runair API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/runair/runair/internal/api"
	"github.com/runair/runair/internal/api/handler"
	"github.com/runair/runair/internal/api/middleware"
	"github.com/runair/runair/internal/app"
	"github.com/runair/runair/internal/auth"
	"github.com/runair/runair/internal/config"
	"github.com/runair/runair/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "runair-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting runair API")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	components, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build services")
	}
	defer components.Close()

	if err := components.Bootstrap(ctx, cfg.Bootstrap); err != nil {
		log.Error().Err(err).Msg("catalog bootstrap failed, continuing with current catalog")
	}

	routerCfg := api.RouterConfig{
		Version:    Version,
		BuildTime:  BuildTime,
		Logger:     log,
		Metrics:    metrics,
		Queries:    components.Queries,
		Checks:     components.Checks,
		Providers:  components.Providers,
		RequireTLS: cfg.RequireTLS,
	}

	var admin *handler.AdminHandler
	if cfg.AdminSigningKey != "" {
		tokens, err := auth.NewTokenService(auth.TokenConfig{SigningKey: cfg.AdminSigningKey})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize admin tokens")
		}
		admin = handler.NewAdminHandler(handler.AdminConfig{
			Catalog:     components.Catalog,
			Refresher:   components.Orchestrator,
			Ingestion:   components.Ingestion,
			PageSize:    cfg.Ingestion.PageSize,
			BaseContext: ctx,
			Logger:      log,
		})
		routerCfg.Admin = admin
		routerCfg.Tokens = tokens
	} else {
		log.Warn().Msg("ADMIN_JWT_SIGNING_KEY not set, admin endpoints disabled")
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Error().Err(err).Msg("server error")
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if admin != nil {
		admin.Wait()
	}

	log.Info().Msg("server stopped")
}
