// Package main provides the entrypoint for the runair ingestion worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/runair/runair/internal/api/handler"
	"github.com/runair/runair/internal/api/middleware"
	"github.com/runair/runair/internal/api/response"
	"github.com/runair/runair/internal/app"
	"github.com/runair/runair/internal/config"
	"github.com/runair/runair/internal/location"
	"github.com/runair/runair/internal/scheduler"
	"github.com/runair/runair/internal/telemetry"
	"github.com/runair/runair/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

type jobStatus struct {
	Schedule []scheduleEntry `json:"schedule"`
	Messages worker.Metrics  `json:"messages"`
}

type scheduleEntry struct {
	Name    string               `json:"name"`
	Spec    string               `json:"spec"`
	Next    time.Time            `json:"next"`
	LastRun *scheduler.RunRecord `json:"lastRun,omitempty"`
}

func main() {
	const serviceName = "runair-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting runair worker")

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

	components, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build services")
	}
	defer components.Close()

	if err := components.Bootstrap(ctx, cfg.Bootstrap); err != nil {
		log.Error().Err(err).Msg("catalog bootstrap failed, continuing with current catalog")
	}

	sched, err := scheduler.New(scheduler.Config{
		Runner:         components.Ingestion,
		PageSize:       cfg.Ingestion.PageSize,
		AirQualitySpec: cfg.Ingestion.AirQualityCron,
		WeatherSpec:    cfg.Ingestion.WeatherCron,
		RunTimeout:     cfg.Ingestion.RunTimeout,
		Logger:         log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid ingestion schedule")
	}

	if cfg.Ingestion.WarmUp {
		if err := sched.WarmUp(ctx); err != nil {
			log.Error().Err(err).Msg("startup warm-up failed")
		}
	}
	sched.Start()

	dispatcher := worker.NewDispatcher(worker.DispatcherConfig{
		Ingester:      components.Ingestion,
		Refresher:     components.Orchestrator,
		PageSize:      cfg.Ingestion.PageSize,
		ProbeLocation: location.ID(cfg.HealthProbeLocation),
		Logger:        log,
	})

	var wg sync.WaitGroup
	if cfg.PubSubProjectID != "" && cfg.PubSubSubscription != "" {
		subscriber, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			Dispatcher:       dispatcher,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer subscriber.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub receive stopped")
			}
		}()
	} else {
		log.Info().Msg("pubsub not configured, running scheduled jobs only")
	}

	ops := handler.NewOpsHandler(handler.OpsConfig{
		Version:   Version,
		BuildTime: BuildTime,
		Checks:    components.Checks,
		Providers: components.Providers,
	})

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Logger(log))
	mux.Use(middleware.Recovery(log))
	mux.Use(middleware.ContentTypeJSON)
	mux.Get("/health", ops.HealthCheck)
	mux.Get("/ready", ops.ReadinessCheck)
	mux.Get("/status", ops.SystemStatus)
	mux.Get("/jobs", func(w http.ResponseWriter, r *http.Request) {
		status := jobStatus{Messages: dispatcher.Metrics()}
		for _, e := range sched.Entries() {
			entry := scheduleEntry{Name: e.Name, Spec: e.Spec, Next: e.Next}
			if rec, ok := sched.LastRun(e.Name); ok {
				entry.LastRun = &rec
			}
			status.Schedule = append(status.Schedule, entry)
		}
		response.JSON(w, r, http.StatusOK, status)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sched.Stop(shutdownCtx)
	wg.Wait()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
