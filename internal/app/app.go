// Package app assembles the stores, provider clients and services shared by
// the api and worker binaries.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/runair/runair/internal/airquality"
	"github.com/runair/runair/internal/airquality/openaq"
	"github.com/runair/runair/internal/api/handler"
	"github.com/runair/runair/internal/cache"
	"github.com/runair/runair/internal/config"
	"github.com/runair/runair/internal/database"
	"github.com/runair/runair/internal/ingestion"
	"github.com/runair/runair/internal/location"
	"github.com/runair/runair/internal/provider/resilience"
	"github.com/runair/runair/internal/query"
	"github.com/runair/runair/internal/refresh"
	"github.com/runair/runair/internal/weather"
	"github.com/runair/runair/internal/weather/openmeteo"
)

const cacheKeyPrefix = "runair:"

// Components is the assembled service graph.
type Components struct {
	Catalog    location.Catalog
	AirQuality airquality.Repository
	Weather    weather.Repository

	Providers *resilience.Registry
	OpenAQ    *openaq.Client
	OpenMeteo *openmeteo.Client

	Orchestrator *refresh.Orchestrator
	Queries      *query.Service
	Ingestion    *ingestion.Driver

	// Checks probe the backing stores for readiness.
	Checks []handler.Check

	closers []func()
	log     zerolog.Logger
}

// Build connects the configured stores and wires the services on top.
// Close must be called to release connections.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Components, error) {
	c := &Components{log: log}

	if cfg.UseDatabase {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, pool.Close)
		if err := database.EnsureSchema(ctx, pool); err != nil {
			c.Close()
			return nil, err
		}
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")

		c.Catalog = location.NewPostgresCatalog(pool)
		c.AirQuality = airquality.NewPostgresRepository(pool)
		c.Weather = weather.NewPostgresRepository(pool)
		c.Checks = append(c.Checks, handler.Check{Name: "database", Probe: pool.Ping})
	} else {
		log.Warn().Msg("no database configured, using in-memory stores")
		c.Catalog = location.NewInMemoryCatalog()
		c.AirQuality = airquality.NewInMemoryRepository()
		c.Weather = weather.NewInMemoryRepository()
	}

	if cfg.Redis.Addr != "" {
		client, err := cache.ConnectRedis(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, func() { _ = client.Close() })

		store := cache.NewRedisStore(client, cacheKeyPrefix)
		c.AirQuality = cache.NewAirQualityRepository(c.AirQuality, store, cfg.Redis.TTL, log)
		c.Weather = cache.NewWeatherRepository(c.Weather, store, cfg.Redis.TTL, log)
		c.Checks = append(c.Checks, handler.Check{
			Name:  "redis",
			Probe: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
		log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.TTL).Msg("reading cache enabled")
	}

	c.Providers = resilience.NewRegistry()
	c.OpenAQ = openaq.NewClient(openaq.ClientConfig{
		BaseURL:  cfg.OpenAQ.BaseURL,
		APIKey:   cfg.OpenAQ.APIKey,
		Timeout:  cfg.OpenAQ.Timeout,
		Registry: c.Providers,
		Logger:   log,
	})
	c.OpenMeteo = openmeteo.NewClient(openmeteo.ClientConfig{
		BaseURL:   cfg.OpenMeteo.BaseURL,
		Locations: c.Catalog,
		Timeout:   cfg.OpenMeteo.Timeout,
		Registry:  c.Providers,
		Logger:    log,
	})

	c.Orchestrator = refresh.NewOrchestrator(refresh.Config{
		AirQualitySource: c.OpenAQ,
		WeatherSource:    c.OpenMeteo,
		AirQualityStore:  c.AirQuality,
		WeatherStore:     c.Weather,
		Logger:           log,
	})
	c.Queries = query.NewService(query.ServiceConfig{
		Catalog:    c.Catalog,
		AirQuality: c.AirQuality,
		Weather:    c.Weather,
		Refresher:  c.Orchestrator,
		Logger:     log,

		BrowseConcurrency: cfg.Ingestion.BrowseConcurrency,
	})
	c.Ingestion = ingestion.NewDriver(ingestion.Config{
		Catalog:     c.Catalog,
		Refresher:   c.Orchestrator,
		Concurrency: cfg.Ingestion.Concurrency,
		Logger:      log,
	})

	return c, nil
}

// Bootstrap seeds an empty catalog from OpenAQ when enabled.
func (c *Components) Bootstrap(ctx context.Context, cfg config.Bootstrap) error {
	if !cfg.Enabled {
		return nil
	}
	stats, err := location.NewBootstrapper(location.BootstrapConfig{
		Catalog:    c.Catalog,
		Discoverer: c.OpenAQ,
		Options: location.DiscoverOptions{
			City:      cfg.City,
			CountryID: cfg.CountryID,
			Limit:     cfg.Limit,
		},
		Force:  cfg.Force,
		Logger: c.log,
	}).Run(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap catalog: %w", err)
	}
	if !stats.Skipped {
		c.log.Info().
			Int("discovered", stats.Discovered).
			Int("saved", stats.Saved).
			Int("unmappable", stats.Unmappable).
			Msg("catalog bootstrapped")
	}
	return nil
}

// Close releases connections in reverse order of acquisition.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
