// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/runair/runair/internal/database"
)

// Config is the combined configuration of the api and worker processes.
type Config struct {
	Port        string
	Environment string

	Telemetry Telemetry
	Database  database.Config
	// UseDatabase selects the Postgres stores. When false the in-memory stores
	// are used.
	UseDatabase bool

	Redis     Redis
	OpenAQ    Provider
	OpenMeteo Provider

	Ingestion Ingestion
	Bootstrap Bootstrap

	AdminSigningKey string
	// RequireTLS rejects plain-HTTP requests that did not pass a TLS proxy.
	RequireTLS bool

	// HealthProbeLocation is refreshed by worker health_check jobs.
	HealthProbeLocation string

	PubSubProjectID    string
	PubSubSubscription string
}

// Telemetry configures OpenTelemetry export.
type Telemetry struct {
	Enabled     bool
	Endpoint    string
	SampleRatio float64
}

// Redis configures the reading cache. An empty Addr disables it.
type Redis struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Provider configures an upstream data provider.
type Provider struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Ingestion configures the full catalog walk and its triggers.
type Ingestion struct {
	PageSize       int
	Concurrency    int
	AirQualityCron string
	WeatherCron    string
	WarmUp         bool
	// RunTimeout bounds one scheduled run. Zero means no bound.
	RunTimeout time.Duration
	// BrowseConcurrency bounds the per-page fan-out of the browse endpoint.
	BrowseConcurrency int
}

// Bootstrap configures the startup catalog seed.
type Bootstrap struct {
	Enabled   bool
	CountryID int
	City      string
	Limit     int
	Force     bool
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the environment without touching .env files.
func FromEnv() (Config, error) {
	var errs []error
	p := parser{errs: &errs}

	cfg := Config{
		Port:        getenv("APP_PORT", "8080"),
		Environment: getenv("APP_ENV", "development"),
		Telemetry: Telemetry{
			Enabled:     p.boolVar("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRatio: p.floatVar("OTEL_TRACES_SAMPLER_ARG", 1),
		},
		Database:    database.ConfigFromEnv(),
		UseDatabase: p.boolVar("DB_ENABLED", os.Getenv("DB_HOST") != ""),
		Redis: Redis{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       p.intVar("REDIS_DB", 0),
			TTL:      p.durationVar("READING_CACHE_TTL", 10*time.Minute),
		},
		OpenAQ: Provider{
			BaseURL: getenv("OPENAQ_BASE_URL", "https://api.openaq.org/v3"),
			APIKey:  os.Getenv("OPENAQ_API_KEY"),
			Timeout: p.durationVar("OPENAQ_TIMEOUT", 10*time.Second),
		},
		OpenMeteo: Provider{
			BaseURL: getenv("OPENMETEO_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
			Timeout: p.durationVar("OPENMETEO_TIMEOUT", 10*time.Second),
		},
		Ingestion: Ingestion{
			PageSize:       p.intVar("INGESTION_PAGE_SIZE", 500),
			Concurrency:    p.intVar("INGESTION_CONCURRENCY", 1),
			AirQualityCron: getenv("SCHEDULE_AIR_QUALITY_CRON", "0 */30 * * * *"),
			WeatherCron:    getenv("SCHEDULE_WEATHER_CRON", "0 0 * * * *"),
			WarmUp:         p.boolVar("STARTUP_WARMUP", true),
			RunTimeout:     p.durationVar("INGESTION_RUN_TIMEOUT", 25*time.Minute),

			BrowseConcurrency: p.intVar("BROWSE_CONCURRENCY", 4),
		},
		Bootstrap: Bootstrap{
			Enabled:   p.boolVar("BOOTSTRAP_ENABLED", true),
			CountryID: p.intVar("BOOTSTRAP_COUNTRY_ID", 0),
			City:      getenv("BOOTSTRAP_CITY", "Dhaka"),
			Limit:     p.intVar("BOOTSTRAP_LIMIT", 1000),
			Force:     p.boolVar("BOOTSTRAP_FORCE", false),
		},
		AdminSigningKey:     os.Getenv("ADMIN_JWT_SIGNING_KEY"),
		RequireTLS:          p.boolVar("REQUIRE_TLS", false),
		HealthProbeLocation: os.Getenv("HEALTH_PROBE_LOCATION"),
		PubSubProjectID:     os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription:  os.Getenv("PUBSUB_SUBSCRIPTION"),
	}

	if cfg.Ingestion.PageSize < 1 {
		errs = append(errs, fmt.Errorf("INGESTION_PAGE_SIZE must be positive, got %d", cfg.Ingestion.PageSize))
	}
	if cfg.Ingestion.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("INGESTION_CONCURRENCY must be positive, got %d", cfg.Ingestion.Concurrency))
	}
	if cfg.Ingestion.RunTimeout < 0 {
		errs = append(errs, fmt.Errorf("INGESTION_RUN_TIMEOUT must not be negative, got %s", cfg.Ingestion.RunTimeout))
	}
	if cfg.Ingestion.BrowseConcurrency < 1 {
		errs = append(errs, fmt.Errorf("BROWSE_CONCURRENCY must be positive, got %d", cfg.Ingestion.BrowseConcurrency))
	}

	if r := cfg.Telemetry.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be within [0,1], got %g", r))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parser collects conversion errors so every bad variable is reported at once.
type parser struct {
	errs *[]error
}

func (p parser) intVar(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return n
}

func (p parser) boolVar(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return b
}

func (p parser) durationVar(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return d
}

func (p parser) floatVar(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return f
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
