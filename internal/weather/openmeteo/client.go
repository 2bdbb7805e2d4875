// Package openmeteo reads current conditions from the Open-Meteo forecast API.
package openmeteo

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/runair/runair/internal/location"
	"github.com/runair/runair/internal/provider/resilience"
	"github.com/runair/runair/internal/weather"
)

const (
	// DefaultBaseURL is the Open-Meteo forecast endpoint.
	DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

	// ProviderName identifies this provider in the resilience registry.
	ProviderName = "openmeteo"

	currentFields = "temperature_2m,relative_humidity_2m,wind_speed_10m,wind_direction_10m"
	timeLayout    = "2006-01-02T15:04"
)

// LocationFinder resolves a location id to its coordinates.
type LocationFinder interface {
	FindByID(ctx context.Context, id location.ID) (location.Location, error)
}

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Locations resolves coordinates for a location id (required).
	Locations LocationFinder

	// HTTPClient overrides the transport under the resilient client.
	HTTPClient resilience.HTTPDoer

	// Timeout per attempt (default: 10s).
	Timeout time.Duration

	// Registry receives provider health when set.
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client is an Open-Meteo API client.
type Client struct {
	baseURL   string
	locations LocationFinder
	http      *resilience.Client
	logger    zerolog.Logger
}

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	httpCfg := resilience.DefaultClientConfig(ProviderName)
	httpCfg.Timeout = timeout
	httpCfg.Transport = cfg.HTTPClient
	httpCfg.Registry = cfg.Registry
	httpCfg.Logger = cfg.Logger

	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		locations: cfg.Locations,
		http:      resilience.NewClient(httpCfg),
		logger:    cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

type forecastResponse struct {
	Current *struct {
		Time             string   `json:"time"`
		Temperature      *float64 `json:"temperature_2m"`
		RelativeHumidity *float64 `json:"relative_humidity_2m"`
		WindSpeed        *float64 `json:"wind_speed_10m"`
		WindDirection    *float64 `json:"wind_direction_10m"`
	} `json:"current"`
}

// FetchLatest returns the current conditions at the coordinates of id.
func (c *Client) FetchLatest(ctx context.Context, id location.ID) (weather.Reading, bool) {
	loc, err := c.locations.FindByID(ctx, id)
	if err != nil {
		c.logger.Warn().Err(err).Str("location_id", id.String()).Msg("cannot resolve coordinates for weather lookup")
		return weather.Reading{}, false
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(loc.Coordinates.Lat, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(loc.Coordinates.Lon, 'f', 4, 64))
	params.Set("current", currentFields)
	params.Set("wind_speed_unit", "ms")
	params.Set("timezone", "GMT")

	var body forecastResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"?"+params.Encode(), nil, &body); err != nil {
		c.logger.Error().Err(err).Str("location_id", id.String()).Msg("failed to fetch current weather")
		return weather.Reading{}, false
	}

	reading, err := toReading(id, body)
	if err != nil {
		c.logger.Warn().Err(err).Str("location_id", id.String()).Msg("unusable open-meteo payload")
		return weather.Reading{}, false
	}
	return reading, true
}

func toReading(id location.ID, body forecastResponse) (weather.Reading, error) {
	cur := body.Current
	if cur == nil || cur.Temperature == nil || cur.RelativeHumidity == nil || cur.WindSpeed == nil || cur.WindDirection == nil {
		return weather.Reading{}, fmt.Errorf("%w: missing current conditions", weather.ErrInvalidReading)
	}

	measuredAt, err := time.ParseInLocation(timeLayout, cur.Time, time.UTC)
	if err != nil {
		return weather.Reading{}, fmt.Errorf("parse time %q: %w", cur.Time, err)
	}

	humidity, err := weather.NewHumidity(math.Round(*cur.RelativeHumidity*10) / 10)
	if err != nil {
		return weather.Reading{}, err
	}
	wind, err := weather.NewWind(*cur.WindSpeed, weather.CompassDirection(*cur.WindDirection))
	if err != nil {
		return weather.Reading{}, err
	}

	return weather.NewReading(id, weather.Temperature(*cur.Temperature), humidity, wind, measuredAt)
}

var _ weather.Source = (*Client)(nil)
