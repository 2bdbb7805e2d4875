// Package openaq reads the latest measurements and the station catalog from
// the OpenAQ v3 API.
package openaq

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/runair/runair/internal/airquality"
	"github.com/runair/runair/internal/location"
	"github.com/runair/runair/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the OpenAQ v3 API root.
	DefaultBaseURL = "https://api.openaq.org/v3"

	// ProviderName identifies this provider in the resilience registry.
	ProviderName = "openaq"

	idPrefix = "openaq-"
)

// ClientConfig holds configuration for the OpenAQ client.
type ClientConfig struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// APIKey is sent as X-API-Key when set.
	APIKey string

	// HTTPClient overrides the transport under the resilient client.
	HTTPClient resilience.HTTPDoer

	// Timeout per attempt (default: 10s).
	Timeout time.Duration

	// Registry receives provider health when set.
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client is an OpenAQ API client.
type Client struct {
	baseURL string
	apiKey  string
	http    *resilience.Client
	logger  zerolog.Logger
}

// NewClient creates a new OpenAQ client.
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
	httpCfg.InitialInterval = 200 * time.Millisecond
	httpCfg.Transport = cfg.HTTPClient
	httpCfg.Registry = cfg.Registry
	httpCfg.Logger = cfg.Logger

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    resilience.NewClient(httpCfg),
		logger:  cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// API response types (OpenAQ v3).

type latestResponse struct {
	Results []latestMeasurement `json:"results"`
}

type latestMeasurement struct {
	Datetime *struct {
		UTC string `json:"utc"`
	} `json:"datetime"`
	Value     *float64 `json:"value"`
	SensorsID int      `json:"sensorsId"`
}

type locationsResponse struct {
	Results []locationData `json:"results"`
}

type locationData struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Locality    string `json:"locality"`
	City        string `json:"city"`
	IsMobile    bool   `json:"isMobile"`
	Coordinates *struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"coordinates"`
	Provider *struct {
		Name string `json:"name"`
	} `json:"provider"`
}

// FetchLatest returns the newest usable measurement set for id. Samples
// without a value or timestamp, or with a negative or non-finite value, are
// ignored. The index is the largest rounded value among samples taken at
// the newest timestamp.
func (c *Client) FetchLatest(ctx context.Context, id location.ID) (airquality.Reading, bool) {
	numericID, ok := ParseLocationID(id)
	if !ok {
		c.logger.Warn().Str("location_id", id.String()).Msg("unsupported openaq location id format")
		return airquality.Reading{}, false
	}

	var body latestResponse
	endpoint := fmt.Sprintf("%s/locations/%d/latest", c.baseURL, numericID)
	if err := c.http.GetJSON(ctx, endpoint, c.headers(), &body); err != nil {
		c.logger.Error().Err(err).Str("location_id", id.String()).Msg("failed to fetch latest air quality")
		return airquality.Reading{}, false
	}

	type sample struct {
		value float64
		at    time.Time
	}
	var (
		samples []sample
		newest  time.Time
	)
	for _, m := range body.Results {
		if m.Value == nil || m.Datetime == nil {
			continue
		}
		v := *m.Value
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			continue
		}
		at, err := time.Parse(time.RFC3339, m.Datetime.UTC)
		if err != nil {
			continue
		}
		samples = append(samples, sample{value: v, at: at})
		if at.After(newest) {
			newest = at
		}
	}
	if len(samples) == 0 {
		c.logger.Debug().Str("location_id", id.String()).Msg("no usable openaq measurements")
		return airquality.Reading{}, false
	}

	highest := 0
	for _, s := range samples {
		if !s.at.Equal(newest) {
			continue
		}
		if v := int(math.Round(s.value)); v > highest {
			highest = v
		}
	}

	reading, err := airquality.NewReading(id, airquality.AQI(highest), nil, newest.UTC())
	if err != nil {
		c.logger.Error().Err(err).Str("location_id", id.String()).Msg("openaq produced an invalid reading")
		return airquality.Reading{}, false
	}
	return reading, true
}

// Discover lists monitoring sites for the bootstrap.
func (c *Client) Discover(ctx context.Context, opts location.DiscoverOptions) ([]location.Candidate, error) {
	city := strings.ToLower(strings.TrimSpace(opts.City))
	countryID := opts.CountryID
	if countryID == 0 {
		countryID = countryForCity(city)
	}

	params := url.Values{}
	if countryID > 0 {
		params.Set("countries_id", strconv.Itoa(countryID))
		params.Set("limit", "500")
	} else {
		params.Set("limit", "1000")
	}

	var body locationsResponse
	endpoint := c.baseURL + "/locations?" + params.Encode()
	if err := c.http.GetJSON(ctx, endpoint, c.headers(), &body); err != nil {
		return nil, fmt.Errorf("fetch openaq locations: %w", err)
	}

	matched := filterLocations(body.Results, func(l locationData) bool {
		return city == "" || matchesCity(l.City, city) || matchesCity(l.Locality, city)
	})
	if len(matched) == 0 {
		matched = filterLocations(body.Results, func(l locationData) bool {
			return strings.Contains(strings.ToLower(l.Name), city)
		})
	}
	if len(matched) == 0 && countryID > 0 {
		matched = body.Results
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	c.logger.Info().
		Int("matched", len(matched)).
		Int("total", len(body.Results)).
		Str("city", opts.City).
		Int("country_id", countryID).
		Msg("fetched openaq locations")

	candidates := make([]location.Candidate, 0, len(matched))
	for _, l := range matched {
		candidate := location.Candidate{
			ProviderID: l.ID,
			Name:       l.Name,
			Locality:   l.Locality,
			City:       l.City,
			Mobile:     l.IsMobile,
		}
		if l.Coordinates != nil && l.Coordinates.Latitude != nil && l.Coordinates.Longitude != nil {
			candidate.Coordinates = &location.Coordinates{Lat: *l.Coordinates.Latitude, Lon: *l.Coordinates.Longitude}
		}
		if l.Provider != nil {
			candidate.ProviderName = l.Provider.Name
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

// ParseLocationID extracts the numeric OpenAQ id from "openaq-<n>" or "<n>".
func ParseLocationID(id location.ID) (int, bool) {
	raw := strings.TrimSpace(string(id))
	if strings.HasPrefix(strings.ToLower(raw), idPrefix) {
		raw = raw[len(idPrefix):]
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	if c.apiKey != "" {
		h.Set("X-API-Key", c.apiKey)
	}
	return h
}

func countryForCity(city string) int {
	switch {
	case strings.Contains(city, "dhaka"):
		return 128
	case strings.Contains(city, "delhi"), strings.Contains(city, "mumbai"),
		strings.Contains(city, "bangalore"), strings.Contains(city, "kolkata"):
		return 9
	default:
		return 0
	}
}

func matchesCity(value, city string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return false
	}
	return strings.Contains(value, city) || strings.Contains(city, value)
}

func filterLocations(in []locationData, keep func(locationData) bool) []locationData {
	var out []locationData
	for _, l := range in {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

var (
	_ airquality.Source   = (*Client)(nil)
	_ location.Discoverer = (*Client)(nil)
)
