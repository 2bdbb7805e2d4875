package openmeteo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runair/runair/internal/location"
	"github.com/runair/runair/internal/weather/openmeteo"
)

func testCatalog(t *testing.T) *location.InMemoryCatalog {
	t.Helper()
	loc, err := location.New("openaq-1", "Gulshan", location.Coordinates{Lat: 23.7925, Lon: 90.4078}, location.TypeUrban)
	require.NoError(t, err)
	return location.NewInMemoryCatalog(loc)
}

func newClient(t *testing.T, serverURL string) *openmeteo.Client {
	t.Helper()
	return openmeteo.NewClient(openmeteo.ClientConfig{
		BaseURL:    serverURL,
		Locations:  testCatalog(t),
		HTTPClient: http.DefaultClient,
		Logger:     zerolog.Nop(),
	})
}

func TestClient_FetchLatest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "23.7925", q.Get("latitude"))
		assert.Equal(t, "90.4078", q.Get("longitude"))
		assert.Equal(t, "ms", q.Get("wind_speed_unit"))
		assert.Contains(t, q.Get("current"), "relative_humidity_2m")
		_, _ = w.Write([]byte(`{
			"latitude": 23.8, "longitude": 90.4,
			"current": {
				"time": "2026-05-01T06:15",
				"interval": 900,
				"temperature_2m": 33.4,
				"relative_humidity_2m": 71,
				"wind_speed_10m": 2.9,
				"wind_direction_10m": 182
			}
		}`))
	}))
	defer server.Close()

	reading, ok := newClient(t, server.URL).FetchLatest(context.Background(), "openaq-1")
	require.True(t, ok)
	assert.Equal(t, location.ID("openaq-1"), reading.LocationID)
	assert.InDelta(t, 33.4, reading.Temperature.Celsius(), 1e-9)
	assert.InDelta(t, 71, reading.Humidity.Percentage(), 1e-9)
	assert.InDelta(t, 2.9, reading.Wind.SpeedMetersPerSecond, 1e-9)
	assert.Equal(t, "S", reading.Wind.Direction)
	assert.Equal(t, time.Date(2026, 5, 1, 6, 15, 0, 0, time.UTC), reading.MeasuredAt)
}

func TestClient_FetchLatest_UnknownLocation(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	_, ok := newClient(t, server.URL).FetchLatest(context.Background(), "nowhere")
	assert.False(t, ok)
	assert.Zero(t, calls.Load())
}

func TestClient_FetchLatest_BadPayloads(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"missing current", http.StatusOK, `{}`},
		{"missing humidity", http.StatusOK, `{"current":{"time":"2026-05-01T06:15","temperature_2m":30,"wind_speed_10m":1,"wind_direction_10m":0}}`},
		{"bad time", http.StatusOK, `{"current":{"time":"yesterday","temperature_2m":30,"relative_humidity_2m":50,"wind_speed_10m":1,"wind_direction_10m":0}}`},
		{"humidity out of range", http.StatusOK, `{"current":{"time":"2026-05-01T06:15","temperature_2m":30,"relative_humidity_2m":140,"wind_speed_10m":1,"wind_direction_10m":0}}`},
		{"bad request", http.StatusBadRequest, `{"error":true,"reason":"Latitude must be in range"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, ok := newClient(t, server.URL).FetchLatest(context.Background(), "openaq-1")
			assert.False(t, ok)
		})
	}
}
