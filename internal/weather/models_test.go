package weather_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runair/runair/internal/weather"
)

func TestNewHumidity(t *testing.T) {
	for _, ok := range []float64{0, 55.5, 100} {
		h, err := weather.NewHumidity(ok)
		require.NoError(t, err)
		assert.InDelta(t, ok, h.Percentage(), 1e-9)
	}
	for _, bad := range []float64{-1, 100.1, math.NaN()} {
		_, err := weather.NewHumidity(bad)
		assert.ErrorIs(t, err, weather.ErrInvalidReading)
	}
}

func TestNewWind(t *testing.T) {
	w, err := weather.NewWind(3.2, " NE ")
	require.NoError(t, err)
	assert.Equal(t, "NE", w.Direction)

	_, err = weather.NewWind(-0.5, "N")
	assert.ErrorIs(t, err, weather.ErrInvalidReading)

	_, err = weather.NewWind(1, "  ")
	assert.ErrorIs(t, err, weather.ErrInvalidReading)
}

func TestCompassDirection(t *testing.T) {
	tests := []struct {
		degrees float64
		want    string
	}{
		{0, "N"},
		{22, "N"},
		{23, "NE"},
		{90, "E"},
		{180, "S"},
		{225, "SW"},
		{350, "N"},
		{-90, "W"},
		{720, "N"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, weather.CompassDirection(tt.degrees), "degrees=%v", tt.degrees)
	}
}

func TestNewReading(t *testing.T) {
	wind := weather.Wind{SpeedMetersPerSecond: 2, Direction: "S"}
	_, err := weather.NewReading("loc", 30, 60, wind, time.Now())
	require.NoError(t, err)

	_, err = weather.NewReading("loc", weather.Temperature(math.Inf(1)), 60, wind, time.Now())
	assert.ErrorIs(t, err, weather.ErrInvalidReading)

	_, err = weather.NewReading("loc", 30, 120, wind, time.Now())
	assert.ErrorIs(t, err, weather.ErrInvalidReading)

	_, err = weather.NewReading("", 30, 60, wind, time.Now())
	assert.ErrorIs(t, err, weather.ErrInvalidReading)
}

func TestInMemoryRepository(t *testing.T) {
	repo := weather.NewInMemoryRepository()
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)
	wind := weather.Wind{SpeedMetersPerSecond: 1, Direction: "N"}

	_, err := repo.FindLatest(ctx, "loc")
	assert.ErrorIs(t, err, weather.ErrNoReading)

	_, err = repo.Save(ctx, weather.Reading{LocationID: "loc", Temperature: 31, Humidity: 70, Wind: wind, MeasuredAt: now})
	require.NoError(t, err)
	_, err = repo.Save(ctx, weather.Reading{LocationID: "loc", Temperature: 20, Humidity: 70, Wind: wind, MeasuredAt: now.Add(-time.Hour)})
	require.NoError(t, err)

	got, err := repo.FindLatest(ctx, "loc")
	require.NoError(t, err)
	assert.InDelta(t, 31, got.Temperature.Celsius(), 1e-9)

	_, err = repo.Save(ctx, weather.Reading{LocationID: "loc", Temperature: 31, Humidity: 170, Wind: wind, MeasuredAt: now})
	assert.ErrorIs(t, err, weather.ErrInvalidReading)
}
