// Package weather models weather readings and the stores and sources that
// hold and produce them.
package weather

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/runair/runair/internal/location"
)

var (
	// ErrNoReading is returned by a Repository that has nothing stored for a
	// location.
	ErrNoReading      = errors.New("no weather reading")
	ErrInvalidReading = errors.New("invalid weather reading")
)

// Temperature in degrees Celsius.
type Temperature float64

// Celsius returns the value as a float64.
func (t Temperature) Celsius() float64 { return float64(t) }

// Humidity is relative humidity in percent.
type Humidity float64

// NewHumidity requires a value within [0, 100].
func NewHumidity(pct float64) (Humidity, error) {
	if math.IsNaN(pct) || pct < 0 || pct > 100 {
		return 0, fmt.Errorf("%w: humidity must be within [0,100], got %v", ErrInvalidReading, pct)
	}
	return Humidity(pct), nil
}

// Percentage returns the value as a float64.
func (h Humidity) Percentage() float64 { return float64(h) }

// Wind is the surface wind at observation time.
type Wind struct {
	SpeedMetersPerSecond float64
	Direction            string
}

// NewWind requires a non-negative speed and a direction.
func NewWind(speedMPS float64, direction string) (Wind, error) {
	w := Wind{SpeedMetersPerSecond: speedMPS, Direction: strings.TrimSpace(direction)}
	if err := w.Validate(); err != nil {
		return Wind{}, err
	}
	return w, nil
}

// Validate checks the wind invariants.
func (w Wind) Validate() error {
	if math.IsNaN(w.SpeedMetersPerSecond) || math.IsInf(w.SpeedMetersPerSecond, 0) || w.SpeedMetersPerSecond < 0 {
		return fmt.Errorf("%w: wind speed must be finite and >= 0", ErrInvalidReading)
	}
	if strings.TrimSpace(w.Direction) == "" {
		return fmt.Errorf("%w: wind direction is required", ErrInvalidReading)
	}
	return nil
}

var compassPoints = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// CompassDirection converts degrees clockwise from north to an eight-point
// compass label.
func CompassDirection(degrees float64) string {
	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}
	return compassPoints[int(math.Round(d/45))%len(compassPoints)]
}

// Reading is the weather observed at a location at one instant.
type Reading struct {
	LocationID  location.ID
	Temperature Temperature
	Humidity    Humidity
	Wind        Wind
	MeasuredAt  time.Time
}

// NewReading validates and builds a Reading.
func NewReading(id location.ID, temp Temperature, humidity Humidity, wind Wind, measuredAt time.Time) (Reading, error) {
	r := Reading{
		LocationID:  id,
		Temperature: temp,
		Humidity:    humidity,
		Wind:        wind,
		MeasuredAt:  measuredAt,
	}
	if err := r.Validate(); err != nil {
		return Reading{}, err
	}
	return r, nil
}

// Validate checks the reading invariants.
func (r Reading) Validate() error {
	if r.LocationID == "" {
		return fmt.Errorf("%w: missing location id", ErrInvalidReading)
	}
	if t := float64(r.Temperature); math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("%w: temperature must be finite", ErrInvalidReading)
	}
	if _, err := NewHumidity(float64(r.Humidity)); err != nil {
		return err
	}
	if err := r.Wind.Validate(); err != nil {
		return err
	}
	if r.MeasuredAt.IsZero() {
		return fmt.Errorf("%w: missing measurement time", ErrInvalidReading)
	}
	return nil
}
