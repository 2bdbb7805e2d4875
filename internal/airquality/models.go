// Package airquality models air-quality readings and the stores and sources
// that hold and produce them.
package airquality

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/runair/runair/internal/location"
)

var (
	// ErrNoReading is returned by a Repository that has nothing stored for a
	// location.
	ErrNoReading      = errors.New("no air quality reading")
	ErrInvalidReading = errors.New("invalid air quality reading")
)

// AQI is a non-negative air quality index value.
type AQI int

// NewAQI rejects negative values.
func NewAQI(v int) (AQI, error) {
	if v < 0 {
		return 0, fmt.Errorf("%w: aqi must be >= 0, got %d", ErrInvalidReading, v)
	}
	return AQI(v), nil
}

// Value returns the index as an int.
func (a AQI) Value() int { return int(a) }

// Category is the health band an AQI value falls in.
type Category string

const (
	CategoryGood                  Category = "GOOD"
	CategoryModerate              Category = "MODERATE"
	CategoryUnhealthyForSensitive Category = "UNHEALTHY_FOR_SENSITIVE"
	CategoryUnhealthy             Category = "UNHEALTHY"
	CategoryVeryUnhealthy         Category = "VERY_UNHEALTHY"
	CategoryHazardous             Category = "HAZARDOUS"
)

// Category maps the value to its band.
func (a AQI) Category() Category {
	switch {
	case a <= 50:
		return CategoryGood
	case a <= 100:
		return CategoryModerate
	case a <= 150:
		return CategoryUnhealthyForSensitive
	case a <= 200:
		return CategoryUnhealthy
	case a <= 300:
		return CategoryVeryUnhealthy
	default:
		return CategoryHazardous
	}
}

// Pollutant identifies a measured species.
type Pollutant string

const (
	PollutantPM25 Pollutant = "PM25"
	PollutantPM10 Pollutant = "PM10"
	PollutantNO2  Pollutant = "NO2"
	PollutantO3   Pollutant = "O3"
	PollutantSO2  Pollutant = "SO2"
	PollutantCO   Pollutant = "CO"
)

// Concentration is the mass concentration of one pollutant in µg/m³.
type Concentration struct {
	Pollutant               Pollutant
	MicrogramsPerCubicMeter float64
}

// NewConcentration requires a finite, non-negative value.
func NewConcentration(p Pollutant, ugm3 float64) (Concentration, error) {
	if math.IsNaN(ugm3) || math.IsInf(ugm3, 0) || ugm3 < 0 {
		return Concentration{}, fmt.Errorf("%w: concentration of %s must be finite and >= 0", ErrInvalidReading, p)
	}
	return Concentration{Pollutant: p, MicrogramsPerCubicMeter: ugm3}, nil
}

// Reading is the air quality observed at a location at one instant.
type Reading struct {
	LocationID location.ID
	AQI        AQI
	Pollutants []Concentration
	MeasuredAt time.Time
}

// NewReading validates the fields and takes a copy of pollutants.
func NewReading(id location.ID, aqi AQI, pollutants []Concentration, measuredAt time.Time) (Reading, error) {
	r := Reading{
		LocationID: id,
		AQI:        aqi,
		Pollutants: append([]Concentration(nil), pollutants...),
		MeasuredAt: measuredAt,
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
	if r.AQI < 0 {
		return fmt.Errorf("%w: negative aqi", ErrInvalidReading)
	}
	if r.MeasuredAt.IsZero() {
		return fmt.Errorf("%w: missing measurement time", ErrInvalidReading)
	}
	for _, c := range r.Pollutants {
		if _, err := NewConcentration(c.Pollutant, c.MicrogramsPerCubicMeter); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a copy that shares no memory with r.
func (r Reading) Clone() Reading {
	r.Pollutants = append([]Concentration(nil), r.Pollutants...)
	return r
}
