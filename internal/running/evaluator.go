// Package running turns the latest air-quality and weather readings for a
// location into a run verdict.
package running

import (
	"errors"

	"github.com/runair/runair/internal/airquality"
	"github.com/runair/runair/internal/location"
	"github.com/runair/runair/internal/weather"
)

// ErrNoReadings is returned when neither reading is available.
var ErrNoReadings = errors.New("run condition needs at least one reading")

// Verdict is the coarse suitability of a location for running.
type Verdict string

const (
	VerdictIdeal      Verdict = "IDEAL"
	VerdictAcceptable Verdict = "ACCEPTABLE"
	VerdictHazardous  Verdict = "HAZARDOUS"
)

// HealthRisk is the advisory shown alongside a verdict.
type HealthRisk string

const (
	RiskNone            HealthRisk = "Great conditions for running."
	RiskPoorAirQuality  HealthRisk = "Air quality is not suitable for outdoor runs."
	RiskHighTemperature HealthRisk = "High temperature detected, stay hydrated."
	RiskHighHumidity    HealthRisk = "High humidity may cause discomfort."
	RiskDataUnavailable HealthRisk = "Data unavailable"
)

// Thresholds above which a rule fires.
const (
	MaxAQI          = 100
	MaxTemperatureC = 34.0
	MaxHumidityPct  = 85.0
)

// Condition is a transient verdict for one location.
type Condition struct {
	LocationID location.ID
	Verdict    Verdict
	HealthRisk HealthRisk
}

// Unavailable is the condition reported when no reading could be obtained.
// It is not produced by Evaluate.
func Unavailable(id location.ID) Condition {
	return Condition{LocationID: id, Verdict: VerdictAcceptable, HealthRisk: RiskDataUnavailable}
}

// Evaluate applies the rules in a fixed order: air quality, temperature,
// humidity. Each rule that fires replaces the verdict and message set by
// earlier ones, so a hot or humid reading turns a HAZARDOUS air-quality
// verdict into ACCEPTABLE.
func Evaluate(aq *airquality.Reading, w *weather.Reading) (Condition, error) {
	if aq == nil && w == nil {
		return Condition{}, ErrNoReadings
	}

	c := Condition{Verdict: VerdictIdeal, HealthRisk: RiskNone}
	if aq != nil {
		c.LocationID = aq.LocationID
	} else {
		c.LocationID = w.LocationID
	}

	if aq != nil && aq.AQI.Value() > MaxAQI {
		c.Verdict, c.HealthRisk = VerdictHazardous, RiskPoorAirQuality
	}
	if w != nil && w.Temperature.Celsius() > MaxTemperatureC {
		c.Verdict, c.HealthRisk = VerdictAcceptable, RiskHighTemperature
	}
	if w != nil && w.Humidity.Percentage() > MaxHumidityPct {
		c.Verdict, c.HealthRisk = VerdictAcceptable, RiskHighHumidity
	}
	return c, nil
}
