package models

// LocationSummary is the compact view used in listings.
type LocationSummary struct {
	LocationID   string   `json:"locationId"`
	Name         string   `json:"name"`
	AQI          *int     `json:"aqi"`
	TemperatureC *float64 `json:"temperatureC"`
	HumidityPct  *float64 `json:"humidityPct"`
	Verdict      string   `json:"verdict"`
	HealthRisk   string   `json:"healthRisk"`
}

// LocationDetails is the full view of one location.
type LocationDetails struct {
	LocationID  string          `json:"locationId"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Coordinates Coordinates     `json:"coordinates"`
	AirQuality  *AirQualityView `json:"airQuality"`
	Weather     *WeatherView    `json:"weather"`
	Verdict     string          `json:"verdict"`
	HealthRisk  string          `json:"healthRisk"`
}

// CatalogEntry is a location without readings.
type CatalogEntry struct {
	LocationID  string      `json:"locationId"`
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Coordinates Coordinates `json:"coordinates"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type AirQualityView struct {
	AQI        int             `json:"aqi"`
	Category   string          `json:"category"`
	Pollutants []Concentration `json:"pollutants"`
	MeasuredAt Timestamp       `json:"measuredAt"`
}

type Concentration struct {
	Pollutant string  `json:"pollutant"`
	Ugm3      float64 `json:"ugm3"`
}

type WeatherView struct {
	TemperatureC  float64   `json:"temperatureC"`
	HumidityPct   float64   `json:"humidityPct"`
	WindSpeedMps  float64   `json:"windSpeedMps"`
	WindDirection string    `json:"windDirection"`
	MeasuredAt    Timestamp `json:"measuredAt"`
}

// RefreshResult reports what a manual refresh obtained.
type RefreshResult struct {
	LocationID string          `json:"locationId"`
	AirQuality *AirQualityView `json:"airQuality"`
	Weather    *WeatherView    `json:"weather"`
}

// IngestionAccepted acknowledges a background ingestion run.
type IngestionAccepted struct {
	PageSize  int       `json:"pageSize"`
	StartedAt Timestamp `json:"startedAt"`
}

// RunCondition is the verdict over stored readings.
type RunCondition struct {
	LocationID string `json:"locationId"`
	Verdict    string `json:"verdict"`
	HealthRisk string `json:"healthRisk"`
}
