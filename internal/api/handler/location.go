package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/runair/runair/internal/airquality"
	"github.com/runair/runair/internal/api/models"
	"github.com/runair/runair/internal/api/response"
	"github.com/runair/runair/internal/location"
	"github.com/runair/runair/internal/paging"
	"github.com/runair/runair/internal/query"
	"github.com/runair/runair/internal/running"
	"github.com/runair/runair/internal/weather"
)

// LocationQuerier is the read side used by LocationHandler.
type LocationQuerier interface {
	Summary(ctx context.Context, id location.ID) (query.Summary, error)
	Details(ctx context.Context, id location.ID) (query.Details, error)
	Browse(ctx context.Context, q paging.Query) (paging.Result[query.Summary], error)
	List(ctx context.Context, q paging.Query) (paging.Result[location.Location], error)
	Condition(ctx context.Context, id location.ID) (running.Condition, error)
}

// LocationHandler serves the location read endpoints.
type LocationHandler struct {
	queries LocationQuerier
	log     zerolog.Logger
}

// NewLocationHandler creates a LocationHandler.
func NewLocationHandler(queries LocationQuerier, log zerolog.Logger) *LocationHandler {
	return &LocationHandler{queries: queries, log: log}
}

// Browse handles GET /v1/locations.
func (h *LocationHandler) Browse(w http.ResponseWriter, r *http.Request) {
	q, fieldErrs := pageQuery(r)
	if fieldErrs != nil {
		response.BadRequest(w, r, "invalid paging parameters", fieldErrs)
		return
	}

	page, err := h.queries.Browse(r.Context(), q)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toPage(page, toSummary))
}

// Catalog handles GET /v1/catalog.
func (h *LocationHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	q, fieldErrs := pageQuery(r)
	if fieldErrs != nil {
		response.BadRequest(w, r, "invalid paging parameters", fieldErrs)
		return
	}

	page, err := h.queries.List(r.Context(), q)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toPage(page, toCatalogEntry))
}

// Summary handles GET /v1/locations/{locationId}/summary.
func (h *LocationHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, err := locationID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	s, err := h.queries.Summary(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toSummary(s))
}

// Details handles GET /v1/locations/{locationId}.
func (h *LocationHandler) Details(w http.ResponseWriter, r *http.Request) {
	id, err := locationID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	d, err := h.queries.Details(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.LocationDetails{
		LocationID:  d.Location.ID.String(),
		Name:        d.Location.Name,
		Type:        string(d.Location.Type),
		Coordinates: toCoordinates(d.Location.Coordinates),
		AirQuality:  toAirQualityView(d.AirQuality),
		Weather:     toWeatherView(d.Weather),
		Verdict:     string(d.Verdict),
		HealthRisk:  string(d.HealthRisk),
	})
}

// Condition handles GET /v1/locations/{locationId}/condition. It evaluates
// stored readings only.
func (h *LocationHandler) Condition(w http.ResponseWriter, r *http.Request) {
	id, err := locationID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	c, err := h.queries.Condition(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.RunCondition{
		LocationID: c.LocationID.String(),
		Verdict:    string(c.Verdict),
		HealthRisk: string(c.HealthRisk),
	})
}

func toPage[T, U any](page paging.Result[T], convert func(T) U) models.Page[U] {
	converted := paging.Map(page, convert)
	return models.Page[U]{
		Items:         converted.Content(),
		Page:          page.Page(),
		Size:          page.Size(),
		TotalElements: page.TotalElements(),
		HasNext:       page.HasNext(),
	}
}

func toSummary(s query.Summary) models.LocationSummary {
	out := models.LocationSummary{
		LocationID:   s.LocationID.String(),
		Name:         s.Name,
		TemperatureC: models.Number(s.TemperatureC),
		HumidityPct:  models.Number(s.HumidityPct),
		Verdict:      string(s.Verdict),
		HealthRisk:   string(s.HealthRisk),
	}
	if s.HasAirQuality {
		aqi := s.AQI
		out.AQI = &aqi
	}
	return out
}

func toCatalogEntry(l location.Location) models.CatalogEntry {
	return models.CatalogEntry{
		LocationID:  l.ID.String(),
		Name:        l.Name,
		Type:        string(l.Type),
		Coordinates: toCoordinates(l.Coordinates),
	}
}

func toCoordinates(c location.Coordinates) models.Coordinates {
	return models.Coordinates{Lat: c.Lat, Lon: c.Lon}
}

func toAirQualityView(r *airquality.Reading) *models.AirQualityView {
	if r == nil {
		return nil
	}
	pollutants := make([]models.Concentration, 0, len(r.Pollutants))
	for _, c := range r.Pollutants {
		pollutants = append(pollutants, models.Concentration{
			Pollutant: string(c.Pollutant),
			Ugm3:      c.MicrogramsPerCubicMeter,
		})
	}
	return &models.AirQualityView{
		AQI:        r.AQI.Value(),
		Category:   string(r.AQI.Category()),
		Pollutants: pollutants,
		MeasuredAt: models.Timestamp(r.MeasuredAt),
	}
}

func toWeatherView(r *weather.Reading) *models.WeatherView {
	if r == nil {
		return nil
	}
	return &models.WeatherView{
		TemperatureC:  r.Temperature.Celsius(),
		HumidityPct:   r.Humidity.Percentage(),
		WindSpeedMps:  r.Wind.SpeedMetersPerSecond,
		WindDirection: r.Wind.Direction,
		MeasuredAt:    models.Timestamp(r.MeasuredAt),
	}
}
