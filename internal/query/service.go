// Package query answers location queries from stored readings, refreshing a
// location from upstream only when a reading kind is missing.
package query

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/runair/runair/internal/airquality"
	"github.com/runair/runair/internal/location"
	"github.com/runair/runair/internal/paging"
	"github.com/runair/runair/internal/refresh"
	"github.com/runair/runair/internal/running"
	"github.com/runair/runair/internal/weather"
)

// Refresher fetches and persists fresh readings for one location.
type Refresher interface {
	Refresh(ctx context.Context, id location.ID) refresh.Result
}

// Summary is the scalar view of a location. TemperatureC and HumidityPct are
// NaN when no weather reading is available; HasAirQuality is false and AQI 0
// when no air-quality reading is available.
type Summary struct {
	LocationID    location.ID
	Name          string
	AQI           int
	HasAirQuality bool
	TemperatureC  float64
	HumidityPct   float64
	Verdict       running.Verdict
	HealthRisk    running.HealthRisk
}

// Details is the full view of a location with its raw readings.
type Details struct {
	Location   location.Location
	AirQuality *airquality.Reading
	Weather    *weather.Reading
	Verdict    running.Verdict
	HealthRisk running.HealthRisk
}

// ServiceConfig holds dependencies for the query Service.
type ServiceConfig struct {
	Catalog    location.Catalog
	AirQuality airquality.Repository
	Weather    weather.Repository
	Refresher  Refresher

	// BrowseConcurrency bounds how many locations of a page are resolved at
	// once. Default: 4
	BrowseConcurrency int

	Logger zerolog.Logger
}

// Service answers summary, details, browse and list queries.
type Service struct {
	catalog     location.Catalog
	aqStore     airquality.Repository
	wxStore     weather.Repository
	refresher   Refresher
	concurrency int
	logger      zerolog.Logger
}

// NewService creates a query Service.
func NewService(cfg ServiceConfig) *Service {
	concurrency := cfg.BrowseConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Service{
		catalog:     cfg.Catalog,
		aqStore:     cfg.AirQuality,
		wxStore:     cfg.Weather,
		refresher:   cfg.Refresher,
		concurrency: concurrency,
		logger:      cfg.Logger,
	}
}

type readings struct {
	airQuality *airquality.Reading
	weather    *weather.Reading
}

func (r readings) condition(id location.ID) running.Condition {
	c, err := running.Evaluate(r.airQuality, r.weather)
	if errors.Is(err, running.ErrNoReadings) {
		return running.Unavailable(id)
	}
	return c
}

// Summary returns the scalar view of id. It fails with location.ErrNotFound
// when id is not in the catalog.
func (s *Service) Summary(ctx context.Context, id location.ID) (Summary, error) {
	loc, err := s.findLocation(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	return s.summarize(ctx, loc)
}

// Details returns the full view of id. It fails with location.ErrNotFound
// when id is not in the catalog.
func (s *Service) Details(ctx context.Context, id location.ID) (Details, error) {
	loc, err := s.findLocation(ctx, id)
	if err != nil {
		return Details{}, err
	}

	r, err := s.ensureReadings(ctx, loc.ID)
	if err != nil {
		return Details{}, err
	}
	c := r.condition(loc.ID)

	return Details{
		Location:   loc,
		AirQuality: r.airQuality,
		Weather:    r.weather,
		Verdict:    c.Verdict,
		HealthRisk: c.HealthRisk,
	}, nil
}

// Browse returns one page of summaries. Each location is resolved
// independently; a refresh that yields nothing only blanks that summary.
func (s *Service) Browse(ctx context.Context, q paging.Query) (paging.Result[Summary], error) {
	page, err := s.List(ctx, q)
	if err != nil {
		return paging.Result[Summary]{}, err
	}

	locs := page.Content()
	summaries := make([]Summary, len(locs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, loc := range locs {
		g.Go(func() error {
			summary, err := s.summarize(gctx, loc)
			if err != nil {
				return err
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return paging.Result[Summary]{}, err
	}

	return paging.WithContent(page, summaries), nil
}

// List returns one page of catalog entries without touching readings.
func (s *Service) List(ctx context.Context, q paging.Query) (paging.Result[location.Location], error) {
	if err := q.Validate(); err != nil {
		return paging.Result[location.Location]{}, err
	}
	page, err := s.catalog.FetchPage(ctx, q)
	if err != nil {
		return paging.Result[location.Location]{}, fmt.Errorf("fetch catalog page: %w", err)
	}
	return page, nil
}

// Condition evaluates the stored readings of id without refreshing.
func (s *Service) Condition(ctx context.Context, id location.ID) (running.Condition, error) {
	loc, err := s.findLocation(ctx, id)
	if err != nil {
		return running.Condition{}, err
	}
	r, err := s.storedReadings(ctx, loc.ID)
	if err != nil {
		return running.Condition{}, err
	}
	return r.condition(loc.ID), nil
}

func (s *Service) summarize(ctx context.Context, loc location.Location) (Summary, error) {
	r, err := s.ensureReadings(ctx, loc.ID)
	if err != nil {
		return Summary{}, err
	}
	c := r.condition(loc.ID)

	summary := Summary{
		LocationID:   loc.ID,
		Name:         loc.Name,
		TemperatureC: math.NaN(),
		HumidityPct:  math.NaN(),
		Verdict:      c.Verdict,
		HealthRisk:   c.HealthRisk,
	}
	if r.airQuality != nil {
		summary.AQI = r.airQuality.AQI.Value()
		summary.HasAirQuality = true
	}
	if r.weather != nil {
		summary.TemperatureC = r.weather.Temperature.Celsius()
		summary.HumidityPct = r.weather.Humidity.Percentage()
	}
	return summary, nil
}

// ensureReadings returns the stored readings of id. When either kind is
// missing it refreshes the location once and fills each missing kind from
// the refresh result, then from a second store read.
func (s *Service) ensureReadings(ctx context.Context, id location.ID) (readings, error) {
	r, err := s.storedReadings(ctx, id)
	if err != nil {
		return readings{}, err
	}
	if r.airQuality != nil && r.weather != nil {
		return r, nil
	}

	fresh := s.refresher.Refresh(ctx, id)

	if r.airQuality == nil {
		r.airQuality = fresh.AirQuality
		if r.airQuality == nil {
			r.airQuality = s.rereadAirQuality(ctx, id)
		}
	}
	if r.weather == nil {
		r.weather = fresh.Weather
		if r.weather == nil {
			r.weather = s.rereadWeather(ctx, id)
		}
	}
	return r, nil
}

func (s *Service) storedReadings(ctx context.Context, id location.ID) (readings, error) {
	var r readings

	aq, err := s.aqStore.FindLatest(ctx, id)
	switch {
	case err == nil:
		r.airQuality = &aq
	case !errors.Is(err, airquality.ErrNoReading):
		return readings{}, fmt.Errorf("read air quality for %s: %w", id, err)
	}

	wx, err := s.wxStore.FindLatest(ctx, id)
	switch {
	case err == nil:
		r.weather = &wx
	case !errors.Is(err, weather.ErrNoReading):
		return readings{}, fmt.Errorf("read weather for %s: %w", id, err)
	}

	return r, nil
}

func (s *Service) rereadAirQuality(ctx context.Context, id location.ID) *airquality.Reading {
	aq, err := s.aqStore.FindLatest(ctx, id)
	if err != nil {
		if !errors.Is(err, airquality.ErrNoReading) {
			s.logger.Warn().Err(err).Str("location_id", id.String()).Msg("air quality re-read failed")
		}
		return nil
	}
	return &aq
}

func (s *Service) rereadWeather(ctx context.Context, id location.ID) *weather.Reading {
	wx, err := s.wxStore.FindLatest(ctx, id)
	if err != nil {
		if !errors.Is(err, weather.ErrNoReading) {
			s.logger.Warn().Err(err).Str("location_id", id.String()).Msg("weather re-read failed")
		}
		return nil
	}
	return &wx
}

func (s *Service) findLocation(ctx context.Context, id location.ID) (location.Location, error) {
	loc, err := s.catalog.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, location.ErrNotFound) {
			return location.Location{}, fmt.Errorf("%w: %s", location.ErrNotFound, id)
		}
		return location.Location{}, fmt.Errorf("find location %s: %w", id, err)
	}
	return loc, nil
}
