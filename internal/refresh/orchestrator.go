// Package refresh fetches fresh readings for a location from the upstream
// sources and persists whatever was obtained.
package refresh

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/runair/runair/internal/airquality"
	"github.com/runair/runair/internal/location"
	"github.com/runair/runair/internal/weather"
)

const instrumentationName = "github.com/runair/runair/internal/refresh"

// Result carries the readings obtained by one refresh. A nil field means the
// source returned nothing.
type Result struct {
	AirQuality *airquality.Reading
	Weather    *weather.Reading
}

// Empty reports whether neither source produced a reading.
func (r Result) Empty() bool {
	return r.AirQuality == nil && r.Weather == nil
}

func (r Result) clone() Result {
	out := Result{}
	if r.AirQuality != nil {
		aq := r.AirQuality.Clone()
		out.AirQuality = &aq
	}
	if r.Weather != nil {
		w := *r.Weather
		out.Weather = &w
	}
	return out
}

// Config wires an Orchestrator.
type Config struct {
	AirQualitySource airquality.Source
	WeatherSource    weather.Source
	AirQualityStore  airquality.Repository
	WeatherStore     weather.Repository
	Logger           zerolog.Logger
}

// Orchestrator refreshes one location at a time. Concurrent refreshes of the
// same location share a single upstream round trip.
type Orchestrator struct {
	aqSource airquality.Source
	wxSource weather.Source
	aqStore  airquality.Repository
	wxStore  weather.Repository
	logger   zerolog.Logger

	inflight singleflight.Group
	tracer   trace.Tracer
	total    metric.Int64Counter
	readings metric.Int64Counter
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	meter := otel.Meter(instrumentationName)
	total, _ := meter.Int64Counter("refresh.total",
		metric.WithDescription("Location refreshes performed"),
		metric.WithUnit("{refresh}"))
	readings, _ := meter.Int64Counter("refresh.readings",
		metric.WithDescription("Readings requested from upstream sources by kind and outcome"),
		metric.WithUnit("{reading}"))

	return &Orchestrator{
		aqSource: cfg.AirQualitySource,
		wxSource: cfg.WeatherSource,
		aqStore:  cfg.AirQualityStore,
		wxStore:  cfg.WeatherStore,
		logger:   cfg.Logger,
		tracer:   otel.Tracer(instrumentationName),
		total:    total,
		readings: readings,
	}
}

// Refresh asks both sources for the latest reading of id, saves every
// reading that came back and returns them. Absent readings leave the store
// untouched. A failed save is logged; the reading is still returned.
func (o *Orchestrator) Refresh(ctx context.Context, id location.ID) Result {
	v, _, shared := o.inflight.Do(string(id), func() (any, error) {
		return o.refresh(context.WithoutCancel(ctx), id), nil
	})
	res := v.(Result)
	if shared {
		o.logger.Debug().Str("location_id", id.String()).Msg("joined in-flight refresh")
	}
	return res.clone()
}

func (o *Orchestrator) refresh(ctx context.Context, id location.ID) Result {
	ctx, span := o.tracer.Start(ctx, "refresh.Refresh",
		trace.WithAttributes(attribute.String("location.id", id.String())))
	defer span.End()

	var (
		res Result
		wg  sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		res.AirQuality = o.refreshAirQuality(ctx, id)
	}()
	go func() {
		defer wg.Done()
		res.Weather = o.refreshWeather(ctx, id)
	}()
	wg.Wait()

	span.SetAttributes(
		attribute.Bool("refresh.air_quality", res.AirQuality != nil),
		attribute.Bool("refresh.weather", res.Weather != nil),
	)
	o.total.Add(ctx, 1)

	o.logger.Debug().
		Str("location_id", id.String()).
		Bool("air_quality", res.AirQuality != nil).
		Bool("weather", res.Weather != nil).
		Msg("location refreshed")

	return res
}

func (o *Orchestrator) refreshAirQuality(ctx context.Context, id location.ID) *airquality.Reading {
	reading, ok := o.aqSource.FetchLatest(ctx, id)
	o.count(ctx, "air_quality", ok)
	if !ok {
		return nil
	}
	if saved, err := o.aqStore.Save(ctx, reading); err != nil {
		o.logger.Error().Err(err).Str("location_id", id.String()).Msg("failed to save air quality reading")
	} else {
		reading = saved
	}
	return &reading
}

func (o *Orchestrator) refreshWeather(ctx context.Context, id location.ID) *weather.Reading {
	reading, ok := o.wxSource.FetchLatest(ctx, id)
	o.count(ctx, "weather", ok)
	if !ok {
		return nil
	}
	if saved, err := o.wxStore.Save(ctx, reading); err != nil {
		o.logger.Error().Err(err).Str("location_id", id.String()).Msg("failed to save weather reading")
	} else {
		reading = saved
	}
	return &reading
}

func (o *Orchestrator) count(ctx context.Context, kind string, obtained bool) {
	outcome := "absent"
	if obtained {
		outcome = "obtained"
	}
	o.readings.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
}
