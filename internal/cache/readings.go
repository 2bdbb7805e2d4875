package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/runair/runair/internal/airquality"
	"github.com/runair/runair/internal/location"
	"github.com/runair/runair/internal/weather"
)

// DefaultTTL bounds how long a cached latest reading is served.
const DefaultTTL = 10 * time.Minute

func airQualityKey(id location.ID) string { return "aq:latest:" + string(id) }
func weatherKey(id location.ID) string    { return "wx:latest:" + string(id) }

// AirQualityRepository serves FindLatest from the cache. A miss fills the
// entry only while it is still empty, and Save overwrites it with the stored
// latest reading, so a fill racing a Save never shadows the newer reading.
// Cache failures are logged and bypassed.
type AirQualityRepository struct {
	next   airquality.Repository
	store  Store
	ttl    time.Duration
	logger zerolog.Logger
}

// NewAirQualityRepository wraps next. A zero ttl uses DefaultTTL.
func NewAirQualityRepository(next airquality.Repository, store Store, ttl time.Duration, logger zerolog.Logger) *AirQualityRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &AirQualityRepository{next: next, store: store, ttl: ttl, logger: logger}
}

func (r *AirQualityRepository) FindLatest(ctx context.Context, id location.ID) (airquality.Reading, error) {
	var cached airquality.Reading
	hit, err := r.store.Get(ctx, airQualityKey(id), &cached)
	if err != nil {
		r.logger.Warn().Err(err).Str("location_id", id.String()).Msg("air quality cache read failed")
	}
	if hit {
		return cached, nil
	}

	reading, err := r.next.FindLatest(ctx, id)
	if err != nil {
		return airquality.Reading{}, err
	}
	if _, err := r.store.SetIfAbsent(ctx, airQualityKey(id), reading, r.ttl); err != nil {
		r.logger.Warn().Err(err).Str("location_id", id.String()).Msg("air quality cache write failed")
	}
	return reading, nil
}

func (r *AirQualityRepository) Save(ctx context.Context, reading airquality.Reading) (airquality.Reading, error) {
	saved, err := r.next.Save(ctx, reading)
	if err != nil {
		return airquality.Reading{}, err
	}
	r.refreshEntry(ctx, reading.LocationID)
	return saved, nil
}

// refreshEntry replaces the cached entry with the stored latest reading. The
// saved reading may be older than what the store holds, so it is not cached
// directly.
func (r *AirQualityRepository) refreshEntry(ctx context.Context, id location.ID) {
	latest, err := r.next.FindLatest(ctx, id)
	if err == nil {
		err = r.store.Set(ctx, airQualityKey(id), latest, r.ttl)
	}
	if err == nil {
		return
	}
	r.logger.Warn().Err(err).Str("location_id", id.String()).Msg("air quality cache refresh failed")
	if err := r.store.Delete(ctx, airQualityKey(id)); err != nil {
		r.logger.Warn().Err(err).Str("location_id", id.String()).Msg("air quality cache invalidation failed")
	}
}

// WeatherRepository is the weather counterpart of AirQualityRepository.
type WeatherRepository struct {
	next   weather.Repository
	store  Store
	ttl    time.Duration
	logger zerolog.Logger
}

// NewWeatherRepository wraps next. A zero ttl uses DefaultTTL.
func NewWeatherRepository(next weather.Repository, store Store, ttl time.Duration, logger zerolog.Logger) *WeatherRepository {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &WeatherRepository{next: next, store: store, ttl: ttl, logger: logger}
}

func (r *WeatherRepository) FindLatest(ctx context.Context, id location.ID) (weather.Reading, error) {
	var cached weather.Reading
	hit, err := r.store.Get(ctx, weatherKey(id), &cached)
	if err != nil {
		r.logger.Warn().Err(err).Str("location_id", id.String()).Msg("weather cache read failed")
	}
	if hit {
		return cached, nil
	}

	reading, err := r.next.FindLatest(ctx, id)
	if err != nil {
		return weather.Reading{}, err
	}
	if _, err := r.store.SetIfAbsent(ctx, weatherKey(id), reading, r.ttl); err != nil {
		r.logger.Warn().Err(err).Str("location_id", id.String()).Msg("weather cache write failed")
	}
	return reading, nil
}

func (r *WeatherRepository) Save(ctx context.Context, reading weather.Reading) (weather.Reading, error) {
	saved, err := r.next.Save(ctx, reading)
	if err != nil {
		return weather.Reading{}, err
	}
	r.refreshEntry(ctx, reading.LocationID)
	return saved, nil
}

func (r *WeatherRepository) refreshEntry(ctx context.Context, id location.ID) {
	latest, err := r.next.FindLatest(ctx, id)
	if err == nil {
		err = r.store.Set(ctx, weatherKey(id), latest, r.ttl)
	}
	if err == nil {
		return
	}
	r.logger.Warn().Err(err).Str("location_id", id.String()).Msg("weather cache refresh failed")
	if err := r.store.Delete(ctx, weatherKey(id)); err != nil {
		r.logger.Warn().Err(err).Str("location_id", id.String()).Msg("weather cache invalidation failed")
	}
}

var (
	_ airquality.Repository = (*AirQualityRepository)(nil)
	_ weather.Repository    = (*WeatherRepository)(nil)
)
