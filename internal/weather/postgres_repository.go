package weather

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/runair/runair/internal/location"
)

// PostgresRepository appends readings to the weather table and reads back
// the newest row per location.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a PostgreSQL reading repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// FindLatest returns the newest reading for id.
func (r *PostgresRepository) FindLatest(ctx context.Context, id location.ID) (Reading, error) {
	query := `
		SELECT location_id, temperature_celsius, humidity_percentage,
			wind_speed_mps, wind_direction, measured_at
		FROM weather
		WHERE location_id = $1
		ORDER BY measured_at DESC, id DESC
		LIMIT 1
	`

	var (
		reading     Reading
		locID       string
		temperature float64
		humidity    float64
	)
	err := r.pool.QueryRow(ctx, query, string(id)).Scan(
		&locID,
		&temperature,
		&humidity,
		&reading.Wind.SpeedMetersPerSecond,
		&reading.Wind.Direction,
		&reading.MeasuredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reading{}, ErrNoReading
		}
		return Reading{}, fmt.Errorf("find latest weather for %s: %w", id, err)
	}

	reading.LocationID = location.ID(locID)
	reading.Temperature = Temperature(temperature)
	reading.Humidity = Humidity(humidity)
	reading.MeasuredAt = reading.MeasuredAt.UTC()
	return reading, nil
}

// Save inserts reading as a new row.
func (r *PostgresRepository) Save(ctx context.Context, reading Reading) (Reading, error) {
	if err := reading.Validate(); err != nil {
		return Reading{}, err
	}

	query := `
		INSERT INTO weather (location_id, temperature_celsius, humidity_percentage,
			wind_speed_mps, wind_direction, measured_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		string(reading.LocationID),
		reading.Temperature.Celsius(),
		reading.Humidity.Percentage(),
		reading.Wind.SpeedMetersPerSecond,
		reading.Wind.Direction,
		reading.MeasuredAt,
	)
	if err != nil {
		return Reading{}, fmt.Errorf("save weather for %s: %w", reading.LocationID, err)
	}
	return reading, nil
}

var _ Repository = (*PostgresRepository)(nil)
