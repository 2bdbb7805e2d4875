package airquality

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/runair/runair/internal/location"
)

// PostgresRepository appends readings to the air_quality table and reads
// back the newest row per location.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a PostgreSQL reading repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

type pollutantRow struct {
	Pollutant string  `json:"pollutant"`
	Ugm3      float64 `json:"ugm3"`
}

// FindLatest returns the newest reading for id.
func (r *PostgresRepository) FindLatest(ctx context.Context, id location.ID) (Reading, error) {
	query := `
		SELECT location_id, aqi, pollutants, measured_at
		FROM air_quality
		WHERE location_id = $1
		ORDER BY measured_at DESC, id DESC
		LIMIT 1
	`

	var (
		reading Reading
		locID   string
		aqi     int
		raw     []byte
	)
	err := r.pool.QueryRow(ctx, query, string(id)).Scan(&locID, &aqi, &raw, &reading.MeasuredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reading{}, ErrNoReading
		}
		return Reading{}, fmt.Errorf("find latest air quality for %s: %w", id, err)
	}

	var rows []pollutantRow
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rows); err != nil {
			return Reading{}, fmt.Errorf("decode pollutants for %s: %w", id, err)
		}
	}
	for _, p := range rows {
		reading.Pollutants = append(reading.Pollutants, Concentration{
			Pollutant:               Pollutant(p.Pollutant),
			MicrogramsPerCubicMeter: p.Ugm3,
		})
	}
	reading.LocationID = location.ID(locID)
	reading.AQI = AQI(aqi)
	reading.MeasuredAt = reading.MeasuredAt.UTC()
	return reading, nil
}

// Save inserts reading as a new row.
func (r *PostgresRepository) Save(ctx context.Context, reading Reading) (Reading, error) {
	if err := reading.Validate(); err != nil {
		return Reading{}, err
	}

	rows := make([]pollutantRow, 0, len(reading.Pollutants))
	for _, c := range reading.Pollutants {
		rows = append(rows, pollutantRow{Pollutant: string(c.Pollutant), Ugm3: c.MicrogramsPerCubicMeter})
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return Reading{}, fmt.Errorf("encode pollutants: %w", err)
	}

	query := `
		INSERT INTO air_quality (location_id, aqi, pollutants, measured_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.pool.Exec(ctx, query, string(reading.LocationID), reading.AQI.Value(), raw, reading.MeasuredAt); err != nil {
		return Reading{}, fmt.Errorf("save air quality for %s: %w", reading.LocationID, err)
	}
	return reading.Clone(), nil
}

var _ Repository = (*PostgresRepository)(nil)
