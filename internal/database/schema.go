package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema creates the catalog and reading tables. Reading tables keep history;
// the newest row per location is the latest reading.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS locations (
		id        TEXT PRIMARY KEY,
		name      TEXT NOT NULL,
		latitude  DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		type      TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS air_quality (
		id          BIGSERIAL PRIMARY KEY,
		location_id TEXT NOT NULL,
		aqi         INTEGER NOT NULL CHECK (aqi >= 0),
		pollutants  JSONB NOT NULL DEFAULT '[]',
		measured_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS air_quality_location_measured_idx
		ON air_quality (location_id, measured_at DESC, id DESC)`,
	`CREATE TABLE IF NOT EXISTS weather (
		id                  BIGSERIAL PRIMARY KEY,
		location_id         TEXT NOT NULL,
		temperature_celsius DOUBLE PRECISION NOT NULL,
		humidity_percentage DOUBLE PRECISION NOT NULL,
		wind_speed_mps      DOUBLE PRECISION NOT NULL,
		wind_direction      TEXT NOT NULL,
		measured_at         TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS weather_location_measured_idx
		ON weather (location_id, measured_at DESC, id DESC)`,
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
