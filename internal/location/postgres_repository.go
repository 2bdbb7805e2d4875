package location

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/runair/runair/internal/paging"
)

// PostgresCatalog is a PostgreSQL implementation of Catalog.
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

// NewPostgresCatalog creates a catalog over the locations table.
func NewPostgresCatalog(pool *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{pool: pool}
}

// FindByID retrieves a location.
func (c *PostgresCatalog) FindByID(ctx context.Context, id ID) (Location, error) {
	query := `
		SELECT id, name, latitude, longitude, type
		FROM locations
		WHERE id = $1
	`

	loc, err := scanLocation(c.pool.QueryRow(ctx, query, string(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, ErrNotFound
		}
		return Location{}, fmt.Errorf("find location %s: %w", id, err)
	}
	return loc, nil
}

// FetchPage returns one page ordered by id.
func (c *PostgresCatalog) FetchPage(ctx context.Context, q paging.Query) (paging.Result[Location], error) {
	if err := q.Validate(); err != nil {
		return paging.Result[Location]{}, err
	}

	var total int
	if err := c.pool.QueryRow(ctx, `SELECT COUNT(*) FROM locations`).Scan(&total); err != nil {
		return paging.Result[Location]{}, fmt.Errorf("count locations: %w", err)
	}

	query := `
		SELECT id, name, latitude, longitude, type
		FROM locations
		ORDER BY id
		LIMIT $1 OFFSET $2
	`

	rows, err := c.pool.Query(ctx, query, q.Size, q.Offset())
	if err != nil {
		return paging.Result[Location]{}, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	items := make([]Location, 0, q.Size)
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return paging.Result[Location]{}, fmt.Errorf("scan location: %w", err)
		}
		items = append(items, loc)
	}
	if err := rows.Err(); err != nil {
		return paging.Result[Location]{}, fmt.Errorf("iterate locations: %w", err)
	}

	return paging.NewResult(q, items, total), nil
}

// Save upserts loc by id.
func (c *PostgresCatalog) Save(ctx context.Context, loc Location) (Location, error) {
	if err := loc.Validate(); err != nil {
		return Location{}, err
	}

	query := `
		INSERT INTO locations (id, name, latitude, longitude, type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			type = EXCLUDED.type
	`

	_, err := c.pool.Exec(ctx, query,
		string(loc.ID),
		loc.Name,
		loc.Coordinates.Lat,
		loc.Coordinates.Lon,
		string(loc.Type),
	)
	if err != nil {
		return Location{}, fmt.Errorf("save location %s: %w", loc.ID, err)
	}
	return loc, nil
}

// Count returns the catalog size.
func (c *PostgresCatalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.pool.QueryRow(ctx, `SELECT COUNT(*) FROM locations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count locations: %w", err)
	}
	return n, nil
}

func scanLocation(row pgx.Row) (Location, error) {
	var (
		loc     Location
		id, typ string
	)
	if err := row.Scan(&id, &loc.Name, &loc.Coordinates.Lat, &loc.Coordinates.Lon, &typ); err != nil {
		return Location{}, err
	}
	loc.ID = ID(id)
	loc.Type = Type(typ)
	return loc, nil
}

var _ Catalog = (*PostgresCatalog)(nil)
