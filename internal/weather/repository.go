package weather

import (
	"context"

	"github.com/runair/runair/internal/location"
)

// Repository persists readings and returns the latest one per location.
type Repository interface {
	// FindLatest returns the reading with the most recent MeasuredAt, or
	// ErrNoReading.
	FindLatest(ctx context.Context, id location.ID) (Reading, error)

	// Save records r. It never deduplicates against earlier readings.
	Save(ctx context.Context, r Reading) (Reading, error)
}

// Source fetches the current reading from an upstream provider. The boolean
// is false when nothing could be obtained; implementations log their own
// failures.
type Source interface {
	FetchLatest(ctx context.Context, id location.ID) (Reading, bool)
}
