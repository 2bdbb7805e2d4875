package location

import (
	"context"

	"github.com/runair/runair/internal/paging"
)

// Catalog stores locations.
type Catalog interface {
	// FindByID returns ErrNotFound when id is unknown.
	FindByID(ctx context.Context, id ID) (Location, error)

	// FetchPage returns locations ordered by id.
	FetchPage(ctx context.Context, q paging.Query) (paging.Result[Location], error)

	// Save inserts loc or overwrites the entry with the same id.
	Save(ctx context.Context, loc Location) (Location, error)

	// Count returns the number of catalog entries.
	Count(ctx context.Context) (int, error)
}
