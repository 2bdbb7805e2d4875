package location

import (
	"context"
	"sort"
	"sync"

	"github.com/runair/runair/internal/paging"
)

// InMemoryCatalog is a Catalog backed by a map. It is used in tests and when
// no database is configured.
type InMemoryCatalog struct {
	mu        sync.RWMutex
	locations map[ID]Location
}

// NewInMemoryCatalog returns a catalog seeded with locs.
func NewInMemoryCatalog(locs ...Location) *InMemoryCatalog {
	c := &InMemoryCatalog{locations: make(map[ID]Location, len(locs))}
	for _, l := range locs {
		c.locations[l.ID] = l
	}
	return c
}

// FindByID retrieves a location.
func (c *InMemoryCatalog) FindByID(_ context.Context, id ID) (Location, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	loc, ok := c.locations[id]
	if !ok {
		return Location{}, ErrNotFound
	}
	return loc, nil
}

// FetchPage returns one page ordered by id.
func (c *InMemoryCatalog) FetchPage(_ context.Context, q paging.Query) (paging.Result[Location], error) {
	if err := q.Validate(); err != nil {
		return paging.Result[Location]{}, err
	}

	c.mu.RLock()
	ids := make([]ID, 0, len(c.locations))
	for id := range c.locations {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var items []Location
	start := q.Offset()
	if start >= 0 && start < len(ids) {
		end := min(start+q.Size, len(ids))
		items = make([]Location, 0, end-start)
		for _, id := range ids[start:end] {
			items = append(items, c.locations[id])
		}
	}
	total := len(ids)
	c.mu.RUnlock()

	return paging.NewResult(q, items, total), nil
}

// Save stores loc, replacing any entry with the same id.
func (c *InMemoryCatalog) Save(_ context.Context, loc Location) (Location, error) {
	if err := loc.Validate(); err != nil {
		return Location{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locations[loc.ID] = loc
	return loc, nil
}

// Count returns the catalog size.
func (c *InMemoryCatalog) Count(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.locations), nil
}

var _ Catalog = (*InMemoryCatalog)(nil)
