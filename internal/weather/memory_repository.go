package weather

import (
	"context"
	"sync"

	"github.com/runair/runair/internal/location"
)

// InMemoryRepository keeps the latest reading per location.
type InMemoryRepository struct {
	mu     sync.RWMutex
	latest map[location.ID]Reading
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{latest: make(map[location.ID]Reading)}
}

// FindLatest returns the stored reading for id.
func (r *InMemoryRepository) FindLatest(_ context.Context, id location.ID) (Reading, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reading, ok := r.latest[id]
	if !ok {
		return Reading{}, ErrNoReading
	}
	return reading, nil
}

// Save stores reading unless a newer one is already held.
func (r *InMemoryRepository) Save(_ context.Context, reading Reading) (Reading, error) {
	if err := reading.Validate(); err != nil {
		return Reading{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.latest[reading.LocationID]; !ok || !reading.MeasuredAt.Before(current.MeasuredAt) {
		r.latest[reading.LocationID] = reading
	}
	return reading, nil
}

var _ Repository = (*InMemoryRepository)(nil)
