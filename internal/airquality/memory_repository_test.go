package airquality_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runair/runair/internal/airquality"
)

func TestInMemoryRepository_FindLatestEmpty(t *testing.T) {
	repo := airquality.NewInMemoryRepository()
	_, err := repo.FindLatest(context.Background(), "loc")
	assert.ErrorIs(t, err, airquality.ErrNoReading)
}

func TestInMemoryRepository_KeepsNewest(t *testing.T) {
	repo := airquality.NewInMemoryRepository()
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)

	_, err := repo.Save(ctx, airquality.Reading{LocationID: "loc", AQI: 80, MeasuredAt: now})
	require.NoError(t, err)
	_, err = repo.Save(ctx, airquality.Reading{LocationID: "loc", AQI: 20, MeasuredAt: now.Add(-time.Hour)})
	require.NoError(t, err)

	got, err := repo.FindLatest(ctx, "loc")
	require.NoError(t, err)
	assert.Equal(t, airquality.AQI(80), got.AQI)

	_, err = repo.Save(ctx, airquality.Reading{LocationID: "loc", AQI: 120, MeasuredAt: now})
	require.NoError(t, err)

	got, err = repo.FindLatest(ctx, "loc")
	require.NoError(t, err)
	assert.Equal(t, airquality.AQI(120), got.AQI, "same timestamp overwrites")
}

func TestInMemoryRepository_LocationsAreIndependent(t *testing.T) {
	repo := airquality.NewInMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	_, err := repo.Save(ctx, airquality.Reading{LocationID: "a", AQI: 1, MeasuredAt: now})
	require.NoError(t, err)

	_, err = repo.FindLatest(ctx, "b")
	assert.ErrorIs(t, err, airquality.ErrNoReading)
}
