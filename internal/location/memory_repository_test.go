package location_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runair/runair/internal/location"
	"github.com/runair/runair/internal/paging"
)

func seedCatalog(t *testing.T, n int) *location.InMemoryCatalog {
	t.Helper()
	catalog := location.NewInMemoryCatalog()
	for i := 0; i < n; i++ {
		loc, err := location.New(location.ID(fmt.Sprintf("loc-%04d", i)), fmt.Sprintf("Site %d", i),
			location.Coordinates{Lat: 23.8, Lon: 90.4}, location.TypeUrban)
		require.NoError(t, err)
		_, err = catalog.Save(context.Background(), loc)
		require.NoError(t, err)
	}
	return catalog
}

func TestInMemoryCatalog_FindByID(t *testing.T) {
	catalog := seedCatalog(t, 3)

	loc, err := catalog.FindByID(context.Background(), "loc-0001")
	require.NoError(t, err)
	assert.Equal(t, "Site 1", loc.Name)

	_, err = catalog.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, location.ErrNotFound)
}

func TestInMemoryCatalog_FetchPage(t *testing.T) {
	catalog := seedCatalog(t, 5)
	ctx := context.Background()

	first, err := catalog.FetchPage(ctx, paging.Query{Page: 0, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, first.TotalElements())
	assert.True(t, first.HasNext())
	require.Equal(t, 2, first.Len())
	assert.Equal(t, location.ID("loc-0000"), first.Content()[0].ID)

	last, err := catalog.FetchPage(ctx, paging.Query{Page: 2, Size: 2})
	require.NoError(t, err)
	assert.False(t, last.HasNext())
	assert.Equal(t, 1, last.Len())

	beyond, err := catalog.FetchPage(ctx, paging.Query{Page: 9, Size: 2})
	require.NoError(t, err)
	assert.Zero(t, beyond.Len())
	assert.False(t, beyond.HasNext())

	_, err = catalog.FetchPage(ctx, paging.Query{Page: -1, Size: 2})
	assert.ErrorIs(t, err, paging.ErrInvalidQuery)
}

func TestInMemoryCatalog_FetchPageOffsetOverflow(t *testing.T) {
	catalog := seedCatalog(t, 5)
	ctx := context.Background()

	for _, size := range []int{3, 4} {
		q := paging.Query{Page: 1 << 62, Size: size}
		require.NotPanics(t, func() {
			page, err := catalog.FetchPage(ctx, q)
			assert.ErrorIs(t, err, paging.ErrInvalidQuery)
			assert.Zero(t, page.Len())
		}, "size=%d", size)
	}
}

func TestInMemoryCatalog_SaveOverwrites(t *testing.T) {
	catalog := seedCatalog(t, 1)
	ctx := context.Background()

	loc, err := catalog.FindByID(ctx, "loc-0000")
	require.NoError(t, err)
	loc.Name = "Renamed"
	_, err = catalog.Save(ctx, loc)
	require.NoError(t, err)

	n, err := catalog.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := catalog.FindByID(ctx, "loc-0000")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
}

func TestInMemoryCatalog_SaveRejectsInvalid(t *testing.T) {
	catalog := location.NewInMemoryCatalog()
	_, err := catalog.Save(context.Background(), location.Location{ID: "x"})
	assert.ErrorIs(t, err, location.ErrInvalidLocation)
}
