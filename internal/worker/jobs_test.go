package worker_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runair/runair/internal/airquality"
	"github.com/runair/runair/internal/ingestion"
	"github.com/runair/runair/internal/location"
	"github.com/runair/runair/internal/refresh"
	"github.com/runair/runair/internal/worker"
)

type fakeIngester struct {
	mu    sync.Mutex
	sizes []int
	err   error
}

func (f *fakeIngester) RunFull(_ context.Context, pageSize int) (ingestion.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes = append(f.sizes, pageSize)
	return ingestion.Stats{Pages: 2, Locations: 7}, f.err
}

type fakeRefresher struct {
	mu    sync.Mutex
	ids   []location.ID
	empty bool
}

func (f *fakeRefresher) Refresh(_ context.Context, id location.ID) refresh.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	if f.empty {
		return refresh.Result{}
	}
	return refresh.Result{AirQuality: &airquality.Reading{AQI: 12}}
}

func newDispatcher(ing *fakeIngester, ref *fakeRefresher, probe location.ID) *worker.Dispatcher {
	return worker.NewDispatcher(worker.DispatcherConfig{
		Ingester:      ing,
		Refresher:     ref,
		PageSize:      50,
		ProbeLocation: probe,
		Logger:        zerolog.New(io.Discard),
	})
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    worker.Message
		wantErr bool
	}{
		{name: "ingest", data: `{"job_type":"ingest_full","page_size":10}`, want: worker.Message{JobType: "ingest_full", PageSize: 10}},
		{name: "refresh", data: `{"job_type":"refresh_location","location_id":"dhaka-1"}`, want: worker.Message{JobType: "refresh_location", LocationID: "dhaka-1"}},
		{name: "not json", data: `nope`, wantErr: true},
		{name: "missing type", data: `{}`, wantErr: true},
		{name: "negative size", data: `{"job_type":"ingest_full","page_size":-1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := worker.ParseMessage([]byte(tt.data))
			if tt.wantErr {
				assert.ErrorIs(t, err, worker.ErrInvalidMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDispatch_IngestFull(t *testing.T) {
	ing := &fakeIngester{}
	d := newDispatcher(ing, &fakeRefresher{}, "")

	require.NoError(t, d.Dispatch(context.Background(), worker.Message{JobType: worker.JobIngestFull}))
	require.NoError(t, d.Dispatch(context.Background(), worker.Message{JobType: worker.JobIngestFull, PageSize: 5}))

	assert.Equal(t, []int{50, 5}, ing.sizes)
	m := d.Metrics()
	assert.Equal(t, int64(2), m.Total)
	assert.Equal(t, int64(2), m.ByType[worker.JobIngestFull])
	assert.Equal(t, 7, m.LastIngest.Locations)
}

func TestDispatch_IngestFailure(t *testing.T) {
	ing := &fakeIngester{err: errors.New("catalog down")}
	d := newDispatcher(ing, &fakeRefresher{}, "")

	err := d.Dispatch(context.Background(), worker.Message{JobType: worker.JobIngestFull})
	require.Error(t, err)
	assert.False(t, worker.Permanent(err))
	assert.Equal(t, int64(1), d.Metrics().Failed)
}

func TestDispatch_RefreshLocation(t *testing.T) {
	ref := &fakeRefresher{}
	d := newDispatcher(&fakeIngester{}, ref, "")

	require.NoError(t, d.Dispatch(context.Background(), worker.Message{JobType: worker.JobRefreshLocation, LocationID: "dhaka-1"}))
	assert.Equal(t, []location.ID{"dhaka-1"}, ref.ids)

	err := d.Dispatch(context.Background(), worker.Message{JobType: worker.JobRefreshLocation, LocationID: "  "})
	assert.True(t, worker.Permanent(err))
}

func TestDispatch_HealthCheck(t *testing.T) {
	t.Run("no probe", func(t *testing.T) {
		ref := &fakeRefresher{}
		d := newDispatcher(&fakeIngester{}, ref, "")
		require.NoError(t, d.Dispatch(context.Background(), worker.Message{JobType: worker.JobHealthCheck}))
		assert.Empty(t, ref.ids)
	})

	t.Run("probe ok", func(t *testing.T) {
		ref := &fakeRefresher{}
		d := newDispatcher(&fakeIngester{}, ref, "dhaka-1")
		require.NoError(t, d.Dispatch(context.Background(), worker.Message{JobType: worker.JobHealthCheck}))
		assert.Equal(t, []location.ID{"dhaka-1"}, ref.ids)
	})

	t.Run("probe empty", func(t *testing.T) {
		d := newDispatcher(&fakeIngester{}, &fakeRefresher{empty: true}, "dhaka-1")
		err := d.Dispatch(context.Background(), worker.Message{JobType: worker.JobHealthCheck})
		assert.ErrorIs(t, err, worker.ErrProbeEmpty)
	})
}

func TestDispatch_UnknownJob(t *testing.T) {
	d := newDispatcher(&fakeIngester{}, &fakeRefresher{}, "")

	err := d.Dispatch(context.Background(), worker.Message{JobType: "provider_refresh"})
	assert.ErrorIs(t, err, worker.ErrUnknownJob)
	assert.True(t, worker.Permanent(err))
	assert.Zero(t, d.Metrics().Total)
}

func TestHandler_AckDecisions(t *testing.T) {
	ing := &fakeIngester{}
	h := worker.NewHandler(newDispatcher(ing, &fakeRefresher{}, ""), zerolog.New(io.Discard))
	ctx := context.Background()

	assert.True(t, h.Handle(ctx, "1", []byte(`{"job_type":"ingest_full"}`)))
	assert.True(t, h.Handle(ctx, "2", []byte(`garbage`)))
	assert.True(t, h.Handle(ctx, "3", []byte(`{"job_type":"mystery"}`)))

	ing.err = errors.New("boom")
	assert.False(t, h.Handle(ctx, "4", []byte(`{"job_type":"ingest_full"}`)))
}
