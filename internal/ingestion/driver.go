// Package ingestion walks the whole location catalog and refreshes every
// location in it.
package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/runair/runair/internal/location"
	"github.com/runair/runair/internal/paging"
	"github.com/runair/runair/internal/refresh"
)

const instrumentationName = "github.com/runair/runair/internal/ingestion"

// DefaultPageSize is the page size used by scheduled and warm-up runs.
const DefaultPageSize = 500

// PageSource pages through the catalog.
type PageSource interface {
	FetchPage(ctx context.Context, q paging.Query) (paging.Result[location.Location], error)
}

// Refresher refreshes one location.
type Refresher interface {
	Refresh(ctx context.Context, id location.ID) refresh.Result
}

// Config wires a Driver.
type Config struct {
	Catalog   PageSource
	Refresher Refresher

	// Concurrency is how many locations of a page are refreshed at once.
	// Default: 1
	Concurrency int

	Logger zerolog.Logger
}

// Stats summarises one full walk.
type Stats struct {
	Pages      int           `json:"pages"`
	Locations  int           `json:"locations"`
	AirQuality int           `json:"airQuality"`
	Weather    int           `json:"weather"`
	Empty      int           `json:"empty"`
	Duration   time.Duration `json:"durationNs"`
}

// Driver runs full catalog walks.
type Driver struct {
	catalog     PageSource
	refresher   Refresher
	concurrency int
	logger      zerolog.Logger

	tracer    trace.Tracer
	pages     metric.Int64Counter
	locations metric.Int64Counter
}

// NewDriver creates a Driver.
func NewDriver(cfg Config) *Driver {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	meter := otel.Meter(instrumentationName)
	pages, _ := meter.Int64Counter("ingestion.pages",
		metric.WithDescription("Catalog pages fetched by ingestion runs"),
		metric.WithUnit("{page}"))
	locations, _ := meter.Int64Counter("ingestion.locations",
		metric.WithDescription("Locations refreshed by ingestion runs"),
		metric.WithUnit("{location}"))

	return &Driver{
		catalog:     cfg.Catalog,
		refresher:   cfg.Refresher,
		concurrency: concurrency,
		logger:      cfg.Logger,
		tracer:      otel.Tracer(instrumentationName),
		pages:       pages,
		locations:   locations,
	}
}

// RunFull refreshes every location, page by page from page 0. The walk stops
// at the first page that is empty or reports no next page. A location whose
// sources return nothing is counted and skipped; only a failed page fetch or
// a cancelled context ends the walk early.
func (d *Driver) RunFull(ctx context.Context, pageSize int) (stats Stats, err error) {
	q, err := paging.NewQuery(0, pageSize)
	if err != nil {
		return Stats{}, err
	}

	ctx, span := d.tracer.Start(ctx, "ingestion.RunFull",
		trace.WithAttributes(attribute.Int("ingestion.page_size", pageSize)))
	defer span.End()

	start := time.Now()
	defer func() {
		stats.Duration = time.Since(start)
		span.SetAttributes(
			attribute.Int("ingestion.pages", stats.Pages),
			attribute.Int("ingestion.locations", stats.Locations),
		)
	}()

	d.logger.Info().Int("page_size", pageSize).Msg("starting full ingestion")

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		page, err := d.catalog.FetchPage(ctx, q)
		if err != nil {
			return stats, fmt.Errorf("fetch catalog page %d: %w", q.Page, err)
		}
		stats.Pages++
		d.pages.Add(ctx, 1)

		if page.Len() == 0 {
			break
		}

		if err := d.refreshPage(ctx, page.Content(), &stats); err != nil {
			return stats, err
		}

		d.logger.Debug().
			Int("page", q.Page).
			Int("items", page.Len()).
			Int("total", page.TotalElements()).
			Msg("ingested catalog page")

		if !page.HasNext() {
			break
		}
		q = q.Next()
	}

	d.logger.Info().
		Int("pages", stats.Pages).
		Int("locations", stats.Locations).
		Int("air_quality", stats.AirQuality).
		Int("weather", stats.Weather).
		Int("empty", stats.Empty).
		Dur("elapsed", time.Since(start)).
		Msg("full ingestion finished")

	return stats, nil
}

func (d *Driver) refreshPage(ctx context.Context, locs []location.Location, stats *Stats) error {
	var mu sync.Mutex
	record := func(res refresh.Result) {
		mu.Lock()
		defer mu.Unlock()
		stats.Locations++
		if res.AirQuality != nil {
			stats.AirQuality++
		}
		if res.Weather != nil {
			stats.Weather++
		}
		if res.Empty() {
			stats.Empty++
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for _, loc := range locs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			record(d.refresher.Refresh(ctx, loc.ID))
			d.locations.Add(ctx, 1)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}
