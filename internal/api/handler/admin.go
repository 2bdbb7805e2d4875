package handler

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/runair/runair/internal/api/middleware"
	"github.com/runair/runair/internal/api/models"
	"github.com/runair/runair/internal/api/response"
	"github.com/runair/runair/internal/ingestion"
	"github.com/runair/runair/internal/location"
	"github.com/runair/runair/internal/refresh"
)

// Refresher refreshes one location.
type Refresher interface {
	Refresh(ctx context.Context, id location.ID) refresh.Result
}

// IngestionRunner walks the whole catalog.
type IngestionRunner interface {
	RunFull(ctx context.Context, pageSize int) (ingestion.Stats, error)
}

// LocationFinder resolves catalog entries.
type LocationFinder interface {
	FindByID(ctx context.Context, id location.ID) (location.Location, error)
}

// AdminConfig configures AdminHandler.
type AdminConfig struct {
	Catalog   LocationFinder
	Refresher Refresher
	Ingestion IngestionRunner

	// PageSize for manual runs without ?size=. Default: ingestion.DefaultPageSize
	PageSize int

	// BaseContext parents background ingestion runs so they stop on shutdown.
	// Default: context.Background()
	BaseContext context.Context

	Logger zerolog.Logger
}

// AdminHandler serves the manual trigger endpoints.
type AdminHandler struct {
	catalog   LocationFinder
	refresher Refresher
	ingestion IngestionRunner
	pageSize  int
	baseCtx   context.Context
	log       zerolog.Logger

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(cfg AdminConfig) *AdminHandler {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = ingestion.DefaultPageSize
	}
	baseCtx := cfg.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &AdminHandler{
		catalog:   cfg.Catalog,
		refresher: cfg.Refresher,
		ingestion: cfg.Ingestion,
		pageSize:  pageSize,
		baseCtx:   baseCtx,
		log:       cfg.Logger,
	}
}

// RefreshLocation handles POST /v1/admin/locations/{locationId}/refresh.
func (h *AdminHandler) RefreshLocation(w http.ResponseWriter, r *http.Request) {
	id, err := locationID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if _, err := h.catalog.FindByID(r.Context(), id); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	result := h.refresher.Refresh(r.Context(), id)

	h.log.Info().
		Str("location_id", id.String()).
		Str("subject", middleware.Subject(r.Context())).
		Bool("air_quality", result.AirQuality != nil).
		Bool("weather", result.Weather != nil).
		Msg("manual refresh")

	response.JSON(w, r, http.StatusOK, models.RefreshResult{
		LocationID: id.String(),
		AirQuality: toAirQualityView(result.AirQuality),
		Weather:    toWeatherView(result.Weather),
	})
}

// RunIngestion handles POST /v1/admin/ingestion:run. The walk runs in the
// background; a second request while one is running gets 409.
func (h *AdminHandler) RunIngestion(w http.ResponseWriter, r *http.Request) {
	size, ok := intParam(r, "size", h.pageSize)
	if !ok || size < 1 {
		response.BadRequest(w, r, "invalid page size", []models.FieldError{
			{Field: "size", Message: "must be a positive integer", Code: "OUT_OF_RANGE"},
		})
		return
	}

	if !h.running.CompareAndSwap(false, true) {
		response.Conflict(w, r, "an ingestion run is already in progress")
		return
	}

	startedAt := time.Now()
	subject := middleware.Subject(r.Context())
	h.wg.Add(1)

	go func() {
		defer h.wg.Done()
		defer h.running.Store(false)

		stats, err := h.ingestion.RunFull(h.baseCtx, size)
		if err != nil {
			h.log.Error().Err(err).Str("subject", subject).Msg("manual ingestion failed")
			return
		}
		h.log.Info().
			Str("subject", subject).
			Int("pages", stats.Pages).
			Int("locations", stats.Locations).
			Dur("elapsed", stats.Duration).
			Msg("manual ingestion finished")
	}()

	response.Accepted(w, r, "", models.IngestionAccepted{
		PageSize:  size,
		StartedAt: models.Timestamp(startedAt),
	})
}

// Wait blocks until background runs have returned.
func (h *AdminHandler) Wait() {
	h.wg.Wait()
}
