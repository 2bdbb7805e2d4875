package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runair/runair/internal/airquality"
	"github.com/runair/runair/internal/api"
	"github.com/runair/runair/internal/api/handler"
	"github.com/runair/runair/internal/api/models"
	"github.com/runair/runair/internal/auth"
	"github.com/runair/runair/internal/ingestion"
	"github.com/runair/runair/internal/location"
	"github.com/runair/runair/internal/provider/resilience"
	"github.com/runair/runair/internal/query"
	"github.com/runair/runair/internal/refresh"
	"github.com/runair/runair/internal/weather"
)

var measuredAt = time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)

type aqSource struct{ aqi map[location.ID]int }

func (s aqSource) FetchLatest(_ context.Context, id location.ID) (airquality.Reading, bool) {
	v, ok := s.aqi[id]
	if !ok {
		return airquality.Reading{}, false
	}
	return airquality.Reading{LocationID: id, AQI: airquality.AQI(v), MeasuredAt: measuredAt}, true
}

type wxSource struct{ calls atomic.Int32 }

func (s *wxSource) FetchLatest(_ context.Context, id location.ID) (weather.Reading, bool) {
	s.calls.Add(1)
	if id == "dhaka-2" {
		return weather.Reading{}, false
	}
	return weather.Reading{
		LocationID:  id,
		Temperature: 28,
		Humidity:    70,
		Wind:        weather.Wind{SpeedMetersPerSecond: 3, Direction: "SW"},
		MeasuredAt:  measuredAt,
	}, true
}

type testServer struct {
	router  http.Handler
	admin   *handler.AdminHandler
	tokens  *auth.TokenService
	aqStore *airquality.InMemoryRepository
	wx      *wxSource
}

func newTestServer(t *testing.T, checks ...handler.Check) *testServer {
	t.Helper()
	log := zerolog.New(io.Discard)

	catalog := location.NewInMemoryCatalog(
		location.Location{ID: "dhaka-1", Name: "Gulshan", Coordinates: location.Coordinates{Lat: 23.79, Lon: 90.41}, Type: location.TypeUrban},
		location.Location{ID: "dhaka-2", Name: "Ramna Park", Coordinates: location.Coordinates{Lat: 23.74, Lon: 90.40}, Type: location.TypePark},
		location.Location{ID: "dhaka-3", Name: "Uttara", Coordinates: location.Coordinates{Lat: 23.87, Lon: 90.39}, Type: location.TypeSuburban},
	)
	aqStore := airquality.NewInMemoryRepository()
	wxStore := weather.NewInMemoryRepository()
	wx := &wxSource{}

	orchestrator := refresh.NewOrchestrator(refresh.Config{
		AirQualitySource: aqSource{aqi: map[location.ID]int{"dhaka-1": 42, "dhaka-2": 160}},
		WeatherSource:    wx,
		AirQualityStore:  aqStore,
		WeatherStore:     wxStore,
		Logger:           log,
	})
	queries := query.NewService(query.ServiceConfig{
		Catalog:    catalog,
		AirQuality: aqStore,
		Weather:    wxStore,
		Refresher:  orchestrator,
		Logger:     log,
	})
	driver := ingestion.NewDriver(ingestion.Config{Catalog: catalog, Refresher: orchestrator, Logger: log})
	admin := handler.NewAdminHandler(handler.AdminConfig{
		Catalog:   catalog,
		Refresher: orchestrator,
		Ingestion: driver,
		PageSize:  2,
		Logger:    log,
	})
	tokens, err := auth.NewTokenService(auth.TokenConfig{SigningKey: "test-secret-key-for-testing-only"})
	require.NoError(t, err)

	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("openaq")
	cfg.Registry = registry
	resilience.NewClient(cfg)

	router := api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "2026-01-01T00:00:00Z",
		Logger:    log,
		Queries:   queries,
		Admin:     admin,
		Tokens:    tokens,
		Checks:    checks,
		Providers: registry,
	})
	return &testServer{router: router, admin: admin, tokens: tokens, aqStore: aqStore, wx: wx}
}

func (s *testServer) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) token(t *testing.T, scopes ...string) string {
	t.Helper()
	token, _, err := s.tokens.Issue("ops@runair", scopes...)
	require.NoError(t, err)
	return token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRouter_HealthCheck(t *testing.T) {
	rec := newTestServer(t).do(t, http.MethodGet, "/v1/ops/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, models.HealthStatusOK, decode[models.Health](t, rec).Status)
}

func TestRouter_ReadinessFailsWithSubsystem(t *testing.T) {
	srv := newTestServer(t, handler.Check{
		Name:  "database",
		Probe: func(context.Context) error { return errors.New("connection refused") },
	})

	rec := srv.do(t, http.MethodGet, "/v1/ops/ready", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	health := decode[models.Health](t, rec)
	assert.Equal(t, models.HealthStatusFail, health.Status)
	assert.Equal(t, "connection refused", health.Details["database"])
}

func TestRouter_SystemStatusListsProviders(t *testing.T) {
	rec := newTestServer(t).do(t, http.MethodGet, "/v1/ops/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[models.SystemStatus](t, rec)
	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Providers, 1)
	assert.Equal(t, "openaq", status.Providers[0].Provider)
	assert.Equal(t, "closed", status.Providers[0].CircuitState)
}

func TestRouter_BrowseRefreshesMissingReadings(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/v1/locations?page=0&size=2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[models.Page[models.LocationSummary]](t, rec)
	assert.Equal(t, 3, page.TotalElements)
	assert.True(t, page.HasNext)
	require.Len(t, page.Items, 2)

	gulshan := page.Items[0]
	assert.Equal(t, "dhaka-1", gulshan.LocationID)
	require.NotNil(t, gulshan.AQI)
	assert.Equal(t, 42, *gulshan.AQI)
	require.NotNil(t, gulshan.TemperatureC)
	assert.InDelta(t, 28, *gulshan.TemperatureC, 1e-9)
	assert.Equal(t, "IDEAL", gulshan.Verdict)

	ramna := page.Items[1]
	assert.Nil(t, ramna.TemperatureC)
	assert.Nil(t, ramna.HumidityPct)
	assert.Equal(t, "HAZARDOUS", ramna.Verdict)
}

func TestRouter_BrowseRejectsBadPaging(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/v1/locations?size=0", "/v1/locations?page=-1", "/v1/locations?size=abc", "/v1/catalog?size=1000"} {
		t.Run(path, func(t *testing.T) {
			rec := srv.do(t, http.MethodGet, path, "")

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			problem := decode[models.Problem](t, rec)
			assert.NotEmpty(t, problem.Errors)
		})
	}
	assert.Zero(t, srv.wx.calls.Load())
}

func TestRouter_UnknownLocationIsNotFound(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/v1/locations/nowhere", "/v1/locations/nowhere/summary", "/v1/locations/nowhere/condition"} {
		rec := srv.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, models.ProblemTypeNotFound, decode[models.Problem](t, rec).Type)
	}
	assert.Zero(t, srv.wx.calls.Load())
}

func TestRouter_Details(t *testing.T) {
	rec := newTestServer(t).do(t, http.MethodGet, "/v1/locations/dhaka-2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[models.LocationDetails](t, rec)
	assert.Equal(t, "PARK", d.Type)
	require.NotNil(t, d.AirQuality)
	assert.Equal(t, 160, d.AirQuality.AQI)
	assert.Equal(t, "UNHEALTHY", d.AirQuality.Category)
	assert.Nil(t, d.Weather)
	assert.Equal(t, "HAZARDOUS", d.Verdict)
}

func TestRouter_SummaryWithoutData(t *testing.T) {
	rec := newTestServer(t).do(t, http.MethodGet, "/v1/locations/dhaka-3/summary", "")

	require.Equal(t, http.StatusOK, rec.Code)
	s := decode[models.LocationSummary](t, rec)
	assert.Nil(t, s.AQI)
	assert.NotNil(t, s.TemperatureC)
	assert.Equal(t, "IDEAL", s.Verdict)
}

func TestRouter_ConditionUsesStoredReadingsOnly(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/v1/locations/dhaka-1/condition", "")

	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[models.RunCondition](t, rec)
	assert.Equal(t, "ACCEPTABLE", c.Verdict)
	assert.Equal(t, "Data unavailable", c.HealthRisk)
	assert.Zero(t, srv.wx.calls.Load())
}

func TestRouter_Catalog(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/v1/catalog?page=1&size=2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[models.Page[models.CatalogEntry]](t, rec)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "dhaka-3", page.Items[0].LocationID)
	assert.False(t, page.HasNext)
	assert.Zero(t, srv.wx.calls.Load())
}

func TestRouter_AdminRequiresToken(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/v1/admin/locations/dhaka-1/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodPost, "/v1/admin/locations/dhaka-1/refresh", srv.token(t))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Zero(t, srv.wx.calls.Load())
}

func TestRouter_AdminRefresh(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/v1/admin/locations/dhaka-1/refresh", srv.token(t, auth.ScopeAdmin))

	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[models.RefreshResult](t, rec)
	require.NotNil(t, res.AirQuality)
	assert.Equal(t, 42, res.AirQuality.AQI)
	require.NotNil(t, res.Weather)
	assert.Equal(t, "SW", res.Weather.WindDirection)

	stored, err := srv.aqStore.FindLatest(context.Background(), "dhaka-1")
	require.NoError(t, err)
	assert.Equal(t, 42, stored.AQI.Value())

	rec = srv.do(t, http.MethodPost, "/v1/admin/locations/nowhere/refresh", srv.token(t, auth.ScopeAdmin))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_AdminIngestionRun(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/v1/admin/ingestion:run", srv.token(t, auth.ScopeAdmin))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 2, decode[models.IngestionAccepted](t, rec).PageSize)

	srv.admin.Wait()

	assert.Equal(t, int32(3), srv.wx.calls.Load())
	_, err := srv.aqStore.FindLatest(context.Background(), "dhaka-2")
	assert.NoError(t, err)
	_, err = srv.aqStore.FindLatest(context.Background(), "dhaka-3")
	assert.ErrorIs(t, err, airquality.ErrNoReading)
}

func TestRouter_AdminIngestionRejectsBadSize(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/v1/admin/ingestion:run?size=0", srv.token(t, auth.ScopeAdmin))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
