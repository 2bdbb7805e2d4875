package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/runair/runair/internal/api/models"
	"github.com/runair/runair/internal/api/response"
	"github.com/runair/runair/internal/provider/resilience"
)

const checkTimeout = 2 * time.Second

// Check probes one dependency.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// ProviderHealth lists provider client health.
type ProviderHealth interface {
	Snapshot() []resilience.Health
}

// OpsConfig configures OpsHandler.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Checks gate readiness. All must pass for /ready to return 200.
	Checks []Check

	Providers ProviderHealth
}

// OpsHandler serves liveness, readiness and status.
type OpsHandler struct {
	version   string
	buildTime string
	checks    []Check
	providers ProviderHealth
}

// NewOpsHandler creates an OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		checks:    cfg.Checks,
		providers: cfg.Providers,
	}
}

// HealthCheck handles GET /v1/ops/health.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems, status := h.runChecks(r.Context())
	if status != models.HealthStatusOK {
		details := make(map[string]any, len(subsystems))
		for _, s := range subsystems {
			details[s.Name] = s.Detail
		}
		response.JSON(w, r, http.StatusServiceUnavailable, models.Health{
			Status:  status,
			Time:    models.Timestamp(time.Now()),
			Details: details,
		})
		return
	}
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status. Provider trouble degrades the
// overall status; a failing subsystem fails it.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	subsystems, status := h.runChecks(r.Context())

	var providers []models.ProviderStatus
	if h.providers != nil {
		for _, p := range h.providers.Snapshot() {
			ps := models.ProviderStatus{
				Provider:      p.Name,
				Status:        providerStatus(p),
				CircuitState:  p.State.String(),
				LastSuccessAt: timestampOf(p.LastSuccessAt),
				LastFailureAt: timestampOf(p.LastFailureAt),
				Message:       p.LastError,
			}
			if ps.Status != models.HealthStatusOK && status == models.HealthStatusOK {
				status = models.HealthStatusDegraded
			}
			providers = append(providers, ps)
		}
	}
	if providers == nil {
		providers = []models.ProviderStatus{}
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:     status,
		Time:       models.Timestamp(time.Now()),
		Subsystems: subsystems,
		Providers:  providers,
	})
}

func (h *OpsHandler) runChecks(ctx context.Context) ([]models.SubsystemStatus, models.HealthStatus) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	overall := models.HealthStatusOK
	out := make([]models.SubsystemStatus, 0, len(h.checks))
	for _, c := range h.checks {
		s := models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
		if err := c.Probe(ctx); err != nil {
			s.Status = models.HealthStatusFail
			s.Detail = err.Error()
			overall = models.HealthStatusFail
		}
		out = append(out, s)
	}
	return out, overall
}

func providerStatus(h resilience.Health) models.HealthStatus {
	switch h.Status() {
	case "healthy":
		return models.HealthStatusOK
	case "degraded":
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusFail
	}
}

func timestampOf(t *time.Time) *models.Timestamp {
	if t == nil {
		return nil
	}
	return models.TimestampPtr(*t)
}
