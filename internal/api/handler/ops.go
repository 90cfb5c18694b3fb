// Package handler provides HTTP handlers for the TrafficLens API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/trafficlens/trafficlens/internal/api/models"
	"github.com/trafficlens/trafficlens/internal/api/response"
	"github.com/trafficlens/trafficlens/internal/provider/resilience"
)

// readyProbeTimeout bounds each dependency probe.
const readyProbeTimeout = 2 * time.Second

// Check probes one dependency for readiness.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	providers *resilience.Registry
	checks    []Check
}

// NewOpsHandler creates a new OpsHandler. The registry may be nil when the
// process has no outbound providers.
func NewOpsHandler(version, buildTime string, providers *resilience.Registry, checks ...Check) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		providers: providers,
		checks:    checks,
	}
}

// HealthCheck handles GET /livez - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /readyz - readiness check. Every dependency
// probe must pass.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	details := map[string]interface{}{}
	status := models.HealthStatusOK
	code := http.StatusOK

	for _, check := range h.checks {
		if err := h.probe(r.Context(), check); err != nil {
			details[check.Name] = err.Error()
			status = models.HealthStatusFail
			code = http.StatusServiceUnavailable
		}
	}

	health := models.Health{
		Status: status,
		Time:   models.Timestamp(time.Now()),
	}
	if len(details) > 0 {
		health.Details = details
	}
	response.JSON(w, r, code, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and provider status.
// Failing subsystems make the overall status FAIL; unhealthy providers only
// degrade it, since collection retries ride out provider outages.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	overall := models.HealthStatusOK

	subsystems := make([]models.SubsystemStatus, 0, len(h.checks))
	for _, check := range h.checks {
		sub := models.SubsystemStatus{Name: check.Name, Status: models.HealthStatusOK}
		if err := h.probe(r.Context(), check); err != nil {
			detail := err.Error()
			sub.Status = models.HealthStatusFail
			sub.Detail = &detail
			overall = models.HealthStatusFail
		}
		subsystems = append(subsystems, sub)
	}

	providers := make([]models.ProviderStatus, 0)
	if h.providers != nil {
		for _, ph := range h.providers.GetAllHealth() {
			p := models.ProviderStatus{
				Provider:      ph.Name,
				Status:        models.HealthStatusOK,
				LastSuccessAt: toTimestampPtr(ph.LastSuccessAt),
				LastFailureAt: toTimestampPtr(ph.LastFailureAt),
			}
			switch {
			case ph.IsUnhealthy():
				p.Status = models.HealthStatusFail
			case ph.IsDegraded():
				p.Status = models.HealthStatusDegraded
			}
			if p.Status != models.HealthStatusOK && overall == models.HealthStatusOK {
				overall = models.HealthStatusDegraded
			}
			if ph.LastError != "" {
				msg := ph.LastError
				p.Message = &msg
			}
			providers = append(providers, p)
		}
	}

	status := models.SystemStatus{
		Status:     overall,
		Time:       models.Timestamp(time.Now()),
		Subsystems: subsystems,
		Providers:  providers,
	}
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) probe(ctx context.Context, check Check) error {
	ctx, cancel := context.WithTimeout(ctx, readyProbeTimeout)
	defer cancel()
	return check.Probe(ctx)
}

func toTimestampPtr(t *time.Time) *models.Timestamp {
	if t == nil {
		return nil
	}
	ts := models.Timestamp(*t)
	return &ts
}
