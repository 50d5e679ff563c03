// Package handler provides HTTP handlers for the map gateway API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/metamapa/mapgateway/internal/api/models"
	"github.com/metamapa/mapgateway/internal/api/response"
	"github.com/metamapa/mapgateway/internal/backend/resilience"
	"github.com/metamapa/mapgateway/internal/featureflags"
	"github.com/metamapa/mapgateway/internal/mapview"
)

// readyTimeout bounds each readiness check.
const readyTimeout = 2 * time.Second

// ReadinessCheck is a dependency the gateway needs before taking traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsConfig holds the dependencies of the operational endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string
	Registry  *resilience.Registry
	Flags     *featureflags.Service
	Sessions  *mapview.Manager
	Checks    []ReadinessCheck
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
// Any failing dependency reports 503.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.checkSubsystems(r.Context())

	status := models.HealthStatusOK
	details := make(map[string]interface{}, len(subsystems))
	for _, s := range subsystems {
		details[s.Name] = s.Status
		if s.Status != models.HealthStatusOK {
			status = models.HealthStatusFail
		}
	}

	code := http.StatusOK
	if status != models.HealthStatusOK {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, models.Health{
		Status:  status,
		Time:    models.Timestamp(time.Now()),
		Details: details,
	})
}

// SystemStatus handles GET /v1/ops/status - backend and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: h.checkSubsystems(r.Context()),
		Backends:   []models.BackendStatus{},
	}

	for _, s := range status.Subsystems {
		if s.Status != models.HealthStatusOK {
			status.Status = models.HealthStatusFail
		}
	}

	if h.cfg.Registry != nil {
		for _, b := range h.cfg.Registry.AllHealth() {
			bs := toBackendStatus(b)
			status.Backends = append(status.Backends, bs)
			if bs.Status != models.HealthStatusOK && status.Status == models.HealthStatusOK {
				status.Status = models.HealthStatusDegraded
			}
		}
	}

	if h.cfg.Flags != nil {
		for key, f := range h.cfg.Flags.GetAllFlags(r.Context()) {
			if f.BoolValue(false) {
				status.ActiveFlags = append(status.ActiveFlags, key)
			}
		}
		sort.Strings(status.ActiveFlags)
	}

	if h.cfg.Sessions != nil {
		status.LiveSessions = h.cfg.Sessions.Len()
		status.Refresh = h.cfg.Sessions.RefreshStats()
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) checkSubsystems(ctx context.Context) []models.SubsystemStatus {
	out := make([]models.SubsystemStatus, 0, len(h.cfg.Checks))
	for _, c := range h.cfg.Checks {
		checkCtx, cancel := context.WithTimeout(ctx, readyTimeout)
		err := c.Check(checkCtx)
		cancel()

		s := models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
		if err != nil {
			msg := err.Error()
			s.Status = models.HealthStatusFail
			s.Detail = &msg
		}
		out = append(out, s)
	}
	return out
}

func toBackendStatus(b *resilience.BackendHealth) models.BackendStatus {
	out := models.BackendStatus{
		Backend:             b.Name,
		CircuitState:        b.CircuitState.String(),
		ConsecutiveFailures: b.Counts.ConsecutiveFailures,
	}
	switch b.Status() {
	case "down":
		out.Status = models.HealthStatusFail
	case "degraded":
		out.Status = models.HealthStatusDegraded
	default:
		out.Status = models.HealthStatusOK
	}
	if b.LastSuccessAt != nil {
		out.LastSuccessAt = models.OptionalTimestamp(*b.LastSuccessAt)
	}
	if b.LastFailureAt != nil {
		out.LastFailureAt = models.OptionalTimestamp(*b.LastFailureAt)
	}
	if b.LastError != "" {
		msg := b.LastError
		out.Message = &msg
	}
	return out
}
