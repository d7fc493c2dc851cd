package handler

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/rainmatrix/rainmatrix/internal/api/models"
	"github.com/rainmatrix/rainmatrix/internal/api/response"
	"github.com/rainmatrix/rainmatrix/internal/cache"
	"github.com/rainmatrix/rainmatrix/internal/places"
)

// OpsConfig holds the dependencies probed by the operational endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// PlacesPath is checked for readability on readiness.
	PlacesPath string

	// Cache is probed with a throwaway read.
	Cache cache.Repository

	// BreakerState reports the forecast provider circuit state. May be nil.
	BreakerState func() gobreaker.State
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

// ReadinessCheck handles GET /v1/ops/ready - readiness check. The service is
// ready when the location source parses and the cache answers a probe read.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if _, _, err := places.Load(h.cfg.PlacesPath); err != nil {
		response.ServiceUnavailable(w, r, "location source unavailable")
		return
	}
	if _, _, err := h.cfg.Cache.Get(r.Context(), cache.Key{}); err != nil {
		response.ServiceUnavailable(w, r, "cache backend unavailable")
		return
	}

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - subsystem and provider status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	overall := models.HealthStatusOK

	cacheStatus := models.HealthStatusOK
	var cacheDetail *string
	if _, _, err := h.cfg.Cache.Get(r.Context(), cache.Key{}); err != nil {
		cacheStatus = models.HealthStatusDegraded
		msg := err.Error()
		cacheDetail = &msg
		overall = models.HealthStatusDegraded
	}

	providerStatus := models.HealthStatusOK
	if h.cfg.BreakerState != nil {
		switch h.cfg.BreakerState() {
		case gobreaker.StateOpen:
			providerStatus = models.HealthStatusFail
			overall = models.HealthStatusDegraded
		case gobreaker.StateHalfOpen:
			providerStatus = models.HealthStatusDegraded
			overall = models.HealthStatusDegraded
		}
	}

	status := models.SystemStatus{
		Status: overall,
		Time:   models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{
			{Name: "cache", Status: cacheStatus, Detail: cacheDetail},
		},
		Providers: []models.ProviderStatus{
			{Provider: "open-meteo", Status: providerStatus},
		},
	}
	response.JSON(w, r, http.StatusOK, status)
}
