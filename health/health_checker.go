// Package health reports service health from the latest forecast run.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/giygas/regimen-forecast/interfaces"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	store                 interfaces.RunStore
	interval              time.Duration
	conservationTolerance float64
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(store interfaces.RunStore, interval time.Duration, conservationTolerance float64) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		store:                 store,
		interval:              interval,
		conservationTolerance: conservationTolerance,
	}
}

// HealthCheck returns HTTP-specific health data.
// Used by /health HTTP endpoint
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	run := h.store.GetRun()
	lastUpdate := h.store.GetLastUpdated()
	isUpdating := h.store.IsUpdating()

	dataAge := time.Since(lastUpdate)

	data = map[string]any{
		"is_updating": isUpdating,
		"next_update": h.CalculateNextUpdate().Format(time.RFC3339),
	}

	if run == nil || run.Allocation == nil {
		data["last_update"] = nil
		return "unhealthy", data, http.StatusServiceUnavailable
	}

	drift := math.Abs(run.Allocation.ConservationRatio - 1.0)

	switch {
	case h.interval > 0 && dataAge > 2*h.interval:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case drift > h.conservationTolerance:
		status = "degraded"
		httpStatus = http.StatusOK

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data["run_id"] = run.ID
	data["last_update"] = lastUpdate.Format(time.RFC3339)
	data["data_age_minutes"] = math.Round(dataAge.Minutes()*10) / 10
	data["nodes"] = len(run.Taxonomy.Nodes)
	data["conservation_ratio"] = run.Allocation.ConservationRatio
	data["warnings"] = len(run.Allocation.Warnings)

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled refresh time
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	lastUpdate := h.store.GetLastUpdated()
	if lastUpdate.IsZero() || h.interval <= 0 {
		return time.Now()
	}

	next := lastUpdate.Add(h.interval)
	for next.Before(time.Now()) {
		next = next.Add(h.interval)
	}
	return next
}
