// Package data provides thread-safe storage of the latest forecast run.
// The run is swapped atomically so readers never see a half-computed result.
package data

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/giygas/regimen-forecast/interfaces"
	"github.com/giygas/regimen-forecast/logging"
)

// Compile-time check to ensure RunContainer implements RunStore
var _ interfaces.RunStore = (*RunContainer)(nil)

// RunContainer holds the latest run with atomic pointers for zero-downtime updates
type RunContainer struct {
	run             atomic.Pointer[interfaces.Run]
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewRunContainer creates an empty RunContainer
func NewRunContainer() *RunContainer {
	rc := &RunContainer{}
	rc.lastUpdated.Store(time.Time{})
	rc.serverStartTime.Store(time.Time{})
	return rc
}

// GetRun returns the latest run, or nil before the first computation
func (rc *RunContainer) GetRun() *interfaces.Run {
	return rc.run.Load()
}

// StoreRun atomically replaces the current run
func (rc *RunContainer) StoreRun(run *interfaces.Run) {
	rc.run.Store(run)
	rc.lastUpdated.Store(time.Now())
}

// GetLastUpdated returns the timestamp of the last stored run
func (rc *RunContainer) GetLastUpdated() time.Time {
	if v := rc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true if a recomputation is in progress
func (rc *RunContainer) IsUpdating() bool {
	return rc.updating.Load()
}

// SetServerStartTime sets the server start time
func (rc *RunContainer) SetServerStartTime(startTime time.Time) {
	rc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (rc *RunContainer) GetServerStartTime() time.Time {
	if v := rc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// BeginUpdate marks the start of a recomputation.
// Returns true if the update can proceed, false if another one is running.
func (rc *RunContainer) BeginUpdate() bool {
	return rc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a recomputation
func (rc *RunContainer) EndUpdate() {
	rc.updating.Store(false)
}

// ComputeRunID hashes the JSON encoding of every part. Map keys are
// encoded in sorted order, so identical inputs always give the same id.
func ComputeRunID(parts ...any) (string, error) {
	h := xxhash.New()
	encoder := json.NewEncoder(h)
	for i, part := range parts {
		if err := encoder.Encode(part); err != nil {
			return "", fmt.Errorf("failed to encode run part %d: %w", i, err)
		}
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
