// Package interfaces defines the contracts between the forecast core and the
// service around it, so each piece can be tested in isolation.
package interfaces

import (
	"net/http"
	"time"

	"github.com/giygas/regimen-forecast/entities"
)

// ShareResult is a validated (and possibly renormalized) proportion map
type ShareResult struct {
	Dimension    string
	Shares       map[string]float64
	Sum          float64 // sum before any renormalization
	Renormalized bool
	Loss         float64 // deficit kept as intentional population loss
	Warnings     []entities.Warning
}

// CoverageReport lists mismatches between taxonomy dimension values and share keys
type CoverageReport struct {
	DimensionsWithoutShares []string
	MissingShareKeys        map[string][]string
	UnusedShareKeys         map[string][]string
}

// ShareValidator validates proportion maps, rates, populations and taxonomies
type ShareValidator interface {
	ValidateShares(dimension string, shares map[string]float64) (ShareResult, error)
	ValidateShareValues(dimension string, shares map[string]float64) error
	ValidateRate(name string, rate float64) error
	ValidatePopulation(name string, value float64) ([]entities.Warning, error)
	ValidateTaxonomy(taxonomy entities.Taxonomy) error
	ReportCoverage(taxonomy entities.Taxonomy, assumptions entities.Assumptions) *CoverageReport
}

// Allocator distributes a treated population into leaf cohorts
type Allocator interface {
	Allocate(taxonomy entities.Taxonomy, assumptions entities.Assumptions) (*entities.AllocationResult, error)
}

// DoseCalculator converts allocated cohorts into drug demand
type DoseCalculator interface {
	CalculateDemand(taxonomy entities.Taxonomy, allocation *entities.AllocationResult, assumptions entities.Assumptions) (*entities.DemandResult, error)
}

// Forecaster projects allocation and demand over scenarios and years
type Forecaster interface {
	Forecast(taxonomy entities.Taxonomy, base entities.Assumptions, horizonYears int) (*entities.ForecastResult, error)
}

// InputSource loads the taxonomy and assumptions produced upstream
type InputSource interface {
	Load() (entities.Taxonomy, entities.Assumptions, error)
}

// Run is one complete, self-consistent computation over a set of inputs
type Run struct {
	ID          string                     `json:"run_id"`
	Taxonomy    entities.Taxonomy          `json:"taxonomy"`
	Assumptions entities.Assumptions       `json:"assumptions"`
	Allocation  *entities.AllocationResult `json:"allocation"`
	Demand      *entities.DemandResult     `json:"demand"`
	Forecast    *entities.ForecastResult   `json:"forecast"`
	ComputedAt  time.Time                  `json:"computed_at"`
}

// RunStore holds the latest run with atomic replacement
type RunStore interface {
	GetRun() *Run
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	StoreRun(run *Run)
	BeginUpdate() bool
	EndUpdate()
}

// Scheduler manages the periodic recomputation
type Scheduler interface {
	Start() error
	Stop()
}

// HealthChecker reports service health from the run store
type HealthChecker interface {
	HealthCheck() (status string, details map[string]any, httpStatus int)
	CalculateNextUpdate() time.Time
}

// HTTPHandler defines the contract for HTTP request handlers
type HTTPHandler interface {
	ServeRun(w http.ResponseWriter, r *http.Request)
	ServeAllocation(w http.ResponseWriter, r *http.Request)
	ServeRollups(w http.ResponseWriter, r *http.Request)
	ServeDemand(w http.ResponseWriter, r *http.Request)
	ServeDemandNode(w http.ResponseWriter, r *http.Request)
	ServeForecast(w http.ResponseWriter, r *http.Request)
	ServeForecastSummary(w http.ResponseWriter, r *http.Request)
	ServeScenarios(w http.ResponseWriter, r *http.Request)
	ComputeAllocation(w http.ResponseWriter, r *http.Request)
	ComputeForecast(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}
