// Package handlers provides the HTTP handlers of the forecast API: read
// access to the latest run and ad-hoc computations over posted inputs.
package handlers

import (
	"encoding/json"
	"net/http"
	"runtime"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/giygas/regimen-forecast/entities"
	"github.com/giygas/regimen-forecast/inputs"
	"github.com/giygas/regimen-forecast/interfaces"
	"github.com/giygas/regimen-forecast/logging"
)

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// Dependencies are the collaborators of the HTTP handler
type Dependencies struct {
	Store        interfaces.RunStore
	Health       interfaces.HealthChecker
	Validator    interfaces.ShareValidator
	Allocator    interfaces.Allocator
	Calculator   interfaces.DoseCalculator
	Forecaster   interfaces.Forecaster
	HorizonYears int
}

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	deps Dependencies
}

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(deps Dependencies) *HTTPHandlerImpl {
	return &HTTPHandlerImpl{deps: deps}
}

// RunResponse summarises the latest run
type RunResponse struct {
	RunID             string             `json:"run_id"`
	ComputedAt        string             `json:"computed_at"`
	Indication        string             `json:"indication,omitempty"`
	BaseYear          int                `json:"base_year"`
	Nodes             int                `json:"nodes"`
	PopulationSource  string             `json:"population_source"`
	BasePool          float64            `json:"base_pool"`
	TreatedPool       float64            `json:"treated_pool"`
	ConservationRatio float64            `json:"conservation_ratio"`
	TotalAdministered float64            `json:"total_administered_mg"`
	TotalDispensed    float64            `json:"total_dispensed_mg"`
	HorizonYears      int                `json:"horizon_years"`
	Scenarios         []string           `json:"scenarios"`
	Warnings          []entities.Warning `json:"warnings"`
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	Uptime        string         `json:"uptime"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// currentRun returns the latest complete run, or writes a 503
func (h *HTTPHandlerImpl) currentRun(w http.ResponseWriter) *interfaces.Run {
	run := h.deps.Store.GetRun()
	if run == nil || run.Allocation == nil || run.Demand == nil || run.Forecast == nil {
		RespondWithError(w, http.StatusServiceUnavailable, "No forecast run available yet")
		return nil
	}
	return run
}

// ServeRun returns the latest run summary
func (h *HTTPHandlerImpl) ServeRun(w http.ResponseWriter, r *http.Request) {
	run := h.currentRun(w)
	if run == nil {
		return
	}

	warnings := make([]entities.Warning, 0, len(run.Allocation.Warnings)+len(run.Demand.Warnings)+len(run.Forecast.Warnings))
	warnings = append(warnings, run.Allocation.Warnings...)
	warnings = append(warnings, run.Demand.Warnings...)
	warnings = append(warnings, run.Forecast.Warnings...)

	RespondWithJSON(w, http.StatusOK, RunResponse{
		RunID:             run.ID,
		ComputedAt:        run.ComputedAt.Format(time.RFC3339),
		Indication:        run.Taxonomy.Indication,
		BaseYear:          run.Assumptions.BaseYear,
		Nodes:             len(run.Taxonomy.Nodes),
		PopulationSource:  run.Allocation.PopulationSource,
		BasePool:          run.Allocation.BasePool,
		TreatedPool:       run.Allocation.TreatedPool,
		ConservationRatio: run.Allocation.ConservationRatio,
		TotalAdministered: run.Demand.TotalAdministeredMg,
		TotalDispensed:    run.Demand.TotalDispensedMg,
		HorizonYears:      run.Forecast.HorizonYears,
		Scenarios:         run.Forecast.Scenarios,
		Warnings:          warnings,
	})
}

// ServeAllocation returns the base-year allocation with traces
func (h *HTTPHandlerImpl) ServeAllocation(w http.ResponseWriter, r *http.Request) {
	run := h.currentRun(w)
	if run == nil {
		return
	}
	RespondWithJSON(w, http.StatusOK, run.Allocation)
}

// ServeRollups returns dimension roll-ups, optionally filtered by ?dimension=
func (h *HTTPHandlerImpl) ServeRollups(w http.ResponseWriter, r *http.Request) {
	run := h.currentRun(w)
	if run == nil {
		return
	}

	dimension := r.URL.Query().Get("dimension")
	if dimension == "" {
		RespondWithJSON(w, http.StatusOK, run.Allocation.Rollups)
		return
	}

	if !slices.Contains(entities.Dimensions, dimension) && dimension != entities.DimensionRegimen {
		logging.Warn("Unusual user input", "dimension", dimension)
		RespondWithError(w, http.StatusBadRequest, "Invalid dimension")
		return
	}

	rollups := []entities.Rollup{}
	for _, rollup := range run.Allocation.Rollups {
		if rollup.Dimension == dimension {
			rollups = append(rollups, rollup)
		}
	}
	RespondWithJSON(w, http.StatusOK, rollups)
}

// ServeDemand returns the base-year demand of every node
func (h *HTTPHandlerImpl) ServeDemand(w http.ResponseWriter, r *http.Request) {
	run := h.currentRun(w)
	if run == nil {
		return
	}
	RespondWithJSON(w, http.StatusOK, run.Demand)
}

// ServeDemandNode returns one node's demand with its allocation trace
func (h *HTTPHandlerImpl) ServeDemandNode(w http.ResponseWriter, r *http.Request) {
	run := h.currentRun(w)
	if run == nil {
		return
	}

	nodeID := chi.URLParam(r, "nodeId")
	for _, node := range run.Demand.Nodes {
		if node.NodeID != nodeID {
			continue
		}

		response := map[string]any{"demand": node}
		for _, leaf := range run.Allocation.LeafCohorts {
			if leaf.NodeID == nodeID {
				response["cohort"] = leaf
				break
			}
		}
		RespondWithJSON(w, http.StatusOK, response)
		return
	}

	RespondWithError(w, http.StatusNotFound, "Node not found")
}

// scenarioFilter reads ?scenario= and checks it against the run
func scenarioFilter(w http.ResponseWriter, r *http.Request, result *entities.ForecastResult) (string, bool) {
	scenario := r.URL.Query().Get("scenario")
	if scenario != "" && !slices.Contains(result.Scenarios, scenario) {
		RespondWithError(w, http.StatusNotFound, "Scenario not found")
		return "", false
	}
	return scenario, true
}

// ServeForecast returns forecast records filtered by ?scenario= and ?year=
func (h *HTTPHandlerImpl) ServeForecast(w http.ResponseWriter, r *http.Request) {
	run := h.currentRun(w)
	if run == nil {
		return
	}

	scenario, ok := scenarioFilter(w, r, run.Forecast)
	if !ok {
		return
	}

	year := 0
	hasYear := false
	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		parsed, err := strconv.Atoi(yearStr)
		if err != nil {
			logging.Warn("Unusual user input", "year", yearStr)
			RespondWithError(w, http.StatusBadRequest, "Invalid year")
			return
		}
		year, hasYear = parsed, true
	}

	records := []entities.ForecastRecord{}
	for _, record := range run.Forecast.Records {
		if scenario != "" && record.Scenario != scenario {
			continue
		}
		if hasYear && record.Year != year {
			continue
		}
		records = append(records, record)
	}

	RespondWithJSON(w, http.StatusOK, map[string]any{
		"run_id":  run.ID,
		"count":   len(records),
		"records": records,
	})
}

// ServeForecastSummary returns per scenario-year totals, filtered by ?scenario=
func (h *HTTPHandlerImpl) ServeForecastSummary(w http.ResponseWriter, r *http.Request) {
	run := h.currentRun(w)
	if run == nil {
		return
	}

	scenario, ok := scenarioFilter(w, r, run.Forecast)
	if !ok {
		return
	}

	summaries := []entities.ForecastSummary{}
	for _, summary := range run.Forecast.Summaries {
		if scenario == "" || summary.Scenario == scenario {
			summaries = append(summaries, summary)
		}
	}
	RespondWithJSON(w, http.StatusOK, summaries)
}

// ScenarioResponse is one named scenario
type ScenarioResponse struct {
	Name string `json:"name"`
	entities.Scenario
}

// ServeScenarios lists the scenarios of the latest run in name order
func (h *HTTPHandlerImpl) ServeScenarios(w http.ResponseWriter, r *http.Request) {
	run := h.currentRun(w)
	if run == nil {
		return
	}

	scenarios := make([]ScenarioResponse, 0, len(run.Forecast.Scenarios))
	for _, name := range run.Forecast.Scenarios {
		scenarios = append(scenarios, ScenarioResponse{Name: name, Scenario: run.Assumptions.Scenarios[name]})
	}
	RespondWithJSON(w, http.StatusOK, scenarios)
}

// ComputeRequest carries inputs for an ad-hoc computation. Assumptions are
// merged over the defaults exactly like an assumptions file.
type ComputeRequest struct {
	Taxonomy     json.RawMessage `json:"taxonomy"`
	Assumptions  json.RawMessage `json:"assumptions"`
	HorizonYears *int            `json:"horizon_years,omitempty"`
}

// decodeCompute reads and validates a compute request
func (h *HTTPHandlerImpl) decodeCompute(w http.ResponseWriter, r *http.Request) (*ComputeRequest, entities.Taxonomy, entities.Assumptions, bool) {
	var req ComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid JSON body")
		return nil, entities.Taxonomy{}, entities.Assumptions{}, false
	}
	if len(req.Taxonomy) == 0 {
		RespondWithError(w, http.StatusBadRequest, "Missing taxonomy")
		return nil, entities.Taxonomy{}, entities.Assumptions{}, false
	}

	taxonomy, err := inputs.DecodeTaxonomy(req.Taxonomy)
	if err != nil {
		respondWithComputeError(w, err)
		return nil, entities.Taxonomy{}, entities.Assumptions{}, false
	}
	if err := h.deps.Validator.ValidateTaxonomy(taxonomy); err != nil {
		respondWithComputeError(w, err)
		return nil, entities.Taxonomy{}, entities.Assumptions{}, false
	}

	assumptions, err := inputs.MergeAssumptions(req.Assumptions)
	if err != nil {
		respondWithComputeError(w, err)
		return nil, entities.Taxonomy{}, entities.Assumptions{}, false
	}

	return &req, taxonomy, assumptions, true
}

// ComputeAllocation runs allocation and demand over posted inputs
func (h *HTTPHandlerImpl) ComputeAllocation(w http.ResponseWriter, r *http.Request) {
	_, taxonomy, assumptions, ok := h.decodeCompute(w, r)
	if !ok {
		return
	}

	result, err := h.deps.Allocator.Allocate(taxonomy, assumptions)
	if err != nil {
		respondWithComputeError(w, err)
		return
	}

	demand, err := h.deps.Calculator.CalculateDemand(taxonomy, result, assumptions)
	if err != nil {
		respondWithComputeError(w, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, map[string]any{
		"allocation": result,
		"demand":     demand,
	})
}

// ComputeForecast runs a forecast over posted inputs and horizon
func (h *HTTPHandlerImpl) ComputeForecast(w http.ResponseWriter, r *http.Request) {
	req, taxonomy, assumptions, ok := h.decodeCompute(w, r)
	if !ok {
		return
	}

	horizon := h.deps.HorizonYears
	if req.HorizonYears != nil {
		horizon = *req.HorizonYears
	}

	result, err := h.deps.Forecaster.Forecast(taxonomy, assumptions, horizon)
	if err != nil {
		respondWithComputeError(w, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, result)
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status, data, httpStatus := h.deps.Health.HealthCheck()

	var uptime time.Duration
	if start := h.deps.Store.GetServerStartTime(); !start.IsZero() {
		uptime = time.Since(start)
	}

	RespondWithJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Uptime:        formatUptimeHuman(uptime),
		UptimeSeconds: uptime.Seconds(),
		Data:          data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	})
}
