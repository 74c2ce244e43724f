package main

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/giygas/regimen-forecast/allocation"
	"github.com/giygas/regimen-forecast/config"
	"github.com/giygas/regimen-forecast/data"
	"github.com/giygas/regimen-forecast/dosing"
	"github.com/giygas/regimen-forecast/entities"
	"github.com/giygas/regimen-forecast/forecast"
	"github.com/giygas/regimen-forecast/handlers"
	"github.com/giygas/regimen-forecast/health"
	"github.com/giygas/regimen-forecast/inputs"
	"github.com/giygas/regimen-forecast/logging"
	"github.com/giygas/regimen-forecast/scheduler"
	"github.com/giygas/regimen-forecast/server"
	"github.com/giygas/regimen-forecast/validation"
)

// setupApplication wires the service the way main does, over the bundled
// input files, and performs the initial run
func setupApplication(t *testing.T) http.Handler {
	t.Helper()
	logging.InitLogger("")

	cfg := &config.Config{
		Port:            "0",
		Address:         "localhost",
		Env:             config.EnvTest,
		MaxRequestBody:  1048576,
		MaxHeaderSize:   1048576,
		InputDir:        "files",
		TaxonomyFile:    "taxonomy.json",
		AssumptionsFile: "assumptions.json",
		RefreshInterval: time.Hour,
		HorizonYears:    5,
		Engine:          config.DefaultEngineConfig(),
	}

	store := data.NewRunContainer()
	store.SetServerStartTime(time.Now())

	validator := validation.NewShareValidator(cfg.Engine)
	engine := allocation.NewEngine(cfg.Engine, validator)
	calculator := dosing.NewCalculator()
	generator := forecast.NewGenerator(engine, calculator)
	source := inputs.NewFileSource(cfg.InputDir, cfg.TaxonomyFile, cfg.AssumptionsFile, cfg.OverridesFile)

	sched := scheduler.NewScheduler(store, source, scheduler.Engines{
		Validator:  validator,
		Allocator:  engine,
		Calculator: calculator,
		Forecaster: generator,
	}, scheduler.Options{
		Interval:     cfg.RefreshInterval,
		HorizonYears: cfg.HorizonYears,
		Fingerprint:  cfg.Engine,
	})
	if err := sched.Start(); err != nil {
		t.Fatalf("Scheduler failed to start: %v", err)
	}
	t.Cleanup(sched.Stop)

	handler := handlers.NewHTTPHandler(handlers.Dependencies{
		Store:        store,
		Health:       health.NewHealthChecker(store, cfg.RefreshInterval, cfg.Engine.ConservationTolerance),
		Validator:    validator,
		Allocator:    engine,
		Calculator:   calculator,
		Forecaster:   generator,
		HorizonYears: cfg.HorizonYears,
	})

	return server.NewServer(cfg, handler).Router()
}

func get(t *testing.T, router http.Handler, path string, v any) int {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	req.RemoteAddr = "127.0.0.1:1234"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if v != nil && rr.Code == http.StatusOK {
		if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
			t.Fatalf("Failed to decode %s: %v", path, err)
		}
	}
	return rr.Code
}

func TestIntegrationFullForecastPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	router := setupApplication(t)

	var run handlers.RunResponse
	if code := get(t, router, "/v1/run", &run); code != http.StatusOK {
		t.Fatalf("Expected 200 from /v1/run, got %d", code)
	}
	if run.PopulationSource != entities.PopulationPrevalence {
		t.Errorf("Expected prevalence-based pool, got %s", run.PopulationSource)
	}
	if math.Abs(run.TreatedPool-263_500) > 1e-6 {
		t.Errorf("Expected treated pool 263500, got %f", run.TreatedPool)
	}
	if math.Abs(run.ConservationRatio-1) > 1e-9 {
		t.Errorf("Expected conservation ratio 1, got %f", run.ConservationRatio)
	}

	var alloc entities.AllocationResult
	if code := get(t, router, "/v1/allocation", &alloc); code != http.StatusOK {
		t.Fatalf("Expected 200 from /v1/allocation, got %d", code)
	}
	expected := map[string]float64{
		"her2-adj-trastuzumab-iv": 73_780,
		"her2-adj-trastuzumab-sc": 31_620,
		"her2-neo-pertuzumab":     65_875,
		"her2-met-tdxd":           55_335,
		"her2-met-paclitaxel":     36_890,
	}
	for _, leaf := range alloc.LeafCohorts {
		if math.Abs(leaf.Patients-expected[leaf.NodeID]) > 1e-6 {
			t.Errorf("%s: expected %f patients, got %f", leaf.NodeID, expected[leaf.NodeID], leaf.Patients)
		}
	}

	var demand entities.DemandResult
	if code := get(t, router, "/v1/demand", &demand); code != http.StatusOK {
		t.Fatalf("Expected 200 from /v1/demand, got %d", code)
	}
	for _, node := range demand.Nodes {
		if node.AdministeredMgTotal <= 0 || node.DispensedMgTotal < node.AdministeredMgTotal-1e-6 {
			t.Errorf("%s: dispensed %f should cover administered %f", node.NodeID, node.DispensedMgTotal, node.AdministeredMgTotal)
		}
	}

	var summaries []entities.ForecastSummary
	if code := get(t, router, "/v1/forecast/summary?scenario=high", &summaries); code != http.StatusOK {
		t.Fatalf("Expected 200 from /v1/forecast/summary, got %d", code)
	}
	if len(summaries) != 6 {
		t.Fatalf("Expected 6 yearly summaries, got %d", len(summaries))
	}
	for i := 1; i < len(summaries); i++ {
		if summaries[i].TreatedPool <= summaries[i-1].TreatedPool {
			t.Errorf("High scenario should grow: year %d pool %f <= %f", summaries[i].Year, summaries[i].TreatedPool, summaries[i-1].TreatedPool)
		}
	}

	var body struct {
		Count int `json:"count"`
	}
	if code := get(t, router, "/v1/forecast", &body); code != http.StatusOK || body.Count != 90 {
		t.Errorf("Expected 90 forecast records, got %d (status %d)", body.Count, code)
	}

	var healthBody handlers.HealthResponse
	if code := get(t, router, "/health", &healthBody); code != http.StatusOK || healthBody.Status != "healthy" {
		t.Errorf("Expected healthy service, got %q (status %d)", healthBody.Status, code)
	}
}
