// Package scheduler recomputes the forecast run on a fixed interval. Each
// refresh loads the inputs, validates them, runs allocation, dosing and the
// forecast, and swaps the result into the run store.
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/giygas/regimen-forecast/data"
	"github.com/giygas/regimen-forecast/entities"
	"github.com/giygas/regimen-forecast/interfaces"
	"github.com/giygas/regimen-forecast/logging"
	"github.com/giygas/regimen-forecast/metrics"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Engines groups the computation stages of a run
type Engines struct {
	Validator  interfaces.ShareValidator
	Allocator  interfaces.Allocator
	Calculator interfaces.DoseCalculator
	Forecaster interfaces.Forecaster
}

// Options configures the refresh cadence and the forecast horizon
type Options struct {
	Interval     time.Duration
	HorizonYears int
	// Fingerprint is folded into the run id so a configuration change
	// forces a recompute even when the input files are unchanged.
	Fingerprint any
}

// Scheduler handles periodic recomputation using dependency injection
type Scheduler struct {
	store     interfaces.RunStore
	source    interfaces.InputSource
	engines   Engines
	opts      Options
	scheduler *gocron.Scheduler
	done      chan struct{}
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(store interfaces.RunStore, source interfaces.InputSource, engines Engines, opts Options) *Scheduler {
	return &Scheduler{
		store:     store,
		source:    source,
		engines:   engines,
		opts:      opts,
		scheduler: gocron.NewScheduler(time.Local),
		done:      make(chan struct{}),
	}
}

// Start performs the initial computation, then schedules refreshes
func (s *Scheduler) Start() error {
	if s.opts.Interval <= 0 {
		return fmt.Errorf("invalid refresh interval: %s", s.opts.Interval)
	}

	if err := s.refresh(); err != nil {
		logging.Error("Failed to perform initial forecast run", "error", err)
		return fmt.Errorf("initial forecast run failed: %w", err)
	}

	_, err := s.scheduler.Every(s.opts.Interval).WaitForSchedule().Do(func() {
		if err := s.refresh(); err != nil {
			logging.Error("Failed to refresh forecast run", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule refreshes", "error", err)
		return fmt.Errorf("failed to schedule refreshes: %w", err)
	}

	s.scheduler.StartAsync()
	s.startHealthMonitoring()

	logging.Info("Scheduler started", "interval", s.opts.Interval.String(), "horizon_years", s.opts.HorizonYears)
	return nil
}

// Stop stops the scheduler and the staleness monitor
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// refresh performs a complete recomputation using injected dependencies
func (s *Scheduler) refresh() error {
	if !s.store.BeginUpdate() {
		logging.Info("Refresh already in progress, skipping...")
		return nil
	}
	defer s.store.EndUpdate()

	start := time.Now()

	run, err := s.compute()
	if err != nil {
		metrics.RecordRun(metrics.RunError, time.Since(start), nil, nil)
		return err
	}

	if current := s.store.GetRun(); current != nil && current.ID == run.ID {
		// Same inputs: keep the computed run, only refresh its timestamp
		s.store.StoreRun(current)
		metrics.RecordRun(metrics.RunUnchanged, time.Since(start), nil, nil)
		logging.Info("Inputs unchanged, keeping current run", "run_id", run.ID)
		return nil
	}

	if err := s.execute(run); err != nil {
		metrics.RecordRun(metrics.RunError, time.Since(start), nil, nil)
		return err
	}

	s.store.StoreRun(run)

	elapsed := time.Since(start)
	warnings := runWarnings(run)
	metrics.RecordRun(metrics.RunSuccess, elapsed, run.Allocation, warnings)

	logging.Info("Forecast run completed",
		"run_id", run.ID,
		"duration", elapsed.String(),
		"nodes", len(run.Taxonomy.Nodes),
		"treated_pool", run.Allocation.TreatedPool,
		"records", len(run.Forecast.Records),
		"warnings", len(warnings),
	)

	return nil
}

// compute loads and validates the inputs and derives the run id
func (s *Scheduler) compute() (*interfaces.Run, error) {
	taxonomy, assumptions, err := s.source.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load inputs: %w", err)
	}

	if err := s.engines.Validator.ValidateTaxonomy(taxonomy); err != nil {
		return nil, err
	}
	s.logCoverage(taxonomy, assumptions)

	id, err := data.ComputeRunID(taxonomy, assumptions, s.opts.HorizonYears, s.opts.Fingerprint)
	if err != nil {
		return nil, err
	}

	return &interfaces.Run{ID: id, Taxonomy: taxonomy, Assumptions: assumptions}, nil
}

// execute runs allocation, dosing and the forecast for a loaded run
func (s *Scheduler) execute(run *interfaces.Run) error {
	allocation, err := s.engines.Allocator.Allocate(run.Taxonomy, run.Assumptions)
	if err != nil {
		return fmt.Errorf("allocation failed: %w", err)
	}

	demand, err := s.engines.Calculator.CalculateDemand(run.Taxonomy, allocation, run.Assumptions)
	if err != nil {
		return fmt.Errorf("demand calculation failed: %w", err)
	}

	forecast, err := s.engines.Forecaster.Forecast(run.Taxonomy, run.Assumptions, s.opts.HorizonYears)
	if err != nil {
		return fmt.Errorf("forecast failed: %w", err)
	}

	run.Allocation = allocation
	run.Demand = demand
	run.Forecast = forecast
	run.ComputedAt = time.Now()
	return nil
}

// logCoverage reports taxonomy values and share keys that do not line up
func (s *Scheduler) logCoverage(taxonomy entities.Taxonomy, assumptions entities.Assumptions) {
	report := s.engines.Validator.ReportCoverage(taxonomy, assumptions)

	if len(report.DimensionsWithoutShares) > 0 {
		logging.Warn("Dimensions without shares, equal split will apply",
			"dimensions", report.DimensionsWithoutShares,
		)
	}
	for dimension, keys := range report.MissingShareKeys {
		logging.Warn("Taxonomy values without shares",
			"dimension", dimension,
			"count", len(keys),
			"values", keys,
		)
	}
	for dimension, keys := range report.UnusedShareKeys {
		logging.Debug("Share keys not used by the taxonomy",
			"dimension", dimension,
			"keys", keys,
		)
	}
}

func runWarnings(run *interfaces.Run) []entities.Warning {
	var warnings []entities.Warning
	warnings = append(warnings, run.Allocation.Warnings...)
	warnings = append(warnings, run.Demand.Warnings...)
	warnings = append(warnings, run.Forecast.Warnings...)
	return warnings
}

// startHealthMonitoring warns when the run has not been refreshed for two intervals
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				lastUpdate := s.store.GetLastUpdated()
				if time.Since(lastUpdate) > 2*s.opts.Interval {
					logging.Warn("Forecast run is stale", "last_update", lastUpdate.Format(time.RFC3339))
				}
			}
		}
	}()
}
