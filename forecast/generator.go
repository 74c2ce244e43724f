// Package forecast projects allocation and demand over named scenarios and
// a horizon of years. Every (scenario, year) pair is recomputed from the
// base assumptions so no year depends on another.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/giygas/regimen-forecast/entities"
	"github.com/giygas/regimen-forecast/interfaces"
	"github.com/giygas/regimen-forecast/logging"
	"github.com/giygas/regimen-forecast/validation"
)

// MaxHorizonYears bounds the number of projected years
const MaxHorizonYears = 50

// DefaultScenario is used when the assumptions name no scenario
const DefaultScenario = "base"

var ErrInvalidHorizon = errors.New("invalid forecast horizon")

// Compile-time check to ensure Generator implements Forecaster
var _ interfaces.Forecaster = (*Generator)(nil)

// Generator runs the allocation engine and dose calculator once per scenario-year
type Generator struct {
	allocator  interfaces.Allocator
	calculator interfaces.DoseCalculator
}

// NewGenerator creates a forecast generator with injected dependencies
func NewGenerator(allocator interfaces.Allocator, calculator interfaces.DoseCalculator) *Generator {
	return &Generator{allocator: allocator, calculator: calculator}
}

// ScaleAssumptions returns a copy of base adjusted for one scenario at year offset t
func ScaleAssumptions(base entities.Assumptions, scenario entities.Scenario, t int) (entities.Assumptions, []entities.Warning) {
	scaled := base.Clone()
	var warnings []entities.Warning

	growth := math.Pow(1+scenario.CAGR, float64(t))
	scaled.Incidence = base.Incidence * growth
	scaled.Prevalence = base.Prevalence * growth

	scaled.TreatedRate = base.TreatedRate * scenario.RateFactor()
	if scaled.TreatedRate > 1.0 {
		warnings = append(warnings, entities.Warning{
			Code:    entities.WarnTreatedRateClamped,
			Message: fmt.Sprintf("scaled treated rate %.4f clamped to 1.0", scaled.TreatedRate),
		})
		scaled.TreatedRate = 1.0
	}

	factor := scenario.ToTFactor()
	for line, months := range scaled.TimeOnTreatmentMonths {
		scaled.TimeOnTreatmentMonths[line] = months * factor
	}

	scaled.BaseYear = base.BaseYear + t

	return scaled, warnings
}

// scenarioResult is the output of one scenario across every year
type scenarioResult struct {
	records   []entities.ForecastRecord
	summaries []entities.ForecastSummary
	warnings  []entities.Warning
	err       error
}

// Forecast projects every scenario over year offsets 0..horizonYears.
// Scenarios run concurrently; results are merged in scenario name order.
func (g *Generator) Forecast(taxonomy entities.Taxonomy, base entities.Assumptions, horizonYears int) (*entities.ForecastResult, error) {
	if horizonYears < 0 || horizonYears > MaxHorizonYears {
		return nil, fmt.Errorf("%w: %d years (must be between 0 and %d)", ErrInvalidHorizon, horizonYears, MaxHorizonYears)
	}

	// Scaling clamps rates pushed over 1 by a scenario; the base rate itself must be valid
	if math.IsNaN(base.TreatedRate) || base.TreatedRate < 0 || base.TreatedRate > 1 {
		return nil, fmt.Errorf("%w: treated_rate must be between 0 and 1, got: %g", validation.ErrInvalidRate, base.TreatedRate)
	}

	start := time.Now()

	scenarios := base.Scenarios
	if len(scenarios) == 0 {
		scenarios = map[string]entities.Scenario{DefaultScenario: {}}
	}

	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	slices.Sort(names)

	results := make([]scenarioResult, len(names))
	var wg sync.WaitGroup

	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = g.runScenario(taxonomy, base, name, scenarios[name], horizonYears)
		}()
	}
	wg.Wait()

	out := &entities.ForecastResult{HorizonYears: horizonYears, Scenarios: names}
	seen := map[entities.Warning]bool{}

	for i, res := range results {
		if res.err != nil {
			return nil, fmt.Errorf("scenario %s: %w", names[i], res.err)
		}
		out.Records = append(out.Records, res.records...)
		out.Summaries = append(out.Summaries, res.summaries...)
		for _, w := range res.warnings {
			if !seen[w] {
				seen[w] = true
				out.Warnings = append(out.Warnings, w)
			}
		}
	}

	logging.Info("Forecast completed",
		"scenarios", len(names),
		"horizon_years", horizonYears,
		"records", len(out.Records),
		"warnings", len(out.Warnings),
		"duration", time.Since(start),
	)

	return out, nil
}

func (g *Generator) runScenario(taxonomy entities.Taxonomy, base entities.Assumptions, name string, scenario entities.Scenario, horizonYears int) scenarioResult {
	var res scenarioResult

	for t := 0; t <= horizonYears; t++ {
		scaled, warnings := ScaleAssumptions(base, scenario, t)
		res.warnings = append(res.warnings, warnings...)

		allocation, err := g.allocator.Allocate(taxonomy, scaled)
		if err != nil {
			res.err = fmt.Errorf("year offset %d: %w", t, err)
			return res
		}
		res.warnings = append(res.warnings, allocation.Warnings...)

		demand, err := g.calculator.CalculateDemand(taxonomy, allocation, scaled)
		if err != nil {
			res.err = fmt.Errorf("year offset %d: %w", t, err)
			return res
		}
		res.warnings = append(res.warnings, demand.Warnings...)

		summary := entities.ForecastSummary{
			Scenario:            name,
			Year:                scaled.BaseYear,
			YearOffset:          t,
			BasePool:            allocation.BasePool,
			TreatedPool:         allocation.TreatedPool,
			AdministeredMgTotal: demand.TotalAdministeredMg,
			DispensedMgTotal:    demand.TotalDispensedMg,
			ConservationRatio:   allocation.ConservationRatio,
		}

		for _, node := range demand.Nodes {
			res.records = append(res.records, entities.ForecastRecord{
				Scenario:                     name,
				Year:                         scaled.BaseYear,
				YearOffset:                   t,
				NodeID:                       node.NodeID,
				Regimen:                      node.Regimen,
				Route:                        node.Route,
				TreatedPatients:              node.TreatedPatients,
				PatientYears:                 node.PatientYears,
				AdministeredMgPerPatientYear: node.AdministeredMgPerPatientYear,
				DispensedMgPerPatientYear:    node.DispensedMgPerPatientYear,
				AdministeredMgTotal:          node.AdministeredMgTotal,
				DispensedMgTotal:             node.DispensedMgTotal,
			})
			summary.TreatedPatients += node.TreatedPatients
			summary.PatientYears += node.PatientYears
		}

		res.summaries = append(res.summaries, summary)
	}

	return res
}
