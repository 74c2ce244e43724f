// Package allocation distributes a treated population over the leaf cohorts
// of a treatment taxonomy. Every unit of treated population flows through
// exactly one subtype → setting → line → regimen path, and each decision
// is recorded in the cohort's trace.
package allocation

import (
	"errors"
	"fmt"
	"math"

	"github.com/giygas/regimen-forecast/config"
	"github.com/giygas/regimen-forecast/entities"
	"github.com/giygas/regimen-forecast/interfaces"
	"github.com/giygas/regimen-forecast/logging"
)

var (
	ErrAmbiguousRegimenSplit  = errors.New("ambiguous regimen split")
	ErrInvalidTimeOnTreatment = errors.New("invalid time on treatment")
)

// Compile-time check to ensure Engine implements Allocator
var _ interfaces.Allocator = (*Engine)(nil)

// Engine is the cohort allocation engine. It holds no mutable state, so a
// single Engine can serve concurrent Allocate calls.
type Engine struct {
	cfg       config.EngineConfig
	validator interfaces.ShareValidator
}

// NewEngine creates an allocation engine with injected dependencies
func NewEngine(cfg config.EngineConfig, validator interfaces.ShareValidator) *Engine {
	return &Engine{cfg: cfg, validator: validator}
}

// Allocate runs one allocation pass over the taxonomy
func (e *Engine) Allocate(taxonomy entities.Taxonomy, assumptions entities.Assumptions) (*entities.AllocationResult, error) {
	result := &entities.AllocationResult{}

	basePool, source, warnings, err := e.selectBasePool(assumptions)
	if err != nil {
		return nil, err
	}
	result.BasePool = basePool
	result.PopulationSource = source
	result.Warnings = append(result.Warnings, warnings...)

	if err := e.validator.ValidateRate("treated_rate", assumptions.TreatedRate); err != nil {
		return nil, err
	}
	result.TreatedPool = basePool * assumptions.TreatedRate

	if err := validateTimeOnTreatment(assumptions.TimeOnTreatmentMonths); err != nil {
		return nil, err
	}

	groups, present := groupByPath(taxonomy.Nodes)

	factors := make(map[string]*dimensionShares, len(entities.Dimensions))
	for _, dimension := range entities.Dimensions {
		if !present[dimension] {
			continue
		}
		shares, err := e.resolveDimension(dimension, groups, assumptions.SharesFor(dimension))
		if err != nil {
			return nil, err
		}
		factors[dimension] = shares
		result.Warnings = append(result.Warnings, shares.warnings...)
	}

	if assumptions.RegimenShares != nil {
		if err := e.validator.ValidateShareValues(entities.DimensionRegimen, assumptions.RegimenShares); err != nil {
			return nil, err
		}
	}

	for _, group := range groups {
		population := result.TreatedPool
		trace := []entities.TraceStep{{
			Dimension:        "treated_pool",
			ShareKey:         source,
			ShareValue:       assumptions.TreatedRate,
			PopulationBefore: basePool,
			PopulationAfter:  population,
		}}

		for _, dimension := range entities.Dimensions {
			shares, ok := factors[dimension]
			if !ok {
				continue
			}
			key := group.path.Value(dimension)
			share := shares.values[key]
			next := population * share
			trace = append(trace, entities.TraceStep{
				Dimension:        dimension,
				ShareKey:         key,
				ShareValue:       share,
				PopulationBefore: population,
				PopulationAfter:  next,
			})
			population = next
		}

		regimenShares, warnings, err := e.splitRegimens(group, assumptions.RegimenShares)
		if err != nil {
			return nil, err
		}
		result.Warnings = append(result.Warnings, warnings...)

		for i, node := range group.nodes {
			share := regimenShares[i]
			patients := population * share
			steps := append(make([]entities.TraceStep, 0, len(trace)+1), trace...)
			steps = append(steps, entities.TraceStep{
				Dimension:        entities.DimensionRegimen,
				ShareKey:         node.Regimen,
				ShareValue:       share,
				PopulationBefore: population,
				PopulationAfter:  patients,
			})

			result.LeafCohorts = append(result.LeafCohorts, entities.LeafCohort{
				NodeID:       node.NodeID,
				Path:         group.path,
				Regimen:      node.Regimen,
				Patients:     patients,
				PatientYears: patients * yearFraction(node.Line, assumptions.TimeOnTreatmentMonths),
				Trace:        steps,
			})
		}
	}

	result.ConservationRatio = conservationRatio(result.TotalPatients(), result.TreatedPool)
	if math.Abs(result.ConservationRatio-1.0) > e.cfg.ConservationTolerance {
		result.Warnings = append(result.Warnings, entities.Warning{
			Code:    entities.WarnConservationDrift,
			Message: fmt.Sprintf("allocated patients are %.4f of the treated pool (tolerance %.4f)", result.ConservationRatio, e.cfg.ConservationTolerance),
		})
	}

	result.Rollups = buildRollups(result.LeafCohorts)

	logging.Debug("Allocation completed",
		"indication", taxonomy.Indication,
		"base_pool", result.BasePool,
		"treated_pool", result.TreatedPool,
		"leaf_cohorts", len(result.LeafCohorts),
		"conservation_ratio", result.ConservationRatio,
		"warnings", len(result.Warnings),
	)

	return result, nil
}

// selectBasePool picks the base population according to the population mode
func (e *Engine) selectBasePool(a entities.Assumptions) (float64, string, []entities.Warning, error) {
	prevalenceWarnings, err := e.validator.ValidatePopulation("prevalence", a.Prevalence)
	if err != nil {
		return 0, "", nil, err
	}
	incidenceWarnings, err := e.validator.ValidatePopulation("incidence", a.Incidence)
	if err != nil {
		return 0, "", nil, err
	}

	switch e.cfg.PopulationMode {
	case entities.PopulationPrevalence:
		return a.Prevalence, "prevalence", prevalenceWarnings, nil
	case entities.PopulationIncidence:
		return a.Incidence, "incidence", incidenceWarnings, nil
	}

	switch {
	case a.Prevalence > 0:
		return a.Prevalence, "prevalence", prevalenceWarnings, nil
	case a.Incidence > 0:
		return a.Incidence, "incidence", incidenceWarnings, nil
	}

	return 0, "none", []entities.Warning{{
		Code:    entities.WarnBasePopulationAbsent,
		Message: "neither prevalence nor incidence is positive, base population is 0",
	}}, nil
}

func validateTimeOnTreatment(months map[string]float64) error {
	for line, value := range months {
		if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
			return fmt.Errorf("%w: line %q has %g months", ErrInvalidTimeOnTreatment, line, value)
		}
	}
	return nil
}

// yearFraction converts a line's time on treatment into patient-years per patient
func yearFraction(line string, months map[string]float64) float64 {
	if value, ok := months[line]; ok && line != "" {
		return value / 12.0
	}
	return 1.0
}

func conservationRatio(allocated, treatedPool float64) float64 {
	if treatedPool == 0 {
		if allocated == 0 {
			return 1.0
		}
		return math.Inf(1)
	}
	return allocated / treatedPool
}
