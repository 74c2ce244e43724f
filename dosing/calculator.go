// Package dosing converts allocated cohorts into administered and dispensed
// drug quantities.
package dosing

import (
	"errors"
	"fmt"
	"math"

	"github.com/giygas/regimen-forecast/entities"
	"github.com/giygas/regimen-forecast/interfaces"
	"github.com/giygas/regimen-forecast/logging"
)

var (
	ErrInvalidDose     = errors.New("invalid dose")
	ErrInvalidInterval = errors.New("invalid dosing interval")
)

// Compile-time check to ensure Calculator implements DoseCalculator
var _ interfaces.DoseCalculator = (*Calculator)(nil)

// Administration is the resolved dosing of one regimen for one patient-year
type Administration struct {
	DoseType               entities.DoseType
	IntervalDays           float64
	PerAdministrationMg    float64
	LoadingMg              float64
	LoadingRepeats         int
	MaintenancePerYear     float64
	AdministrationsPerYear float64
	AnnualMg               float64
	Warnings               []entities.Warning
}

// Calculator is the dose/exposure calculator
type Calculator struct{}

// NewCalculator creates a dose calculator
func NewCalculator() *Calculator {
	return &Calculator{}
}

// resolveDoseType corrects a declared type that disagrees with the unit text
func resolveDoseType(node entities.TreatmentNode) (entities.DoseType, []entities.Warning) {
	declared := node.Dose.Type
	implied, ok := ClassifyUnit(node.Dose.Maintenance.Unit)

	if !ok {
		if declared == "" || declared == entities.DoseOther {
			return entities.DoseFixedMg, nil
		}
		return declared, nil
	}

	if declared != "" && declared != implied {
		return implied, []entities.Warning{{
			Code:    entities.WarnDoseTypeCorrected,
			Subject: node.NodeID,
			Message: fmt.Sprintf("dose type %s corrected to %s to match unit %q", declared, implied, node.Dose.Maintenance.Unit),
		}}
	}
	return implied, nil
}

// resolveInterval returns the maintenance interval, preferring a note-derived
// interval when it diverges enough from the declared one.
func resolveInterval(node entities.TreatmentNode) (float64, []entities.Warning, error) {
	declared := node.Dose.IntervalDays
	inferred, found := InferInterval(node.Dose.Notes)

	if declared <= 0 || math.IsNaN(declared) {
		if !found {
			return 0, nil, fmt.Errorf("%w: node %s declares %g days and its notes name no interval", ErrInvalidInterval, node.NodeID, declared)
		}
		return inferred.Days, []entities.Warning{{
			Code:    entities.WarnIntervalOverride,
			Subject: node.NodeID,
			Message: fmt.Sprintf("declared interval %g days replaced by %g days from notes (%q)", declared, inferred.Days, inferred.Match),
		}}, nil
	}

	if found && math.Abs(inferred.Days-declared) > overrideThreshold(inferred.Pattern) {
		return inferred.Days, []entities.Warning{{
			Code:    entities.WarnIntervalOverride,
			Subject: node.NodeID,
			Message: fmt.Sprintf("declared interval %g days replaced by %g days from notes (%q)", declared, inferred.Days, inferred.Match),
		}}, nil
	}

	return declared, nil, nil
}

// AdministeredDose computes the administered mg per patient-year of a regimen,
// loading doses and relative dose intensity included.
func (c *Calculator) AdministeredDose(node entities.TreatmentNode, assumptions entities.Assumptions) (*Administration, error) {
	maintenance := node.Dose.Maintenance
	if math.IsNaN(maintenance.Value) || math.IsInf(maintenance.Value, 0) || maintenance.Value < 0 {
		return nil, fmt.Errorf("%w: node %s has maintenance dose %g", ErrInvalidDose, node.NodeID, maintenance.Value)
	}
	rdi := assumptions.RelativeDoseIntensity
	if math.IsNaN(rdi) || rdi < 0 {
		return nil, fmt.Errorf("%w: relative dose intensity %g", ErrInvalidDose, rdi)
	}

	admin := &Administration{}

	weight := assumptions.AvgWeightKg
	if weight <= 0 || math.IsNaN(weight) {
		weight = DefaultWeightKg
		admin.Warnings = append(admin.Warnings, entities.Warning{
			Code:    entities.WarnDefaultWeight,
			Subject: node.NodeID,
			Message: fmt.Sprintf("average weight missing, using %.0f kg", DefaultWeightKg),
		})
	}

	doseType, warnings := resolveDoseType(node)
	admin.DoseType = doseType
	admin.Warnings = append(admin.Warnings, warnings...)

	interval, warnings, err := resolveInterval(node)
	if err != nil {
		return nil, err
	}
	admin.IntervalDays = interval
	admin.Warnings = append(admin.Warnings, warnings...)

	admin.PerAdministrationMg = perAdministration(doseType, maintenance.Value, maintenance.Unit, weight)
	admin.MaintenancePerYear = 365.0 / interval

	if loading := node.Dose.Loading; loading != nil {
		if math.IsNaN(loading.Value) || loading.Value < 0 || loading.Repeats < 0 {
			return nil, fmt.Errorf("%w: node %s has an invalid loading dose", ErrInvalidDose, node.NodeID)
		}
		loadingType, ok := ClassifyUnit(loading.Unit)
		if !ok {
			loadingType = doseType
		}
		repeats := loading.Repeats
		if repeats == 0 {
			repeats = 1
		}
		admin.LoadingRepeats = repeats
		admin.LoadingMg = perAdministration(loadingType, loading.Value, loading.Unit, weight) * float64(repeats)
	}

	admin.AdministrationsPerYear = admin.MaintenancePerYear + float64(admin.LoadingRepeats)
	admin.AnnualMg = (admin.LoadingMg + admin.PerAdministrationMg*admin.MaintenancePerYear) * rdi

	return admin, nil
}

// DispensedDose rounds the average administration up to the route's vial
// sizes and returns the dispensed mg per patient-year.
func (c *Calculator) DispensedDose(node entities.TreatmentNode, assumptions entities.Assumptions, administered *Administration) float64 {
	if administered == nil || administered.AdministrationsPerYear <= 0 {
		return 0
	}

	average := administered.AnnualMg / administered.AdministrationsPerYear
	return RoundToVials(average, assumptions.VialSizes[node.Route]) * administered.AdministrationsPerYear
}

// CalculateDemand computes per-node and total demand for an allocation
func (c *Calculator) CalculateDemand(taxonomy entities.Taxonomy, allocation *entities.AllocationResult, assumptions entities.Assumptions) (*entities.DemandResult, error) {
	if allocation == nil {
		return nil, fmt.Errorf("%w: no allocation to compute demand for", ErrInvalidDose)
	}

	leaves := make(map[string]entities.LeafCohort, len(allocation.LeafCohorts))
	for _, leaf := range allocation.LeafCohorts {
		leaves[leaf.NodeID] = leaf
	}

	result := &entities.DemandResult{Nodes: make([]entities.DemandNode, 0, len(taxonomy.Nodes))}

	for _, node := range taxonomy.Nodes {
		admin, err := c.AdministeredDose(node, assumptions)
		if err != nil {
			return nil, err
		}
		dispensed := c.DispensedDose(node, assumptions, admin)
		leaf := leaves[node.NodeID]

		demand := entities.DemandNode{
			NodeID:                       node.NodeID,
			Regimen:                      node.Regimen,
			Route:                        node.Route,
			DoseType:                     admin.DoseType,
			IntervalDays:                 admin.IntervalDays,
			AdministrationsPerYear:       admin.AdministrationsPerYear,
			TreatedPatients:              leaf.Patients,
			PatientYears:                 leaf.PatientYears,
			AdministeredMgPerPatientYear: admin.AnnualMg,
			DispensedMgPerPatientYear:    dispensed,
			AdministeredMgTotal:          admin.AnnualMg * leaf.PatientYears,
			DispensedMgTotal:             dispensed * leaf.PatientYears,
		}

		result.Nodes = append(result.Nodes, demand)
		result.TotalAdministeredMg += demand.AdministeredMgTotal
		result.TotalDispensedMg += demand.DispensedMgTotal
		result.Warnings = append(result.Warnings, admin.Warnings...)
	}

	logging.Debug("Demand computed",
		"nodes", len(result.Nodes),
		"administered_mg", result.TotalAdministeredMg,
		"dispensed_mg", result.TotalDispensedMg,
		"warnings", len(result.Warnings),
	)

	return result, nil
}
