package dosing

import (
	"errors"
	"math"
	"testing"

	"github.com/giygas/regimen-forecast/entities"
)

func near(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func trastuzumab() entities.TreatmentNode {
	return entities.TreatmentNode{
		NodeID:  "her2-met-1l-tras",
		Line:    "1L",
		Regimen: "trastuzumab",
		Route:   entities.RouteIV,
		Dose: entities.DoseSchema{
			Type:         entities.DoseMgPerKg,
			Maintenance:  entities.Dose{Value: 6, Unit: "mg/kg"},
			IntervalDays: 21,
		},
	}
}

func baseAssumptions() entities.Assumptions {
	return entities.Assumptions{
		AvgWeightKg:           70,
		RelativeDoseIntensity: 1.0,
		VialSizes:             map[entities.Route][]float64{entities.RouteIV: {420, 150}},
	}
}

func hasWarning(warnings []entities.Warning, code string) bool {
	for _, w := range warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func TestAdministeredDose_MgPerKg(t *testing.T) {
	calc := NewCalculator()

	admin, err := calc.AdministeredDose(trastuzumab(), baseAssumptions())
	if err != nil {
		t.Fatalf("AdministeredDose failed: %v", err)
	}

	if !near(admin.PerAdministrationMg, 420, 1e-9) {
		t.Errorf("Expected 420 mg per administration, got %f", admin.PerAdministrationMg)
	}
	if !near(admin.MaintenancePerYear, 17.38, 0.01) {
		t.Errorf("Expected ~17.38 administrations, got %f", admin.MaintenancePerYear)
	}
	if !near(admin.AnnualMg, 7300, 1e-6) {
		t.Errorf("Expected ~7300 mg per year, got %f", admin.AnnualMg)
	}
	if len(admin.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", admin.Warnings)
	}
}

func TestAdministeredDose_DoseTypes(t *testing.T) {
	tests := []struct {
		name     string
		declared entities.DoseType
		value    float64
		unit     string
		wantType entities.DoseType
		wantMg   float64
		corrects bool
	}{
		{"fixed mg", entities.DoseFixedMg, 600, "mg", entities.DoseFixedMg, 600, false},
		{"grams scaled", entities.DoseFixedMg, 1, "g", entities.DoseFixedMg, 1000, false},
		{"micrograms scaled", entities.DoseFixedMg, 500, "µg", entities.DoseFixedMg, 0.5, false},
		{"mg per m2", entities.DoseMgPerM2, 100, "mg/m²", entities.DoseMgPerM2, 100 * BodySurfaceArea(70), false},
		{"fixed declared with kg unit", entities.DoseFixedMg, 8, "mg/kg", entities.DoseMgPerKg, 560, true},
		{"kg declared with m2 unit", entities.DoseMgPerKg, 75, "mg / m2", entities.DoseMgPerM2, 75 * BodySurfaceArea(70), true},
		{"non-mass unit per kg", entities.DoseMgPerKg, 2, "units/kg", entities.DoseMgPerKg, 140, false},
		{"other with unknown unit is fixed", entities.DoseOther, 3, "tablets", entities.DoseFixedMg, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := trastuzumab()
			node.Dose.Type = tt.declared
			node.Dose.Maintenance = entities.Dose{Value: tt.value, Unit: tt.unit}

			admin, err := NewCalculator().AdministeredDose(node, baseAssumptions())
			if err != nil {
				t.Fatalf("AdministeredDose failed: %v", err)
			}
			if admin.DoseType != tt.wantType {
				t.Errorf("Expected type %s, got %s", tt.wantType, admin.DoseType)
			}
			if !near(admin.PerAdministrationMg, tt.wantMg, 1e-9) {
				t.Errorf("Expected %f mg, got %f", tt.wantMg, admin.PerAdministrationMg)
			}
			if hasWarning(admin.Warnings, entities.WarnDoseTypeCorrected) != tt.corrects {
				t.Errorf("Expected correction warning %v, got %v", tt.corrects, admin.Warnings)
			}
		})
	}
}

func TestAdministeredDose_LoadingDose(t *testing.T) {
	node := trastuzumab()
	node.Dose.Loading = &entities.LoadingDose{Value: 8, Unit: "mg/kg", Repeats: 1}

	admin, err := NewCalculator().AdministeredDose(node, baseAssumptions())
	if err != nil {
		t.Fatalf("AdministeredDose failed: %v", err)
	}

	if !near(admin.LoadingMg, 560, 1e-9) {
		t.Errorf("Expected 560 mg loading, got %f", admin.LoadingMg)
	}
	if !near(admin.AnnualMg, 7300+560, 1e-6) {
		t.Errorf("Expected 7860 mg per year, got %f", admin.AnnualMg)
	}
	if !near(admin.AdministrationsPerYear, 365.0/21+1, 1e-9) {
		t.Errorf("Expected loading repeat counted as administration, got %f", admin.AdministrationsPerYear)
	}

	node.Dose.Loading = &entities.LoadingDose{Value: 840, Unit: "mg", Repeats: 0}
	admin, err = NewCalculator().AdministeredDose(node, baseAssumptions())
	if err != nil {
		t.Fatalf("AdministeredDose failed: %v", err)
	}
	if admin.LoadingRepeats != 1 || !near(admin.LoadingMg, 840, 1e-9) {
		t.Errorf("Expected a single fixed 840 mg loading dose, got %d x %f", admin.LoadingRepeats, admin.LoadingMg)
	}
}

func TestAdministeredDose_RelativeDoseIntensity(t *testing.T) {
	a := baseAssumptions()
	a.RelativeDoseIntensity = 0.9

	admin, err := NewCalculator().AdministeredDose(trastuzumab(), a)
	if err != nil {
		t.Fatalf("AdministeredDose failed: %v", err)
	}
	if !near(admin.AnnualMg, 7300*0.9, 1e-6) {
		t.Errorf("Expected 6570 mg per year, got %f", admin.AnnualMg)
	}
}

func TestAdministeredDose_DefaultWeight(t *testing.T) {
	a := baseAssumptions()
	a.AvgWeightKg = 0

	admin, err := NewCalculator().AdministeredDose(trastuzumab(), a)
	if err != nil {
		t.Fatalf("AdministeredDose failed: %v", err)
	}
	if !near(admin.PerAdministrationMg, 420, 1e-9) {
		t.Errorf("Expected 70 kg default, got %f mg", admin.PerAdministrationMg)
	}
	if !hasWarning(admin.Warnings, entities.WarnDefaultWeight) {
		t.Error("Expected default weight warning")
	}
}

func TestAdministeredDose_IntervalOverride(t *testing.T) {
	tests := []struct {
		name         string
		declared     float64
		notes        string
		wantInterval float64
		overridden   bool
	}{
		{"notes agree", 21, "6 mg/kg q3w", 21, false},
		{"maintenance every 3 months", 21, "Loading then maintenance every 3 months", 90, true},
		{"cycle pattern within one day", 10, "days 1 and 8 of a 21-day cycle", 10, false},
		{"cycle pattern beyond one day", 21, "Days 1 and 8 of a 21-day cycle", 10.5, true},
		{"code within seven days", 21, "q2w", 21, false},
		{"code beyond seven days", 7, "given q4w", 28, true},
		{"missing interval inferred", 0, "q3w", 21, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := trastuzumab()
			node.Dose.IntervalDays = tt.declared
			node.Dose.Notes = tt.notes

			admin, err := NewCalculator().AdministeredDose(node, baseAssumptions())
			if err != nil {
				t.Fatalf("AdministeredDose failed: %v", err)
			}
			if !near(admin.IntervalDays, tt.wantInterval, 1e-9) {
				t.Errorf("Expected interval %f, got %f", tt.wantInterval, admin.IntervalDays)
			}
			if hasWarning(admin.Warnings, entities.WarnIntervalOverride) != tt.overridden {
				t.Errorf("Expected override warning %v, got %v", tt.overridden, admin.Warnings)
			}
		})
	}
}

func TestAdministeredDose_Errors(t *testing.T) {
	t.Run("no interval", func(t *testing.T) {
		node := trastuzumab()
		node.Dose.IntervalDays = 0
		_, err := NewCalculator().AdministeredDose(node, baseAssumptions())
		if !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("Expected ErrInvalidInterval, got: %v", err)
		}
	})

	t.Run("negative dose", func(t *testing.T) {
		node := trastuzumab()
		node.Dose.Maintenance.Value = -6
		_, err := NewCalculator().AdministeredDose(node, baseAssumptions())
		if !errors.Is(err, ErrInvalidDose) {
			t.Errorf("Expected ErrInvalidDose, got: %v", err)
		}
	})
}

func TestDispensedDose(t *testing.T) {
	calc := NewCalculator()
	node := trastuzumab()
	node.Dose.Type = entities.DoseFixedMg
	node.Dose.Maintenance = entities.Dose{Value: 390, Unit: "mg"}

	admin, err := calc.AdministeredDose(node, baseAssumptions())
	if err != nil {
		t.Fatalf("AdministeredDose failed: %v", err)
	}

	dispensed := calc.DispensedDose(node, baseAssumptions(), admin)
	want := 420 * 365.0 / 21
	if !near(dispensed, want, 1e-6) {
		t.Errorf("Expected %f mg dispensed, got %f", want, dispensed)
	}

	// no vials for the route: no rounding
	node.Route = entities.RoutePO
	if got := calc.DispensedDose(node, baseAssumptions(), admin); !near(got, admin.AnnualMg, 1e-9) {
		t.Errorf("Expected unrounded %f, got %f", admin.AnnualMg, got)
	}
}

func TestCalculateDemand(t *testing.T) {
	oral := entities.TreatmentNode{
		NodeID:  "oral",
		Regimen: "capecitabine",
		Route:   entities.RoutePO,
		Dose: entities.DoseSchema{
			Type:         entities.DoseFixedMg,
			Maintenance:  entities.Dose{Value: 1000, Unit: "mg"},
			IntervalDays: 1,
		},
	}
	taxonomy := entities.Taxonomy{Nodes: []entities.TreatmentNode{trastuzumab(), oral}}
	allocation := &entities.AllocationResult{LeafCohorts: []entities.LeafCohort{
		{NodeID: "her2-met-1l-tras", Patients: 100, PatientYears: 50},
	}}

	result, err := NewCalculator().CalculateDemand(taxonomy, allocation, baseAssumptions())
	if err != nil {
		t.Fatalf("CalculateDemand failed: %v", err)
	}

	if len(result.Nodes) != 2 {
		t.Fatalf("Expected 2 demand nodes, got %d", len(result.Nodes))
	}
	first := result.Nodes[0]
	if !near(first.AdministeredMgTotal, 7300*50, 1e-6) {
		t.Errorf("Expected %f mg administered, got %f", 7300.0*50, first.AdministeredMgTotal)
	}
	if first.TreatedPatients != 100 {
		t.Errorf("Expected 100 patients, got %f", first.TreatedPatients)
	}
	if result.Nodes[1].AdministeredMgTotal != 0 {
		t.Errorf("Expected no demand for unallocated node, got %f", result.Nodes[1].AdministeredMgTotal)
	}
	if !near(result.TotalAdministeredMg, first.AdministeredMgTotal, 1e-9) {
		t.Errorf("Expected totals to fold node demand")
	}
	if result.TotalDispensedMg < result.TotalAdministeredMg {
		t.Errorf("Dispensed %f should not be below administered %f", result.TotalDispensedMg, result.TotalAdministeredMg)
	}

	if _, err := NewCalculator().CalculateDemand(taxonomy, nil, baseAssumptions()); !errors.Is(err, ErrInvalidDose) {
		t.Errorf("Expected ErrInvalidDose for nil allocation, got: %v", err)
	}
}
