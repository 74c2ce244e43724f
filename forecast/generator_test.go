package forecast

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/giygas/regimen-forecast/allocation"
	"github.com/giygas/regimen-forecast/config"
	"github.com/giygas/regimen-forecast/dosing"
	"github.com/giygas/regimen-forecast/entities"
	"github.com/giygas/regimen-forecast/validation"
)

func ptr(v float64) *float64 {
	return &v
}

func newTestGenerator() *Generator {
	cfg := config.DefaultEngineConfig()
	engine := allocation.NewEngine(cfg, validation.NewShareValidator(cfg))
	return NewGenerator(engine, dosing.NewCalculator())
}

func testTaxonomy() entities.Taxonomy {
	dose := entities.DoseSchema{
		Type:         entities.DoseMgPerKg,
		Maintenance:  entities.Dose{Value: 6, Unit: "mg/kg"},
		IntervalDays: 21,
	}
	return entities.Taxonomy{Nodes: []entities.TreatmentNode{
		{NodeID: "early", Setting: "early", Line: "1L", Regimen: "trastuzumab", Route: entities.RouteIV, Dose: dose},
		{NodeID: "late", Setting: "metastatic", Line: "1L", Regimen: "trastuzumab", Route: entities.RouteIV, Dose: dose},
	}}
}

func testAssumptions() entities.Assumptions {
	return entities.Assumptions{
		BaseYear:              2025,
		Incidence:             100_000,
		TreatedRate:           0.8,
		SettingShares:         map[string]float64{"early": 0.6, "metastatic": 0.4},
		LineShares:            map[string]float64{"1L": 1.0},
		TimeOnTreatmentMonths: map[string]float64{"1L": 12},
		AvgWeightKg:           70,
		RelativeDoseIntensity: 1.0,
		VialSizes:             map[entities.Route][]float64{entities.RouteIV: {150, 420}},
		Scenarios: map[string]entities.Scenario{
			"base": {CAGR: 0.01},
			"high": {CAGR: 0.02, TreatedRateMultiplier: ptr(1.1), ToTMultiplier: ptr(1.1)},
		},
	}
}

func TestScaleAssumptions_Compounding(t *testing.T) {
	base := testAssumptions()

	scaled, warnings := ScaleAssumptions(base, entities.Scenario{CAGR: 0.01}, 5)
	if len(warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", warnings)
	}
	if math.Abs(scaled.Incidence-105_101) > 1 {
		t.Errorf("Expected year-5 incidence ~105101, got %f", scaled.Incidence)
	}
	if scaled.BaseYear != 2030 {
		t.Errorf("Expected year 2030, got %d", scaled.BaseYear)
	}

	// the base assumptions are never modified
	if base.Incidence != 100_000 {
		t.Errorf("Base incidence modified: %f", base.Incidence)
	}
}

func TestScaleAssumptions_Multipliers(t *testing.T) {
	base := testAssumptions()

	scaled, _ := ScaleAssumptions(base, entities.Scenario{TreatedRateMultiplier: ptr(0.9), ToTMultiplier: ptr(0.5)}, 0)
	if math.Abs(scaled.TreatedRate-0.72) > 1e-9 {
		t.Errorf("Expected treated rate 0.72, got %f", scaled.TreatedRate)
	}
	if scaled.TimeOnTreatmentMonths["1L"] != 6 {
		t.Errorf("Expected 6 months, got %f", scaled.TimeOnTreatmentMonths["1L"])
	}
	if base.TimeOnTreatmentMonths["1L"] != 12 {
		t.Errorf("Base time on treatment modified: %f", base.TimeOnTreatmentMonths["1L"])
	}

	scaled, warnings := ScaleAssumptions(base, entities.Scenario{TreatedRateMultiplier: ptr(1.1), AdoptionMultiplier: ptr(1.5)}, 0)
	if scaled.TreatedRate != 1.0 {
		t.Errorf("Expected treated rate clamped to 1.0, got %f", scaled.TreatedRate)
	}
	if len(warnings) != 1 || warnings[0].Code != entities.WarnTreatedRateClamped {
		t.Errorf("Expected clamp warning, got %v", warnings)
	}
}

func TestScaleAssumptions_ZeroMultiplier(t *testing.T) {
	base := testAssumptions()

	scaled, warnings := ScaleAssumptions(base, entities.Scenario{AdoptionMultiplier: ptr(0)}, 0)
	if scaled.TreatedRate != 0 {
		t.Errorf("Expected zero adoption to zero the treated rate, got %f", scaled.TreatedRate)
	}
	if len(warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", warnings)
	}

	scaled, _ = ScaleAssumptions(base, entities.Scenario{}, 0)
	if scaled.TreatedRate != base.TreatedRate || scaled.TimeOnTreatmentMonths["1L"] != 12 {
		t.Errorf("Unset multipliers should be neutral, got rate %f", scaled.TreatedRate)
	}
}

func TestForecast(t *testing.T) {
	result, err := newTestGenerator().Forecast(testTaxonomy(), testAssumptions(), 5)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	if !reflect.DeepEqual(result.Scenarios, []string{"base", "high"}) {
		t.Errorf("Expected sorted scenarios, got %v", result.Scenarios)
	}
	// 2 scenarios x 6 years x 2 nodes
	if len(result.Records) != 24 {
		t.Fatalf("Expected 24 records, got %d", len(result.Records))
	}
	if len(result.Summaries) != 12 {
		t.Fatalf("Expected 12 summaries, got %d", len(result.Summaries))
	}

	first := result.Summaries[0]
	if first.Scenario != "base" || first.Year != 2025 || first.YearOffset != 0 {
		t.Errorf("Unexpected first summary: %+v", first)
	}
	if math.Abs(first.TreatedPatients-80_000) > 1e-6 {
		t.Errorf("Expected 80000 treated patients in year 0, got %f", first.TreatedPatients)
	}

	last := result.Summaries[5]
	if last.Year != 2030 || math.Abs(last.BasePool-100_000*math.Pow(1.01, 5)) > 1e-6 {
		t.Errorf("Expected compounded base pool in 2030, got %+v", last)
	}

	for _, s := range result.Summaries {
		if math.Abs(s.ConservationRatio-1.0) > 0.01 {
			t.Errorf("Scenario %s year %d: conservation ratio %f", s.Scenario, s.Year, s.ConservationRatio)
		}
	}

	high := result.Summaries[6]
	if high.Scenario != "high" || math.Abs(high.TreatedPool-88_000) > 1e-6 {
		t.Errorf("Expected high scenario treated pool 88000, got %+v", high)
	}
}

func TestForecast_YearsIndependent(t *testing.T) {
	gen := newTestGenerator()
	a := testAssumptions()

	long, err := gen.Forecast(testTaxonomy(), a, 5)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	short, err := gen.Forecast(testTaxonomy(), a, 2)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	// year 2 is identical whatever the horizon
	if !reflect.DeepEqual(long.Summaries[2], short.Summaries[2]) {
		t.Errorf("Year 2 differs between horizons: %+v vs %+v", long.Summaries[2], short.Summaries[2])
	}

	again, err := gen.Forecast(testTaxonomy(), a, 5)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	if !reflect.DeepEqual(long, again) {
		t.Error("Expected identical forecasts for identical inputs")
	}
}

func TestForecast_DefaultScenario(t *testing.T) {
	a := testAssumptions()
	a.Scenarios = nil

	result, err := newTestGenerator().Forecast(testTaxonomy(), a, 0)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	if !reflect.DeepEqual(result.Scenarios, []string{DefaultScenario}) {
		t.Errorf("Expected default scenario, got %v", result.Scenarios)
	}
	if len(result.Records) != 2 {
		t.Errorf("Expected 2 records, got %d", len(result.Records))
	}
}

func TestForecast_Errors(t *testing.T) {
	gen := newTestGenerator()

	for _, horizon := range []int{-1, MaxHorizonYears + 1} {
		if _, err := gen.Forecast(testTaxonomy(), testAssumptions(), horizon); !errors.Is(err, ErrInvalidHorizon) {
			t.Errorf("Horizon %d: expected ErrInvalidHorizon, got: %v", horizon, err)
		}
	}

	a := testAssumptions()
	a.SettingShares = map[string]float64{"early": 0.9, "metastatic": 0.9}
	if _, err := gen.Forecast(testTaxonomy(), a, 1); !errors.Is(err, validation.ErrInvalidShares) {
		t.Errorf("Expected ErrInvalidShares, got: %v", err)
	}

	for _, rate := range []float64{1.5, -0.1, math.NaN()} {
		a := testAssumptions()
		a.TreatedRate = rate
		result, err := gen.Forecast(testTaxonomy(), a, 1)
		if !errors.Is(err, validation.ErrInvalidRate) {
			t.Errorf("Treated rate %g: expected ErrInvalidRate, got: %v", rate, err)
		}
		if result != nil {
			t.Errorf("Treated rate %g: expected no result", rate)
		}
	}
}

func TestForecast_ScenarioPushesRateOverOne(t *testing.T) {
	gen := newTestGenerator()

	a := testAssumptions()
	a.TreatedRate = 0.95
	a.Scenarios = map[string]entities.Scenario{"high": {TreatedRateMultiplier: ptr(1.2)}}

	result, err := gen.Forecast(testTaxonomy(), a, 0)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	if len(result.Warnings) == 0 || result.Warnings[0].Code != entities.WarnTreatedRateClamped {
		t.Errorf("Expected clamp warning, got %v", result.Warnings)
	}
	if math.Abs(result.Summaries[0].TreatedPool-100_000) > 1e-6 {
		t.Errorf("Expected treated pool clamped to the full base pool, got %f", result.Summaries[0].TreatedPool)
	}
}
