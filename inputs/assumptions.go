package inputs

import (
	"maps"

	"github.com/giygas/regimen-forecast/entities"
)

// Default assumption values used when neither the assumptions file nor the
// overrides set them.
const (
	DefaultWeightKg              = 70.0
	DefaultTreatedRate           = 0.85
	DefaultRelativeDoseIntensity = 1.0
)

// Defaults returns the hard-coded assumption layer
func Defaults() entities.Assumptions {
	return entities.Assumptions{
		TreatedRate:           DefaultTreatedRate,
		AvgWeightKg:           DefaultWeightKg,
		RelativeDoseIntensity: DefaultRelativeDoseIntensity,
		VialSizes: map[entities.Route][]float64{
			entities.RouteIV: {100, 400},
			entities.RouteSC: {120, 600},
		},
		Scenarios: map[string]entities.Scenario{
			"base": {CAGR: 0},
			"low":  {CAGR: -0.01, TreatedRateMultiplier: floatPtr(0.9), ToTMultiplier: floatPtr(0.9)},
			"high": {CAGR: 0.02, TreatedRateMultiplier: floatPtr(1.1), ToTMultiplier: floatPtr(1.1)},
		},
	}
}

func floatPtr(v float64) *float64 {
	return &v
}

// assumptionLayer is one assumptions document. Pointer fields tell an
// absent value from an explicit zero.
type assumptionLayer struct {
	BaseYear              *int                         `json:"base_year"`
	Incidence             *float64                     `json:"incidence"`
	Prevalence            *float64                     `json:"prevalence"`
	TreatedRate           *float64                     `json:"treated_rate"`
	SubtypeShares         map[string]float64           `json:"subtype_shares"`
	SettingShares         map[string]float64           `json:"setting_shares"`
	StageShares           map[string]float64           `json:"stage_shares"`
	LineShares            map[string]float64           `json:"line_shares"`
	RegimenShares         map[string]float64           `json:"regimen_shares"`
	TimeOnTreatmentMonths map[string]float64           `json:"time_on_treatment_months"`
	AvgWeightKg           *float64                     `json:"avg_weight_kg"`
	RelativeDoseIntensity *float64                     `json:"relative_dose_intensity"`
	VialSizes             map[entities.Route][]float64 `json:"vial_sizes"`
	Scenarios             map[string]entities.Scenario `json:"scenarios"`
}

// applyTo overlays the layer onto a. Share maps are replaced whole;
// time on treatment, vial sizes and scenarios merge per key.
func (l *assumptionLayer) applyTo(a *entities.Assumptions) {
	if l.BaseYear != nil {
		a.BaseYear = *l.BaseYear
	}
	if l.Incidence != nil {
		a.Incidence = *l.Incidence
	}
	if l.Prevalence != nil {
		a.Prevalence = *l.Prevalence
	}
	if l.TreatedRate != nil {
		a.TreatedRate = *l.TreatedRate
	}
	if l.AvgWeightKg != nil {
		a.AvgWeightKg = *l.AvgWeightKg
	}
	if l.RelativeDoseIntensity != nil {
		a.RelativeDoseIntensity = *l.RelativeDoseIntensity
	}

	if l.SubtypeShares != nil {
		a.SubtypeShares = maps.Clone(l.SubtypeShares)
	}
	if l.SettingShares != nil {
		a.SettingShares = maps.Clone(l.SettingShares)
	}
	if l.StageShares != nil {
		a.StageShares = maps.Clone(l.StageShares)
	}
	if l.LineShares != nil {
		a.LineShares = maps.Clone(l.LineShares)
	}
	if l.RegimenShares != nil {
		a.RegimenShares = maps.Clone(l.RegimenShares)
	}

	if l.TimeOnTreatmentMonths != nil {
		if a.TimeOnTreatmentMonths == nil {
			a.TimeOnTreatmentMonths = make(map[string]float64, len(l.TimeOnTreatmentMonths))
		}
		maps.Copy(a.TimeOnTreatmentMonths, l.TimeOnTreatmentMonths)
	}
	if l.VialSizes != nil {
		if a.VialSizes == nil {
			a.VialSizes = make(map[entities.Route][]float64, len(l.VialSizes))
		}
		for route, sizes := range l.VialSizes {
			a.VialSizes[route] = append([]float64(nil), sizes...)
		}
	}
	if l.Scenarios != nil {
		if a.Scenarios == nil {
			a.Scenarios = make(map[string]entities.Scenario, len(l.Scenarios))
		}
		maps.Copy(a.Scenarios, l.Scenarios)
	}
}

// MergeAssumptions decodes assumption documents and overlays them on the
// defaults, lowest priority first. Empty documents are skipped.
func MergeAssumptions(layers ...[]byte) (entities.Assumptions, error) {
	merged := Defaults()

	for _, data := range layers {
		if len(data) == 0 {
			continue
		}
		var layer assumptionLayer
		if err := decode(data, &layer, true); err != nil {
			return entities.Assumptions{}, err
		}
		layer.applyTo(&merged)
	}

	return merged, nil
}
