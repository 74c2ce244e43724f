package entities

// Population selection modes
const (
	PopulationAuto       = "auto"
	PopulationPrevalence = "prevalence_based"
	PopulationIncidence  = "incidence_based"
)

// Scenario holds the named parameter deltas applied by the forecast.
// A nil multiplier is neutral; an explicit 0 is a real value.
type Scenario struct {
	CAGR                  float64  `json:"cagr"`
	TreatedRateMultiplier *float64 `json:"treated_rate_multiplier,omitempty"`
	ToTMultiplier         *float64 `json:"tot_multiplier,omitempty"`
	AdoptionMultiplier    *float64 `json:"adoption_multiplier,omitempty"`
}

func multiplier(v *float64) float64 {
	if v == nil {
		return 1.0
	}
	return *v
}

// RateFactor returns the combined multiplier applied to the treated rate
func (s Scenario) RateFactor() float64 {
	return multiplier(s.TreatedRateMultiplier) * multiplier(s.AdoptionMultiplier)
}

// ToTFactor returns the multiplier applied to every time-on-treatment entry
func (s Scenario) ToTFactor() float64 {
	return multiplier(s.ToTMultiplier)
}

// Assumptions is the epidemiological and dosing parameter set of a run.
// A nil share map means the dimension has no shares at all; a non-nil
// empty map is a malformed input.
type Assumptions struct {
	BaseYear              int                 `json:"base_year,omitempty"`
	Incidence             float64             `json:"incidence"`
	Prevalence            float64             `json:"prevalence"`
	TreatedRate           float64             `json:"treated_rate"`
	SubtypeShares         map[string]float64  `json:"subtype_shares,omitempty"`
	SettingShares         map[string]float64  `json:"setting_shares,omitempty"`
	StageShares           map[string]float64  `json:"stage_shares,omitempty"`
	LineShares            map[string]float64  `json:"line_shares,omitempty"`
	RegimenShares         map[string]float64  `json:"regimen_shares,omitempty"`
	TimeOnTreatmentMonths map[string]float64  `json:"time_on_treatment_months,omitempty"`
	AvgWeightKg           float64             `json:"avg_weight_kg"`
	RelativeDoseIntensity float64             `json:"relative_dose_intensity"`
	VialSizes             map[Route][]float64 `json:"vial_sizes,omitempty"`
	Scenarios             map[string]Scenario `json:"scenarios,omitempty"`
}

// SharesFor returns the share map of a dimension; stage shares stand in for
// setting shares when the latter are missing.
func (a Assumptions) SharesFor(dimension string) map[string]float64 {
	switch dimension {
	case DimensionSubtype:
		return a.SubtypeShares
	case DimensionSetting:
		if a.SettingShares != nil {
			return a.SettingShares
		}
		return a.StageShares
	case DimensionLine:
		return a.LineShares
	case DimensionRegimen:
		return a.RegimenShares
	}
	return nil
}

// Clone returns a deep copy so scaled copies never alias the base maps
func (a Assumptions) Clone() Assumptions {
	out := a
	out.SubtypeShares = cloneMap(a.SubtypeShares)
	out.SettingShares = cloneMap(a.SettingShares)
	out.StageShares = cloneMap(a.StageShares)
	out.LineShares = cloneMap(a.LineShares)
	out.RegimenShares = cloneMap(a.RegimenShares)
	out.TimeOnTreatmentMonths = cloneMap(a.TimeOnTreatmentMonths)
	if a.VialSizes != nil {
		out.VialSizes = make(map[Route][]float64, len(a.VialSizes))
		for route, sizes := range a.VialSizes {
			out.VialSizes[route] = append([]float64(nil), sizes...)
		}
	}
	if a.Scenarios != nil {
		out.Scenarios = make(map[string]Scenario, len(a.Scenarios))
		for name, s := range a.Scenarios {
			out.Scenarios[name] = s
		}
	}
	return out
}

func cloneMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
