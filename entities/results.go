package entities

// Warning codes recorded by the core packages
const (
	WarnShareRenormalized    = "share_renormalized"
	WarnPopulationLoss       = "population_loss"
	WarnEqualSplitFallback   = "equal_split_fallback"
	WarnEqualRegimenSplit    = "equal_regimen_split"
	WarnUnmappedCohort       = "unmapped_cohort"
	WarnConservationDrift    = "conservation_drift"
	WarnPopulationHigh       = "population_high"
	WarnBasePopulationAbsent = "base_population_absent"
	WarnDoseTypeCorrected    = "dose_type_corrected"
	WarnIntervalOverride     = "interval_override"
	WarnDefaultWeight        = "default_weight"
	WarnTreatedRateClamped   = "treated_rate_clamped"
)

// Warning is a best-effort correction the caller may surface for review
type Warning struct {
	Code    string `json:"code"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// TraceStep records one allocation decision applied to a cohort
type TraceStep struct {
	Dimension        string  `json:"dimension"`
	ShareKey         string  `json:"share_key"`
	ShareValue       float64 `json:"share_value"`
	PopulationBefore float64 `json:"population_before"`
	PopulationAfter  float64 `json:"population_after"`
}

// LeafCohort is the population of one concrete regimen path
type LeafCohort struct {
	NodeID       string        `json:"node_id"`
	Path         DimensionPath `json:"path"`
	Regimen      string        `json:"regimen"`
	Patients     float64       `json:"patients"`
	PatientYears float64       `json:"patient_years"`
	Trace        []TraceStep   `json:"trace"`
}

// Rollup aggregates leaf cohorts sharing one dimension value
type Rollup struct {
	Dimension    string  `json:"dimension"`
	Key          string  `json:"key"`
	Patients     float64 `json:"patients"`
	PatientYears float64 `json:"patient_years"`
}

// AllocationResult is the output of one allocation pass
type AllocationResult struct {
	PopulationSource  string       `json:"population_source"`
	BasePool          float64      `json:"base_pool"`
	TreatedPool       float64      `json:"treated_pool"`
	LeafCohorts       []LeafCohort `json:"leaf_cohorts"`
	Rollups           []Rollup     `json:"rollups"`
	ConservationRatio float64      `json:"conservation_ratio"`
	Warnings          []Warning    `json:"warnings"`
}

// TotalPatients folds the leaf cohorts' patients
func (r AllocationResult) TotalPatients() float64 {
	total := 0.0
	for _, leaf := range r.LeafCohorts {
		total += leaf.Patients
	}
	return total
}

// DemandNode is the drug demand of one regimen
type DemandNode struct {
	NodeID                       string   `json:"node_id"`
	Regimen                      string   `json:"regimen"`
	Route                        Route    `json:"route"`
	DoseType                     DoseType `json:"dose_type"`
	IntervalDays                 float64  `json:"interval_days"`
	AdministrationsPerYear       float64  `json:"administrations_per_year"`
	TreatedPatients              float64  `json:"treated_patients"`
	PatientYears                 float64  `json:"patient_years"`
	AdministeredMgPerPatientYear float64  `json:"administered_mg_per_patient_year"`
	DispensedMgPerPatientYear    float64  `json:"dispensed_mg_per_patient_year"`
	AdministeredMgTotal          float64  `json:"administered_mg_total"`
	DispensedMgTotal             float64  `json:"dispensed_mg_total"`
}

// DemandResult is the demand of every regimen of a taxonomy
type DemandResult struct {
	Nodes               []DemandNode `json:"nodes"`
	TotalAdministeredMg float64      `json:"total_administered_mg"`
	TotalDispensedMg    float64      `json:"total_dispensed_mg"`
	Warnings            []Warning    `json:"warnings"`
}

// ForecastRecord is one (year, node, scenario) demand tuple
type ForecastRecord struct {
	Scenario                     string  `json:"scenario"`
	Year                         int     `json:"year"`
	YearOffset                   int     `json:"year_offset"`
	NodeID                       string  `json:"node_id"`
	Regimen                      string  `json:"regimen"`
	Route                        Route   `json:"route"`
	TreatedPatients              float64 `json:"treated_patients"`
	PatientYears                 float64 `json:"patient_years"`
	AdministeredMgPerPatientYear float64 `json:"administered_mg_per_patient_year"`
	DispensedMgPerPatientYear    float64 `json:"dispensed_mg_per_patient_year"`
	AdministeredMgTotal          float64 `json:"administered_mg_total"`
	DispensedMgTotal             float64 `json:"dispensed_mg_total"`
}

// ForecastSummary totals one (scenario, year) pair
type ForecastSummary struct {
	Scenario            string  `json:"scenario"`
	Year                int     `json:"year"`
	YearOffset          int     `json:"year_offset"`
	BasePool            float64 `json:"base_pool"`
	TreatedPool         float64 `json:"treated_pool"`
	TreatedPatients     float64 `json:"treated_patients"`
	PatientYears        float64 `json:"patient_years"`
	AdministeredMgTotal float64 `json:"administered_mg_total"`
	DispensedMgTotal    float64 `json:"dispensed_mg_total"`
	ConservationRatio   float64 `json:"conservation_ratio"`
}

// ForecastResult is the concatenation of every scenario-year computation
type ForecastResult struct {
	HorizonYears int               `json:"horizon_years"`
	Scenarios    []string          `json:"scenarios"`
	Records      []ForecastRecord  `json:"records"`
	Summaries    []ForecastSummary `json:"summaries"`
	Warnings     []Warning         `json:"warnings"`
}
