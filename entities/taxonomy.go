// Package entities holds the data model shared by the allocation, dosing and forecast packages.
package entities

// Route of administration of a regimen
type Route string

const (
	RouteIV    Route = "IV"
	RouteSC    Route = "SC"
	RoutePO    Route = "PO"
	RouteIM    Route = "IM"
	RouteOther Route = "other"
)

// KnownRoutes lists the routes accepted in a taxonomy
var KnownRoutes = []Route{RouteIV, RouteSC, RoutePO, RouteIM, RouteOther}

// DoseType describes how a dose value scales with the patient
type DoseType string

const (
	DoseMgPerKg DoseType = "mg_per_kg"
	DoseFixedMg DoseType = "fixed_mg"
	DoseMgPerM2 DoseType = "mg_per_m2"
	DoseOther   DoseType = "other"
)

// Dose is a single dose value with its free-text unit ("mg/kg", "mg", "mg/m2", ...)
type Dose struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// LoadingDose is an initial dose given Repeats times before maintenance starts
type LoadingDose struct {
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
	Repeats int     `json:"repeats"`
}

// DoseSchema is the dosing specification of a regimen
type DoseSchema struct {
	Type         DoseType     `json:"type"`
	Loading      *LoadingDose `json:"loading,omitempty"`
	Maintenance  Dose         `json:"maintenance"`
	IntervalDays float64      `json:"interval_days"`
	Notes        string       `json:"notes,omitempty"`
}

// TreatmentNode identifies one concrete regimen by its dimension path.
// Subtype, Setting and Line are optional; an empty value means the node
// does not carry that dimension.
type TreatmentNode struct {
	NodeID  string     `json:"node_id"`
	Subtype string     `json:"subtype,omitempty"`
	Setting string     `json:"setting,omitempty"`
	Line    string     `json:"line,omitempty"`
	Regimen string     `json:"regimen"`
	Route   Route      `json:"route"`
	Dose    DoseSchema `json:"dose_schema"`
}

// Path returns the node's dimension path without the regimen
func (n TreatmentNode) Path() DimensionPath {
	return DimensionPath{Subtype: n.Subtype, Setting: n.Setting, Line: n.Line}
}

// Taxonomy is the ordered list of treatment nodes of one indication
type Taxonomy struct {
	Indication string          `json:"indication,omitempty"`
	Nodes      []TreatmentNode `json:"nodes"`
}

// Dimension names of the allocation hierarchy, in application order
const (
	DimensionSubtype = "subtype"
	DimensionSetting = "setting"
	DimensionLine    = "line"
	DimensionRegimen = "regimen"
)

// Dimensions lists the share dimensions applied before the regimen split
var Dimensions = []string{DimensionSubtype, DimensionSetting, DimensionLine}

// DimensionPath is the tagged key of one subtype → setting → line branch
type DimensionPath struct {
	Subtype string `json:"subtype,omitempty"`
	Setting string `json:"setting,omitempty"`
	Line    string `json:"line,omitempty"`
}

// Value returns the path's value for a dimension name
func (p DimensionPath) Value(dimension string) string {
	switch dimension {
	case DimensionSubtype:
		return p.Subtype
	case DimensionSetting:
		return p.Setting
	case DimensionLine:
		return p.Line
	}
	return ""
}

// String renders the path as "subtype/setting/line", skipping empty parts
func (p DimensionPath) String() string {
	out := ""
	for _, part := range []string{p.Subtype, p.Setting, p.Line} {
		if part == "" {
			continue
		}
		if out != "" {
			out += "/"
		}
		out += part
	}
	if out == "" {
		return "(root)"
	}
	return out
}
