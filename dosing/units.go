package dosing

import (
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/giygas/regimen-forecast/entities"
)

const (
	// DefaultWeightKg replaces a missing or non-positive average weight
	DefaultWeightKg = 70.0
	// heightCm is the fixed height used for body-surface-area estimates
	heightCm = 170.0
)

// normalizeText folds compatibility characters (m², fullwidth digits, µ)
// and lowercases the result.
func normalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "μ", "u")
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeUnit returns the unit text without spaces, e.g. "mg / m²" → "mg/m2"
func normalizeUnit(unit string) string {
	return strings.Join(strings.Fields(normalizeText(unit)), "")
}

// massScale converts the mass part of a unit to milligrams
func massScale(unit string) (float64, bool) {
	mass, _, _ := strings.Cut(normalizeUnit(unit), "/")
	switch mass {
	case "mg":
		return 1, true
	case "g":
		return 1000, true
	case "mcg", "ug":
		return 0.001, true
	}
	return 1, false
}

// ClassifyUnit derives the dose type a unit implies. The second return
// value is false when the unit names no recognisable mass.
func ClassifyUnit(unit string) (entities.DoseType, bool) {
	normalized := normalizeUnit(unit)
	_, per, hasPer := strings.Cut(normalized, "/")

	switch {
	case hasPer && strings.HasPrefix(per, "kg"):
		return entities.DoseMgPerKg, true
	case hasPer && strings.HasPrefix(per, "m2"):
		return entities.DoseMgPerM2, true
	}

	if _, ok := massScale(normalized); ok {
		return entities.DoseFixedMg, true
	}
	return "", false
}

// BodySurfaceArea estimates BSA in m² with the Mosteller formula at a fixed height
func BodySurfaceArea(weightKg float64) float64 {
	return math.Sqrt(heightCm * weightKg / 3600.0)
}

// perAdministration converts one dose value into mg for a patient of the given weight
func perAdministration(doseType entities.DoseType, value float64, unit string, weightKg float64) float64 {
	scale, _ := massScale(unit)
	mg := value * scale

	switch doseType {
	case entities.DoseMgPerKg:
		return mg * weightKg
	case entities.DoseMgPerM2:
		return mg * BodySurfaceArea(weightKg)
	default:
		return mg
	}
}
