package dosing

import "math"

// vialEpsilon absorbs float noise so an exact multiple never opens an extra vial
const vialEpsilon = 1e-9

// RoundToVials rounds a required dose up to whole units of the largest
// vial size. Smaller vials are never mixed in, so 390 mg with vials
// {420, 150} dispenses 420 mg. Without usable vial sizes the dose is
// returned unchanged.
func RoundToVials(requiredMg float64, vialSizes []float64) float64 {
	if requiredMg <= 0 {
		return 0
	}

	largest := 0.0
	for _, size := range vialSizes {
		if size > largest {
			largest = size
		}
	}
	if largest <= 0 {
		return requiredMg
	}

	vials := max(math.Ceil(requiredMg/largest-vialEpsilon), 1)
	return vials * largest
}
