package validation

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/giygas/regimen-forecast/entities"
	"github.com/giygas/regimen-forecast/interfaces"
)

// ValidateTaxonomy checks the structural integrity of a taxonomy
func (v *ShareValidatorImpl) ValidateTaxonomy(taxonomy entities.Taxonomy) error {
	if len(taxonomy.Nodes) == 0 {
		return fmt.Errorf("%w: no treatment nodes found", ErrInvalidTaxonomy)
	}

	seen := make(map[string]bool, len(taxonomy.Nodes))
	for i, node := range taxonomy.Nodes {
		if strings.TrimSpace(node.NodeID) == "" {
			return fmt.Errorf("%w: node %d has an empty node_id", ErrInvalidTaxonomy, i)
		}
		if seen[node.NodeID] {
			return fmt.Errorf("%w: duplicate node_id found: %s", ErrInvalidTaxonomy, node.NodeID)
		}
		seen[node.NodeID] = true

		if strings.TrimSpace(node.Regimen) == "" {
			return fmt.Errorf("%w: empty regimen for node %s", ErrInvalidTaxonomy, node.NodeID)
		}

		if !slices.Contains(entities.KnownRoutes, node.Route) {
			return fmt.Errorf("%w: unknown route %q for node %s", ErrInvalidTaxonomy, node.Route, node.NodeID)
		}

		if err := validateDoseSchema(node); err != nil {
			return err
		}
	}

	return nil
}

func validateDoseSchema(node entities.TreatmentNode) error {
	dose := node.Dose

	if invalidAmount(dose.Maintenance.Value) {
		return fmt.Errorf("%w: invalid maintenance dose %g for node %s", ErrInvalidTaxonomy, dose.Maintenance.Value, node.NodeID)
	}

	if invalidAmount(dose.IntervalDays) {
		return fmt.Errorf("%w: invalid interval_days %g for node %s", ErrInvalidTaxonomy, dose.IntervalDays, node.NodeID)
	}

	if dose.Loading != nil {
		if invalidAmount(dose.Loading.Value) || dose.Loading.Repeats < 0 {
			return fmt.Errorf("%w: invalid loading dose for node %s", ErrInvalidTaxonomy, node.NodeID)
		}
	}

	return nil
}

func invalidAmount(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v < 0
}

// ReportCoverage compares the dimension values of a taxonomy with the share
// keys of the assumptions. Nothing in the report is an error.
func (v *ShareValidatorImpl) ReportCoverage(taxonomy entities.Taxonomy, assumptions entities.Assumptions) *interfaces.CoverageReport {
	report := &interfaces.CoverageReport{
		MissingShareKeys: map[string][]string{},
		UnusedShareKeys:  map[string][]string{},
	}

	dimensions := append(slices.Clone(entities.Dimensions), entities.DimensionRegimen)
	for _, dimension := range dimensions {
		used := map[string]bool{}
		var ordered []string
		for _, node := range taxonomy.Nodes {
			value := node.Path().Value(dimension)
			if dimension == entities.DimensionRegimen {
				value = node.Regimen
			}
			if value == "" || used[value] {
				continue
			}
			used[value] = true
			ordered = append(ordered, value)
		}

		shares := assumptions.SharesFor(dimension)
		if len(ordered) == 0 || shares == nil {
			if len(ordered) > 0 && dimension != entities.DimensionRegimen {
				report.DimensionsWithoutShares = append(report.DimensionsWithoutShares, dimension)
			}
			continue
		}

		for _, value := range ordered {
			if _, ok := shares[value]; !ok {
				report.MissingShareKeys[dimension] = append(report.MissingShareKeys[dimension], value)
			}
		}
		for _, key := range sortedKeys(shares) {
			if !used[key] {
				report.UnusedShareKeys[dimension] = append(report.UnusedShareKeys[dimension], key)
			}
		}
	}

	return report
}
