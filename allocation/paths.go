package allocation

import (
	"fmt"

	"github.com/giygas/regimen-forecast/entities"
)

// unspecifiedKey stands in for a node that lacks a dimension other nodes carry
const unspecifiedKey = "unspecified"

// pathGroup is one unique dimension path with the regimens sharing it
type pathGroup struct {
	path  entities.DimensionPath
	nodes []entities.TreatmentNode
}

// groupByPath enumerates the unique dimension paths in order of first
// appearance and reports which dimensions the taxonomy uses at all.
func groupByPath(nodes []entities.TreatmentNode) ([]*pathGroup, map[string]bool) {
	present := make(map[string]bool, len(entities.Dimensions))
	for _, node := range nodes {
		for _, dimension := range entities.Dimensions {
			if node.Path().Value(dimension) != "" {
				present[dimension] = true
			}
		}
	}

	var groups []*pathGroup
	index := make(map[entities.DimensionPath]*pathGroup)

	for _, node := range nodes {
		path := node.Path()
		if present[entities.DimensionSubtype] && path.Subtype == "" {
			path.Subtype = unspecifiedKey
		}
		if present[entities.DimensionSetting] && path.Setting == "" {
			path.Setting = unspecifiedKey
		}
		if present[entities.DimensionLine] && path.Line == "" {
			path.Line = unspecifiedKey
		}

		group, ok := index[path]
		if !ok {
			group = &pathGroup{path: path}
			index[path] = group
			groups = append(groups, group)
		}
		group.nodes = append(group.nodes, node)
	}

	return groups, present
}

// distinctValues returns a dimension's values across groups in order of first appearance
func distinctValues(dimension string, groups []*pathGroup) []string {
	seen := map[string]bool{}
	var values []string
	for _, group := range groups {
		value := group.path.Value(dimension)
		if !seen[value] {
			seen[value] = true
			values = append(values, value)
		}
	}
	return values
}

// dimensionShares is the share lookup of one dimension
type dimensionShares struct {
	values   map[string]float64
	warnings []entities.Warning
}

// resolveDimension validates the dimension's share map, or substitutes an
// equal split over the observed values when the assumptions have none.
func (e *Engine) resolveDimension(dimension string, groups []*pathGroup, shares map[string]float64) (*dimensionShares, error) {
	observed := distinctValues(dimension, groups)
	resolved := &dimensionShares{values: make(map[string]float64, len(observed))}

	if shares == nil {
		equal := 1.0 / float64(len(observed))
		for _, value := range observed {
			resolved.values[value] = equal
		}
		resolved.warnings = append(resolved.warnings, entities.Warning{
			Code:    entities.WarnEqualSplitFallback,
			Subject: dimension,
			Message: fmt.Sprintf("no %s shares provided, split equally across %d observed values", dimension, len(observed)),
		})
		return resolved, nil
	}

	validated, err := e.validator.ValidateShares(dimension, shares)
	if err != nil {
		return nil, err
	}
	resolved.warnings = append(resolved.warnings, validated.Warnings...)

	for _, value := range observed {
		share, ok := validated.Shares[value]
		if !ok {
			resolved.warnings = append(resolved.warnings, entities.Warning{
				Code:    entities.WarnUnmappedCohort,
				Subject: dimension,
				Message: fmt.Sprintf("%s %q has no share, its cohorts receive 0 patients", dimension, value),
			})
		}
		resolved.values[value] = share
	}

	return resolved, nil
}
