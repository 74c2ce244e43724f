package allocation

import (
	"fmt"

	"github.com/giygas/regimen-forecast/entities"
)

// splitRegimens returns each node's share of its path's population.
// Global regimen shares are renormalized within the path because a global
// share set need not apply node-for-node to every path.
func (e *Engine) splitRegimens(group *pathGroup, regimenShares map[string]float64) ([]float64, []entities.Warning, error) {
	n := len(group.nodes)
	shares := make([]float64, n)

	if n == 1 {
		shares[0] = 1.0
		return shares, nil, nil
	}

	var warnings []entities.Warning

	if regimenShares != nil {
		sum := 0.0
		found := make([]bool, n)
		for i, node := range group.nodes {
			share, ok := regimenShares[node.Regimen]
			if !ok {
				share, ok = regimenShares[node.NodeID]
			}
			found[i] = ok
			shares[i] = share
			sum += share
		}

		if sum > 0 {
			for i, node := range group.nodes {
				shares[i] /= sum
				if !found[i] {
					warnings = append(warnings, entities.Warning{
						Code:    entities.WarnUnmappedCohort,
						Subject: node.NodeID,
						Message: fmt.Sprintf("regimen %q on path %s has no share, it receives 0 patients", node.Regimen, group.path),
					})
				}
			}
			return shares, warnings, nil
		}
	}

	if !e.cfg.AllowEqualRegimenSplit {
		return nil, nil, fmt.Errorf("%w: path %s has %d regimens and no regimen shares", ErrAmbiguousRegimenSplit, group.path, n)
	}

	for i := range shares {
		shares[i] = 1.0 / float64(n)
	}
	warnings = append(warnings, entities.Warning{
		Code:    entities.WarnEqualRegimenSplit,
		Subject: group.path.String(),
		Message: fmt.Sprintf("path %s split equally across %d regimens", group.path, n),
	})

	return shares, warnings, nil
}
