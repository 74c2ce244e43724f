package allocation

import "github.com/giygas/regimen-forecast/entities"

// buildRollups aggregates leaf cohorts per dimension value, in order of first appearance
func buildRollups(leaves []entities.LeafCohort) []entities.Rollup {
	var rollups []entities.Rollup
	index := map[[2]string]int{}

	add := func(dimension, key string, leaf entities.LeafCohort) {
		if key == "" {
			return
		}
		id := [2]string{dimension, key}
		i, ok := index[id]
		if !ok {
			i = len(rollups)
			index[id] = i
			rollups = append(rollups, entities.Rollup{Dimension: dimension, Key: key})
		}
		rollups[i].Patients += leaf.Patients
		rollups[i].PatientYears += leaf.PatientYears
	}

	for _, dimension := range entities.Dimensions {
		for _, leaf := range leaves {
			add(dimension, leaf.Path.Value(dimension), leaf)
		}
	}
	for _, leaf := range leaves {
		add(entities.DimensionRegimen, leaf.Regimen, leaf)
	}

	return rollups
}
