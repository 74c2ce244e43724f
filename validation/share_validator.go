// Package validation checks proportion maps, rates, populations and taxonomies
// before they reach the allocation engine.
package validation

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/giygas/regimen-forecast/config"
	"github.com/giygas/regimen-forecast/entities"
	"github.com/giygas/regimen-forecast/interfaces"
)

var (
	ErrInvalidShares     = errors.New("invalid shares")
	ErrInvalidRate       = errors.New("invalid rate")
	ErrInvalidPopulation = errors.New("invalid population")
	ErrInvalidTaxonomy   = errors.New("invalid taxonomy")
)

// Compile-time check to ensure ShareValidatorImpl implements ShareValidator
var _ interfaces.ShareValidator = (*ShareValidatorImpl)(nil)

// ShareValidatorImpl implements the interfaces.ShareValidator interface
type ShareValidatorImpl struct {
	cfg config.EngineConfig
}

// NewShareValidator creates a validator bound to the engine tolerances
func NewShareValidator(cfg config.EngineConfig) *ShareValidatorImpl {
	return &ShareValidatorImpl{cfg: cfg}
}

// sortedKeys returns map keys in a stable order so float sums are reproducible
func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SumShares adds share values in key order
func SumShares(shares map[string]float64) float64 {
	sum := 0.0
	for _, k := range sortedKeys(shares) {
		sum += shares[k]
	}
	return sum
}

// ValidateShareValues rejects NaN, infinite, negative and >1 values
func (v *ShareValidatorImpl) ValidateShareValues(dimension string, shares map[string]float64) error {
	for _, key := range sortedKeys(shares) {
		value := shares[key]
		switch {
		case math.IsNaN(value) || math.IsInf(value, 0):
			return fmt.Errorf("%w: %s share %q is not a number", ErrInvalidShares, dimension, key)
		case value < 0:
			return fmt.Errorf("%w: %s share %q is negative: %g", ErrInvalidShares, dimension, key, value)
		case value > 1:
			return fmt.Errorf("%w: %s share %q is greater than 1.0: %g", ErrInvalidShares, dimension, key, value)
		}
	}
	return nil
}

// ValidateShares checks a proportion map and applies the renormalization policy.
// The input map is never modified; the result always carries a fresh copy.
func (v *ShareValidatorImpl) ValidateShares(dimension string, shares map[string]float64) (interfaces.ShareResult, error) {
	result := interfaces.ShareResult{Dimension: dimension}

	if len(shares) == 0 {
		return result, fmt.Errorf("%w: %s shares are empty", ErrInvalidShares, dimension)
	}

	if err := v.ValidateShareValues(dimension, shares); err != nil {
		return result, err
	}

	sum := SumShares(shares)
	result.Sum = sum
	result.Shares = make(map[string]float64, len(shares))
	for k, value := range shares {
		result.Shares[k] = value
	}

	deviation := sum - 1.0
	tolerance := v.cfg.ShareSumTolerance

	switch {
	case math.Abs(deviation) <= tolerance:
		return result, nil

	case deviation > 0:
		if !v.cfg.AllowShareRenormalization || deviation > v.cfg.MaxRenormalizationDeviation {
			return result, fmt.Errorf("%w: %s shares cannot exceed 1.0 (sum %.4f)", ErrInvalidShares, dimension, sum)
		}
		v.rescale(&result, sum)
		return result, nil

	case sum == 0:
		return result, fmt.Errorf("%w: %s shares must sum to ~1.0 (sum 0)", ErrInvalidShares, dimension)

	default:
		deficit := -deviation
		if v.cfg.AllowShareRenormalization && deficit <= v.cfg.SmallDeficitThreshold {
			v.rescale(&result, sum)
			return result, nil
		}
		result.Loss = deficit
		result.Warnings = append(result.Warnings, entities.Warning{
			Code:    entities.WarnPopulationLoss,
			Subject: dimension,
			Message: fmt.Sprintf("%s shares sum to %.4f; %.2f%% of the population is treated as not modeled", dimension, sum, deficit*100),
		})
		return result, nil
	}
}

func (v *ShareValidatorImpl) rescale(result *interfaces.ShareResult, sum float64) {
	for k, value := range result.Shares {
		result.Shares[k] = value / sum
	}
	result.Renormalized = true
	result.Warnings = append(result.Warnings, entities.Warning{
		Code:    entities.WarnShareRenormalized,
		Subject: result.Dimension,
		Message: fmt.Sprintf("%s shares summed to %.4f and were renormalized to 1.0", result.Dimension, sum),
	})
}

// ValidateRate checks that a scalar rate lies in [0, 1]
func (v *ShareValidatorImpl) ValidateRate(name string, rate float64) error {
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return fmt.Errorf("%w: %s must be between 0 and 1, got: %g", ErrInvalidRate, name, rate)
	}
	return nil
}

// ValidatePopulation checks a population figure against the sanity bounds
func (v *ShareValidatorImpl) ValidatePopulation(name string, value float64) ([]entities.Warning, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
		return nil, fmt.Errorf("%w: %s must be a non-negative number, got: %g", ErrInvalidPopulation, name, value)
	}

	if value > v.cfg.MaxPopulation {
		return nil, fmt.Errorf("%w: %s of %.0f exceeds the sanity ceiling of %.0f", ErrInvalidPopulation, name, value, v.cfg.MaxPopulation)
	}

	if value > v.cfg.PopulationWarningThreshold {
		return []entities.Warning{{
			Code:    entities.WarnPopulationHigh,
			Subject: name,
			Message: fmt.Sprintf("%s of %.0f is above %.0f, check the epidemiological input", name, value, v.cfg.PopulationWarningThreshold),
		}}, nil
	}

	return nil, nil
}
