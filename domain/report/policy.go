package report

import (
	"math"

	"qachart/domain/core"
)

// DuplicatePolicy selects which value survives when multiple raw measurements
// map to the same (identity, criteria) pair.
type DuplicatePolicy string

const (
	PolicyFirst DuplicatePolicy = "first"
	PolicyLast  DuplicatePolicy = "last"
	PolicyMin   DuplicatePolicy = "min"
	PolicyMax   DuplicatePolicy = "max"
	PolicyMean  DuplicatePolicy = "mean"
)

// Policies lists every recognized policy, in display order.
var Policies = []DuplicatePolicy{PolicyFirst, PolicyLast, PolicyMin, PolicyMax, PolicyMean}

// ParsePolicy validates a policy string, failing fast on anything outside
// the recognized set.
func ParsePolicy(s string) (DuplicatePolicy, error) {
	p := DuplicatePolicy(s)
	for _, known := range Policies {
		if p == known {
			return p, nil
		}
	}
	valid := make([]string, len(Policies))
	for i, known := range Policies {
		valid[i] = string(known)
	}
	return "", core.NewInvalidPolicyError(s, valid)
}

// IsPositional reports whether the policy picks a value by position or
// timestamp rather than by numeric aggregation.
func (p DuplicatePolicy) IsPositional() bool {
	return p == PolicyFirst || p == PolicyLast
}

// Reduce collapses colliding values under an aggregating policy. A NaN among
// the inputs poisons the result, matching the merge-failure contract: the
// caller logs and keeps NaN for that cell.
func (p DuplicatePolicy) Reduce(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	for _, v := range values {
		if math.IsNaN(v) {
			return math.NaN()
		}
	}
	switch p {
	case PolicyMin:
		out := values[0]
		for _, v := range values[1:] {
			if v < out {
				out = v
			}
		}
		return out
	case PolicyMax:
		out := values[0]
		for _, v := range values[1:] {
			if v > out {
				out = v
			}
		}
		return out
	case PolicyMean:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	}
	return math.NaN()
}

// AggregateAcross collapses one matrix row across all variable columns for
// the synthetic "All" series, skipping NaN. The positional policies have no
// meaningful order across variables, so first/last degrade to max.
func (p DuplicatePolicy) AggregateAcross(values []float64) float64 {
	valid := values[:0:0]
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return math.NaN()
	}
	agg := p
	if p.IsPositional() {
		agg = PolicyMax
	}
	return agg.Reduce(valid)
}
