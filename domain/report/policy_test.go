package report

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qachart/domain/core"
)

func TestParsePolicy(t *testing.T) {
	for _, p := range Policies {
		got, err := ParsePolicy(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := ParsePolicy("median")
	assert.ErrorIs(t, err, core.ErrInvalidPolicy)
	assert.Contains(t, err.Error(), "first")
}

func TestReduceAggregating(t *testing.T) {
	values := []float64{2.0, 4.0}

	assert.Equal(t, 3.0, PolicyMean.Reduce(values))
	assert.Equal(t, 4.0, PolicyMax.Reduce(values))
	assert.Equal(t, 2.0, PolicyMin.Reduce(values))
}

func TestReduceNaNPoisons(t *testing.T) {
	for _, p := range []DuplicatePolicy{PolicyMin, PolicyMax, PolicyMean} {
		assert.True(t, math.IsNaN(p.Reduce([]float64{1.0, math.NaN(), 3.0})), string(p))
	}
	assert.True(t, math.IsNaN(PolicyMean.Reduce(nil)))
}

func TestIsPositional(t *testing.T) {
	assert.True(t, PolicyFirst.IsPositional())
	assert.True(t, PolicyLast.IsPositional())
	assert.False(t, PolicyMean.IsPositional())
}

func TestAggregateAcrossSkipsNaN(t *testing.T) {
	row := []float64{2.0, math.NaN(), 4.0}

	assert.Equal(t, 3.0, PolicyMean.AggregateAcross(row))
	assert.Equal(t, 2.0, PolicyMin.AggregateAcross(row))

	// positional policies have no column order, they fall back to max
	assert.Equal(t, 4.0, PolicyFirst.AggregateAcross(row))
	assert.Equal(t, 4.0, PolicyLast.AggregateAcross(row))

	assert.True(t, math.IsNaN(PolicyMean.AggregateAcross([]float64{math.NaN(), math.NaN()})))
}
