// Package chart computes Shewhart-style control charts over wide-format QA
// observation series: the univariate individuals chart and the multivariate
// Hotelling T² chart.
package chart

import (
	"math"

	"github.com/montanaflynn/stats"

	"qachart/domain/core"
)

// d2 bias-correction constant for a moving range of two consecutive
// individual observations.
const movingRangeBias = 1.128

// DefaultStd is the control-limit multiplier used when none is supplied.
const DefaultStd = 3.0

// Params configures a ControlChart computation.
type Params struct {
	// Std is the sigma multiplier for the control limits (default 3).
	Std float64
	// UCLLimit only lowers an otherwise-higher computed UCL, never raises it.
	UCLLimit *float64
	// LCLLimit only raises an otherwise-lower computed LCL, never lowers it.
	LCLLimit *float64
	// Range is an optional 1-indexed inclusive (start, stop) window. Data
	// outside the window is excluded from all computation, not merely
	// hidden from display.
	Range *Window
}

// Window is a 1-indexed inclusive sub-range of a series.
type Window struct {
	Start int
	Stop  int
}

// ControlChart is a state-free value object holding one individuals chart.
// Sigma comes from the average moving range estimator (mean |y[i]-y[i-1]|
// over consecutive non-NaN values divided by 1.128), not the sample standard
// deviation; a sustained process shift therefore inflates the limits far
// less than it would with a naive estimate.
type ControlChart struct {
	x []float64
	y []float64

	centerLine   float64
	sigma        float64
	ucl          float64
	lcl          float64
	outOfControl []int
}

// New computes a control chart over y. x defaults to 1..N when nil; it must
// otherwise match y in length. NaN values stay in the chart series for
// display continuity but never contribute to the center line or sigma, and
// are never flagged out of control.
func New(y []float64, x []float64, params Params) (*ControlChart, error) {
	if x == nil {
		x = make([]float64, len(y))
		for i := range x {
			x[i] = float64(i + 1)
		}
	}
	if len(x) != len(y) {
		return nil, core.NewInvalidRangeError(1, len(x), len(y))
	}

	if params.Std == 0 {
		params.Std = DefaultStd
	}

	if params.Range != nil {
		start, stop := params.Range.Start, params.Range.Stop
		if start < 1 || stop < start || stop > len(y) {
			return nil, core.NewInvalidRangeError(start, stop, len(y))
		}
		x = x[start-1 : stop]
		y = y[start-1 : stop]
	}

	c := &ControlChart{x: x, y: y}
	c.compute(params)
	return c, nil
}

func (c *ControlChart) compute(params Params) {
	valid := make([]float64, 0, len(c.y))
	for _, v := range c.y {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}

	if len(valid) == 0 {
		c.centerLine = math.NaN()
		c.sigma = math.NaN()
		c.ucl = math.NaN()
		c.lcl = math.NaN()
		return
	}

	c.centerLine, _ = stats.Mean(stats.Float64Data(valid))

	if len(valid) < 2 {
		c.sigma = math.NaN()
	} else {
		ranges := make([]float64, 0, len(valid)-1)
		for i := 1; i < len(valid); i++ {
			ranges = append(ranges, math.Abs(valid[i]-valid[i-1]))
		}
		avgRange, _ := stats.Mean(stats.Float64Data(ranges))
		c.sigma = avgRange / movingRangeBias
	}

	c.ucl = c.centerLine + params.Std*c.sigma
	c.lcl = c.centerLine - params.Std*c.sigma
	if params.UCLLimit != nil && c.ucl > *params.UCLLimit {
		c.ucl = *params.UCLLimit
	}
	if params.LCLLimit != nil && c.lcl < *params.LCLLimit {
		c.lcl = *params.LCLLimit
	}

	for i, v := range c.y {
		if math.IsNaN(v) {
			continue
		}
		if v > c.ucl || v < c.lcl {
			c.outOfControl = append(c.outOfControl, i)
		}
	}
}

// ChartData returns the (windowed) x and y series for plotting. NaN y values
// are retained positionally.
func (c *ControlChart) ChartData() (x, y []float64) {
	return c.x, c.y
}

// CenterLine returns the mean of the non-NaN windowed series.
func (c *ControlChart) CenterLine() float64 {
	return c.centerLine
}

// Sigma returns the moving-range process sigma estimate.
func (c *ControlChart) Sigma() float64 {
	return c.sigma
}

// ControlLimits returns (lcl, ucl) after clamping.
func (c *ControlChart) ControlLimits() (lcl, ucl float64) {
	return c.lcl, c.ucl
}

// OutOfControl returns the indices within the window whose values fall
// outside the control limits.
func (c *ControlChart) OutOfControl() []int {
	return c.outOfControl
}
