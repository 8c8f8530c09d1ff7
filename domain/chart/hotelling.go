package chart

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"qachart/domain/core"
)

// HotellingT2 is the multivariate counterpart of the individuals chart: one
// Q statistic per observation measuring its Mahalanobis-style distance from
// the multivariate mean, with center line and UCL from a scaled beta
// distribution.
type HotellingT2 struct {
	// Q holds one statistic per input row; rows with any NaN get NaN.
	Q          []float64
	CenterLine float64
	UCL        float64

	observations int
	variables    int
}

// NewHotellingT2 computes the T² chart over a rows x cols matrix at the
// given significance level. Rows containing NaN are excluded from the mean
// and covariance estimates but keep a NaN slot in Q.
func NewHotellingT2(data [][]float64, alpha float64) (*HotellingT2, error) {
	if len(data) == 0 {
		return nil, core.ErrInsufficientData
	}
	p := len(data[0])

	complete := make([][]float64, 0, len(data))
	for _, row := range data {
		if !rowHasNaN(row) {
			complete = append(complete, row)
		}
	}
	n := len(complete)
	// The beta parameters need N - p - 1 > 0.
	if n <= p+1 {
		return nil, core.ErrInsufficientData
	}

	flat := make([]float64, 0, n*p)
	for _, row := range complete {
		flat = append(flat, row...)
	}
	m := mat.NewDense(n, p, flat)

	mean := make([]float64, p)
	for j := 0; j < p; j++ {
		mean[j] = stat.Mean(mat.Col(nil, j, m), nil)
	}

	cov := mat.NewSymDense(p, nil)
	stat.CovarianceMatrix(cov, m, nil)

	var covInv mat.Dense
	if err := covInv.Inverse(cov); err != nil {
		return nil, core.ErrSingularCovariance
	}

	h := &HotellingT2{
		Q:            make([]float64, len(data)),
		observations: n,
		variables:    p,
	}

	spread := mat.NewVecDense(p, nil)
	var tmp mat.VecDense
	for i, row := range data {
		if rowHasNaN(row) {
			h.Q[i] = math.NaN()
			continue
		}
		for j := 0; j < p; j++ {
			spread.SetVec(j, row[j]-mean[j])
		}
		tmp.MulVec(&covInv, spread)
		h.Q[i] = mat.Dot(spread, &tmp)
	}

	h.CenterLine = h.controlLimit(0.5)
	h.UCL = h.controlLimit(1 - alpha/2)
	return h, nil
}

// controlLimit evaluates the scaled beta quantile ((N-1)^2/N) * B(p/2, (N-p-1)/2).
func (h *HotellingT2) controlLimit(x float64) float64 {
	n := float64(h.observations)
	dist := distuv.Beta{
		Alpha: float64(h.variables) / 2,
		Beta:  (n - float64(h.variables) - 1) / 2,
	}
	return (n - 1) * (n - 1) / n * dist.Quantile(x)
}

// OutOfControl returns indices whose Q exceeds the UCL.
func (h *HotellingT2) OutOfControl() []int {
	var out []int
	for i, q := range h.Q {
		if !math.IsNaN(q) && q > h.UCL {
			out = append(out, i)
		}
	}
	return out
}

func rowHasNaN(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
