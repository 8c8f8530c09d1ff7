package report

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qachart/domain/core"
)

func testMatrix() *WideMatrix {
	return &WideMatrix{
		Data: [][]float64{
			{99.1, 97.0},
			{math.NaN(), 96.2},
			{98.5, 95.8},
		},
		VarNames: []string{"2/2mm && 10", "3/3mm && 10"},
		XAxis:    []string{"2024-01-02", "2024-01-09", "2024-01-16"},
		UIDs:     []string{"ANON001 && 2024-01-02", "ANON002 && 2024-01-09", "ANON003 && 2024-01-16"},
	}
}

func TestMatrixShape(t *testing.T) {
	m := testMatrix()
	require.NoError(t, m.Validate())
	assert.Equal(t, 3, m.RowCount())
	assert.Equal(t, 2, m.ColumnCount())
}

func TestMatrixColumnAccess(t *testing.T) {
	m := testMatrix()

	col, err := m.ColumnByName("3/3mm && 10")
	require.NoError(t, err)
	assert.Equal(t, []float64{97.0, 96.2, 95.8}, col)

	col, err = m.Column(0)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(col[1]))

	_, err = m.Column(5)
	assert.ErrorIs(t, err, core.ErrUnknownVariable)
	_, err = m.ColumnByName("nope")
	assert.ErrorIs(t, err, core.ErrUnknownVariable)
}

func TestMatrixValidCount(t *testing.T) {
	m := testMatrix()
	assert.Equal(t, 2, m.ValidCount(0))
	assert.Equal(t, 3, m.ValidCount(1))
}

func TestMatrixValidate(t *testing.T) {
	m := testMatrix()
	m.UIDs = m.UIDs[:2]
	assert.Error(t, m.Validate())

	m = testMatrix()
	m.Data[1] = []float64{1.0}
	assert.Error(t, m.Validate())
}

func TestMatrixFingerprintStable(t *testing.T) {
	a, b := testMatrix(), testMatrix()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Data[0][0] = 42.0
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
