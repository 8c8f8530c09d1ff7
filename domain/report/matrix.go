package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"qachart/domain/core"
)

// KeySeparator joins composite key parts for identity keys and criteria
// signatures.
const KeySeparator = " && "

// WideMatrix is the canonical wide-format data object driving all chart
// computation: one row per observation (identity key), one column per
// distinct criteria signature. Missing observations are NaN, never omitted
// rows. A matrix is rebuilt in full on every import or charting-variable
// change and never mutated afterwards.
type WideMatrix struct {
	// Data is rows x columns; rows align with UIDs and XAxis,
	// columns align with VarNames.
	Data     [][]float64
	VarNames []string
	XAxis    []string
	UIDs     []string
}

// RowCount returns the number of observations (rows)
func (m *WideMatrix) RowCount() int {
	return len(m.Data)
}

// ColumnCount returns the number of variables (columns)
func (m *WideMatrix) ColumnCount() int {
	return len(m.VarNames)
}

// ColumnIndex returns the column index for a variable name
func (m *WideMatrix) ColumnIndex(name string) (int, bool) {
	for i, v := range m.VarNames {
		if v == name {
			return i, true
		}
	}
	return -1, false
}

// Column returns one variable's series, aligned with UIDs and XAxis.
func (m *WideMatrix) Column(i int) ([]float64, error) {
	if i < 0 || i >= m.ColumnCount() {
		return nil, core.NewUnknownVariableError(strconv.Itoa(i), m.VarNames)
	}
	out := make([]float64, m.RowCount())
	for r, row := range m.Data {
		out[r] = row[i]
	}
	return out, nil
}

// ColumnByName returns the series for a variable name.
func (m *WideMatrix) ColumnByName(name string) ([]float64, error) {
	i, ok := m.ColumnIndex(name)
	if !ok {
		return nil, core.NewUnknownVariableError(name, m.VarNames)
	}
	return m.Column(i)
}

// ValidCount returns the number of non-NaN observations in one column.
func (m *WideMatrix) ValidCount(i int) int {
	n := 0
	for _, row := range m.Data {
		if !math.IsNaN(row[i]) {
			n++
		}
	}
	return n
}

// Validate ensures the matrix is internally consistent
func (m *WideMatrix) Validate() error {
	rows := len(m.Data)
	if len(m.UIDs) != rows {
		return fmt.Errorf("uid rows %d do not match data rows %d", len(m.UIDs), rows)
	}
	if len(m.XAxis) != rows {
		return fmt.Errorf("x-axis rows %d do not match data rows %d", len(m.XAxis), rows)
	}
	cols := len(m.VarNames)
	for i, row := range m.Data {
		if len(row) != cols {
			return fmt.Errorf("row %d has %d columns, expected %d", i, len(row), cols)
		}
	}
	return nil
}

// Fingerprint hashes the full matrix contents. Two reshapes of the same
// input with the same parameters produce equal fingerprints.
func (m *WideMatrix) Fingerprint() core.Hash {
	var b strings.Builder
	b.WriteString(strings.Join(m.VarNames, "\x1f"))
	b.WriteByte('\n')
	b.WriteString(strings.Join(m.UIDs, "\x1f"))
	b.WriteByte('\n')
	b.WriteString(strings.Join(m.XAxis, "\x1f"))
	b.WriteByte('\n')
	for _, row := range m.Data {
		for _, v := range row {
			b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
			b.WriteByte('\x1f')
		}
		b.WriteByte('\n')
	}
	return core.NewHash([]byte(b.String()))
}
