// Package analysis wraps reshaped report data into the wide observation
// matrix and drives control-chart computation per criteria signature.
package analysis

import (
	"math"
	"strconv"
	"strings"

	"qachart/adapters/tabular"
	"qachart/domain/chart"
	"qachart/domain/core"
	"qachart/domain/report"
	"qachart/internal/reshape"
)

// AllVariable is the synthetic series aggregating every criteria signature.
const AllVariable = "All"

// CreationDateColumn is the miner's per-report file-creation timestamp
// column. When present it breaks first/last ties and backs up date sorting;
// it never appears in the matrix.
const CreationDateColumn = "report_file_creation"

// Config selects how the matrix is assembled.
type Config struct {
	// Policy resolves duplicate measurements (default "first").
	Policy report.DuplicatePolicy
	// DuplicateDetection merges rows sharing the template identity. When
	// false, identity is every non-criteria column and merging is
	// effectively disabled.
	DuplicateDetection bool
	// Coerce converts raw y cells; nil uses the default coercer.
	Coerce report.Coercer
}

// Params carries the user-configurable chart inputs supplied by the
// surrounding application on every recompute.
type Params struct {
	Std      float64
	UCLLimit *float64
	LCLLimit *float64
	Range    *chart.Window
}

// Engine holds one charting variable's wide matrix and computes its charts.
// It is a pure function of its inputs: rebuilt in full on every import or
// charting-variable change, immutable until replaced.
type Engine struct {
	Matrix *report.WideMatrix

	template *report.ParserTemplate
	policy   report.DuplicatePolicy
	criteria []string
	y        report.YCandidate
}

// New reshapes the table for one charting variable and assembles the wide
// matrix.
func New(table *tabular.RawTable, tpl *report.ParserTemplate, chartingVariable string, cfg Config) (*Engine, error) {
	y, err := tpl.YCandidate(chartingVariable)
	if err != nil {
		return nil, err
	}

	policy := cfg.Policy
	if policy == "" {
		policy = report.PolicyFirst
	}

	wide, err := reshape.Widen(table, reshape.Spec{
		IdentityColumns:    tpl.IdentityColumns(cfg.DuplicateDetection),
		CriteriaColumns:    tpl.CriteriaColumns(),
		YColumn:            y.Name,
		DateColumn:         tpl.DateColumn(),
		CreationDateColumn: CreationDateColumn,
		Policy:             policy,
		Coerce:             cfg.Coerce,
		SortByDate:         true,
	})
	if err != nil {
		return nil, err
	}

	m := &report.WideMatrix{
		Data:     wide.Values,
		VarNames: wide.VarNames,
		XAxis:    wide.Dates,
		UIDs:     wide.UIDs,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		Matrix:   m,
		template: tpl,
		policy:   policy,
		criteria: tpl.CriteriaColumns(),
		y:        y,
	}, nil
}

// TemplateName returns the parser template driving this engine.
func (e *Engine) TemplateName() string { return e.template.Name }

// ChartingVariable returns the active y-axis candidate name.
func (e *Engine) ChartingVariable() string { return e.y.Name }

// Observations returns the number of matrix rows.
func (e *Engine) Observations() int { return e.Matrix.RowCount() }

// Variables returns the number of criteria signatures.
func (e *Engine) Variables() int { return e.Matrix.ColumnCount() }

// VarNames returns the criteria signatures, index-aligned with matrix
// columns.
func (e *Engine) VarNames() []string { return e.Matrix.VarNames }

// IndexDescription summarizes each variable: its positional index, the
// decomposed criteria values, and the non-NaN observation count, with a
// final synthetic "All" row aggregating all columns.
type IndexDescription struct {
	Columns []string
	Rows    [][]string
}

// IndexDescription builds the list-view summary table.
func (e *Engine) IndexDescription() *IndexDescription {
	desc := &IndexDescription{
		Columns: append(append([]string{"Index"}, e.criteria...), "Reports"),
	}

	for i, name := range e.Matrix.VarNames {
		row := make([]string, 0, len(desc.Columns))
		row = append(row, strconv.Itoa(i))
		row = append(row, e.criteriaValues(name)...)
		row = append(row, strconv.Itoa(e.Matrix.ValidCount(i)))
		desc.Rows = append(desc.Rows, row)
	}

	all := make([]string, len(desc.Columns))
	all[0] = AllVariable
	agg := e.aggregateSeries()
	n := 0
	for _, v := range agg {
		if !math.IsNaN(v) {
			n++
		}
	}
	all[len(all)-1] = strconv.Itoa(n)
	desc.Rows = append(desc.Rows, all)

	return desc
}

// criteriaValues splits a criteria signature back into per-column values,
// padded to the criteria column count.
func (e *Engine) criteriaValues(sig string) []string {
	parts := strings.Split(sig, report.KeySeparator)
	out := make([]string, len(e.criteria))
	for i := range out {
		if i < len(parts) {
			out[i] = parts[i]
		}
	}
	return out
}

// aggregateSeries collapses all columns row-wise with the active policy's
// NaN-skipping reduction.
func (e *Engine) aggregateSeries() []float64 {
	out := make([]float64, e.Matrix.RowCount())
	for i, row := range e.Matrix.Data {
		out[i] = e.policy.AggregateAcross(row)
	}
	return out
}

// series resolves a variable reference: a known name, a positional index,
// or the "All" aggregate.
func (e *Engine) series(ref string) ([]float64, error) {
	if ref == AllVariable {
		return e.aggregateSeries(), nil
	}
	if col, err := e.Matrix.ColumnByName(ref); err == nil {
		return col, nil
	}
	if i, err := strconv.Atoi(ref); err == nil && i >= 0 && i < e.Matrix.ColumnCount() {
		return e.Matrix.Column(i)
	}
	known := append([]string{AllVariable}, e.Matrix.VarNames...)
	return nil, core.NewUnknownVariableError(ref, known)
}

// ControlChart computes the individuals chart for one variable reference.
// Clamp limits default to the charting candidate's template limits when the
// caller supplies none.
func (e *Engine) ControlChart(ref string, p Params) (*chart.ControlChart, error) {
	y, err := e.series(ref)
	if err != nil {
		return nil, err
	}
	return chart.New(y, nil, chart.Params{
		Std:      p.Std,
		UCLLimit: firstLimit(p.UCLLimit, e.y.UCLLimit),
		LCLLimit: firstLimit(p.LCLLimit, e.y.LCLLimit),
		Range:    p.Range,
	})
}

// ControlCharts computes the chart for every variable plus "All". The map
// is dual-keyed by variable name and by positional index for caller
// convenience.
func (e *Engine) ControlCharts(p Params) (map[string]*chart.ControlChart, error) {
	out := make(map[string]*chart.ControlChart, e.Matrix.ColumnCount()+1)
	for i, name := range e.Matrix.VarNames {
		c, err := e.ControlChart(name, p)
		if err != nil {
			return nil, err
		}
		out[name] = c
		out[strconv.Itoa(i)] = c
	}
	all, err := e.ControlChart(AllVariable, p)
	if err != nil {
		return nil, err
	}
	out[AllVariable] = all
	return out, nil
}

// HotellingT2 computes the multivariate chart over the full matrix at the
// given significance level.
func (e *Engine) HotellingT2(alpha float64) (*chart.HotellingT2, error) {
	return chart.NewHotellingT2(e.Matrix.Data, alpha)
}

func firstLimit(override, fallback *float64) *float64 {
	if override != nil {
		return override
	}
	return fallback
}
