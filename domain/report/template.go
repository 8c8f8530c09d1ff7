// Package report holds the schema and data-model types for mined QA report
// data: parser templates describing a CSV producer, the wide observation
// matrix, duplicate-value policies, and value coercion.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"qachart/domain/core"
)

// YCandidate is one charting (dependent) variable a template offers,
// with optional clamps applied to computed control limits.
type YCandidate struct {
	Name     string
	Column   int
	UCLLimit *float64
	LCLLimit *float64
}

// ParserTemplate describes the CSV output of one report format: the canonical
// column order, which columns form the observation identity, which form the
// criteria signature, the primary date column, and the charting candidates.
// All indices are resolved to integers at load time; a template is immutable
// after load.
type ParserTemplate struct {
	Name        string
	Columns     []string
	Identity    []int
	Criteria    []int
	Date        int
	YCandidates []YCandidate
}

// columnRef is a schema index that may be persisted as either an integer
// position or a symbolic column name.
type columnRef struct {
	index int
	name  string
	isInt bool
}

func (r *columnRef) UnmarshalJSON(data []byte) error {
	var i int
	if err := json.Unmarshal(data, &i); err == nil {
		r.index = i
		r.isInt = true
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("column reference must be an integer or string: %s", string(data))
	}
	r.name = s
	return nil
}

// ResolveIndex maps a symbolic column reference to its integer position.
// Integer references pass through unchanged.
func (t *ParserTemplate) ResolveIndex(ref columnRef) (int, error) {
	if ref.isInt {
		return ref.index, nil
	}
	for i, col := range t.Columns {
		if col == ref.name {
			return i, nil
		}
	}
	return -1, core.NewUnknownColumnError(ref.name, t.Columns)
}

// ResolveColumn maps a column name to its integer position.
func (t *ParserTemplate) ResolveColumn(name string) (int, error) {
	return t.ResolveIndex(columnRef{name: name})
}

// wire forms for the persisted JSON schema

type yWire struct {
	Index    columnRef `json:"index"`
	UCLLimit *float64  `json:"ucl_limit"`
	LCLLimit *float64  `json:"lcl_limit"`
}

type analysisWire struct {
	Date     columnRef   `json:"date"`
	UID      []columnRef `json:"uid"`
	Criteria []columnRef `json:"criteria"`
	Y        []yWire     `json:"y"`
}

type templateWire struct {
	Name            string       `json:"name"`
	Columns         []string     `json:"columns"`
	AnalysisColumns analysisWire `json:"analysis_columns"`
}

// UnmarshalJSON decodes the persisted schema form, resolving every symbolic
// column reference to an integer index exactly once.
func (t *ParserTemplate) UnmarshalJSON(data []byte) error {
	var w templateWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidTemplate, err)
	}

	out := ParserTemplate{Name: w.Name, Columns: w.Columns}

	var err error
	if out.Date, err = out.ResolveIndex(w.AnalysisColumns.Date); err != nil {
		return err
	}
	if out.Identity, err = out.resolveAll(w.AnalysisColumns.UID); err != nil {
		return err
	}
	if out.Criteria, err = out.resolveAll(w.AnalysisColumns.Criteria); err != nil {
		return err
	}
	for _, y := range w.AnalysisColumns.Y {
		idx, err := out.ResolveIndex(y.Index)
		if err != nil {
			return err
		}
		name := ""
		if idx >= 0 && idx < len(out.Columns) {
			name = out.Columns[idx]
		}
		out.YCandidates = append(out.YCandidates, YCandidate{
			Name:     name,
			Column:   idx,
			UCLLimit: y.UCLLimit,
			LCLLimit: y.LCLLimit,
		})
	}

	if err := out.Validate(); err != nil {
		return err
	}

	*t = out
	return nil
}

// MarshalJSON encodes the persisted schema form with integer indices.
func (t ParserTemplate) MarshalJSON() ([]byte, error) {
	w := templateWire{
		Name:    t.Name,
		Columns: t.Columns,
		AnalysisColumns: analysisWire{
			Date: columnRef{index: t.Date, isInt: true},
		},
	}
	for _, i := range t.Identity {
		w.AnalysisColumns.UID = append(w.AnalysisColumns.UID, columnRef{index: i, isInt: true})
	}
	for _, i := range t.Criteria {
		w.AnalysisColumns.Criteria = append(w.AnalysisColumns.Criteria, columnRef{index: i, isInt: true})
	}
	for _, y := range t.YCandidates {
		w.AnalysisColumns.Y = append(w.AnalysisColumns.Y, yWire{
			Index:    columnRef{index: y.Column, isInt: true},
			UCLLimit: y.UCLLimit,
			LCLLimit: y.LCLLimit,
		})
	}
	return json.Marshal(w)
}

func (r columnRef) MarshalJSON() ([]byte, error) {
	if r.isInt {
		return json.Marshal(r.index)
	}
	return json.Marshal(r.name)
}

func (t *ParserTemplate) resolveAll(refs []columnRef) ([]int, error) {
	out := make([]int, 0, len(refs))
	for _, r := range refs {
		i, err := t.ResolveIndex(r)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

// Validate checks that every index references a valid position in Columns.
func (t *ParserTemplate) Validate() error {
	check := func(field string, i int) error {
		if i < 0 || i >= len(t.Columns) {
			return fmt.Errorf("%w: %s index %d out of range for %d columns",
				core.ErrInvalidTemplate, field, i, len(t.Columns))
		}
		return nil
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("%w: no columns", core.ErrInvalidTemplate)
	}
	if err := check("date", t.Date); err != nil {
		return err
	}
	for _, i := range t.Identity {
		if err := check("uid", i); err != nil {
			return err
		}
	}
	for _, i := range t.Criteria {
		if err := check("criteria", i); err != nil {
			return err
		}
	}
	if len(t.Identity) == 0 {
		return fmt.Errorf("%w: no uid columns", core.ErrInvalidTemplate)
	}
	if len(t.Criteria) == 0 {
		return fmt.Errorf("%w: no criteria columns", core.ErrInvalidTemplate)
	}
	for _, y := range t.YCandidates {
		if err := check("y", y.Column); err != nil {
			return err
		}
	}
	return nil
}

// IdentityColumns returns the column names forming the observation identity.
// With duplicate detection disabled, identity is built from every column that
// is not a criteria column, which makes each source row maximally specific
// and effectively disables merging.
func (t *ParserTemplate) IdentityColumns(duplicateDetection bool) []string {
	if duplicateDetection {
		out := make([]string, 0, len(t.Identity))
		for _, i := range t.Identity {
			out = append(out, t.Columns[i])
		}
		return out
	}

	criteria := make(map[int]bool, len(t.Criteria))
	for _, i := range t.Criteria {
		criteria[i] = true
	}
	var out []string
	for i, col := range t.Columns {
		if !criteria[i] {
			out = append(out, col)
		}
	}
	return out
}

// CriteriaColumns returns the column names forming the criteria signature.
func (t *ParserTemplate) CriteriaColumns() []string {
	out := make([]string, 0, len(t.Criteria))
	for _, i := range t.Criteria {
		out = append(out, t.Columns[i])
	}
	return out
}

// DateColumn returns the primary date column name.
func (t *ParserTemplate) DateColumn() string {
	return t.Columns[t.Date]
}

// ChartingOptions returns the names of all y-axis candidates, in template order.
func (t *ParserTemplate) ChartingOptions() []string {
	out := make([]string, 0, len(t.YCandidates))
	for _, y := range t.YCandidates {
		out = append(out, y.Name)
	}
	return out
}

// YCandidate returns the charting candidate with the given name.
func (t *ParserTemplate) YCandidate(name string) (YCandidate, error) {
	for _, y := range t.YCandidates {
		if y.Name == name {
			return y, nil
		}
	}
	return YCandidate{}, core.NewUnknownVariableError(name, t.ChartingOptions())
}

func (t *ParserTemplate) String() string {
	return fmt.Sprintf("%s (%d columns, %d criteria, %d charting candidates)",
		t.Name, len(t.Columns), len(t.Criteria), len(t.YCandidates))
}

// HasColumn reports whether the template defines the named column.
func (t *ParserTemplate) HasColumn(name string) bool {
	_, err := t.ResolveColumn(strings.TrimSpace(name))
	return err == nil
}
