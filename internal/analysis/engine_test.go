package analysis

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qachart/adapters/tabular"
	"qachart/domain/core"
	"qachart/domain/report"
)

const testTemplateJSON = `{
	"name": "TestVendor",
	"columns": ["Patient ID", "Date", "Dose", "Dist", "Pass Rate"],
	"analysis_columns": {
		"date": "Date",
		"uid": ["Patient ID", "Date"],
		"criteria": ["Dose", "Dist"],
		"y": [{"index": "Pass Rate", "ucl_limit": 100, "lcl_limit": null}]
	}
}`

const engineCSV = `Patient ID,Date,Dose,Dist,Pass Rate
ANON001,2024-01-02,3,3,98.4
ANON001,2024-01-02,2,2,95.0
ANON002,2024-01-09,3,3,97.1
ANON003,2024-01-16,3,3,99.0
ANON004,2024-01-23,3,3,96.5
`

func newTestEngine(t *testing.T, csv string, cfg Config) *Engine {
	t.Helper()
	var tpl report.ParserTemplate
	require.NoError(t, json.Unmarshal([]byte(testTemplateJSON), &tpl))

	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))
	table, err := tabular.Load(path)
	require.NoError(t, err)

	cfg.DuplicateDetection = true
	e, err := New(table, &tpl, "Pass Rate", cfg)
	require.NoError(t, err)
	return e
}

func TestEngineMatrixAssembly(t *testing.T) {
	e := newTestEngine(t, engineCSV, Config{})

	assert.Equal(t, "TestVendor", e.TemplateName())
	assert.Equal(t, "Pass Rate", e.ChartingVariable())
	assert.Equal(t, 4, e.Observations())
	assert.Equal(t, 2, e.Variables())
	assert.Equal(t, []string{"2 && 2", "3 && 3"}, e.VarNames())
}

func TestEngineUnknownChartingVariable(t *testing.T) {
	var tpl report.ParserTemplate
	require.NoError(t, json.Unmarshal([]byte(testTemplateJSON), &tpl))

	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, os.WriteFile(path, []byte(engineCSV), 0o644))
	table, err := tabular.Load(path)
	require.NoError(t, err)

	_, err = New(table, &tpl, "Gamma Index", Config{})
	assert.ErrorIs(t, err, core.ErrUnknownVariable)
}

func TestIndexDescriptionShape(t *testing.T) {
	e := newTestEngine(t, engineCSV, Config{})
	desc := e.IndexDescription()

	assert.Equal(t, []string{"Index", "Dose", "Dist", "Reports"}, desc.Columns)
	require.Len(t, desc.Rows, e.Variables()+1)

	assert.Equal(t, []string{"0", "2", "2", "1"}, desc.Rows[0])
	assert.Equal(t, []string{"1", "3", "3", "4"}, desc.Rows[1])

	all := desc.Rows[len(desc.Rows)-1]
	assert.Equal(t, AllVariable, all[0])
	assert.Equal(t, "4", all[len(all)-1])
}

func TestControlChartPerVariable(t *testing.T) {
	e := newTestEngine(t, engineCSV, Config{})

	c, err := e.ControlChart("3 && 3", Params{})
	require.NoError(t, err)
	_, y := c.ChartData()
	require.Len(t, y, 4)
	assert.InDelta(t, (98.4+97.1+99.0+96.5)/4, c.CenterLine(), 1e-9)
}

func TestControlChartAllAggregate(t *testing.T) {
	e := newTestEngine(t, engineCSV, Config{})

	c, err := e.ControlChart(AllVariable, Params{})
	require.NoError(t, err)
	_, y := c.ChartData()
	require.Len(t, y, 4)
	// default policy is first; across variables it takes the row max
	assert.Equal(t, 98.4, y[0])
}

func TestControlChartTemplateClampApplies(t *testing.T) {
	csv := `Patient ID,Date,Dose,Dist,Pass Rate
ANON001,2024-01-02,3,3,99.0
ANON002,2024-01-09,3,3,85.0
ANON003,2024-01-16,3,3,99.5
ANON004,2024-01-23,3,3,98.0
`
	e := newTestEngine(t, csv, Config{})

	c, err := e.ControlChart("3 && 3", Params{})
	require.NoError(t, err)
	_, ucl := c.ControlLimits()
	// ucl_limit 100 from the template caps the computed limit
	assert.LessOrEqual(t, ucl, 100.0)
}

func TestControlChartByIndexAndName(t *testing.T) {
	e := newTestEngine(t, engineCSV, Config{})

	byName, err := e.ControlChart("3 && 3", Params{})
	require.NoError(t, err)
	byIndex, err := e.ControlChart("1", Params{})
	require.NoError(t, err)
	assert.Equal(t, byName.CenterLine(), byIndex.CenterLine())

	_, err = e.ControlChart("nope", Params{})
	assert.ErrorIs(t, err, core.ErrUnknownVariable)
}

func TestControlChartsDualKeyed(t *testing.T) {
	e := newTestEngine(t, engineCSV, Config{})
	charts, err := e.ControlCharts(Params{})
	require.NoError(t, err)

	// one entry per name, per index, plus All
	require.Contains(t, charts, "3 && 3")
	require.Contains(t, charts, "1")
	require.Contains(t, charts, AllVariable)
	assert.Same(t, charts["3 && 3"], charts["1"])
}

func TestHotellingFromEngine(t *testing.T) {
	csv := `Patient ID,Date,Dose,Dist,Pass Rate
ANON001,2024-01-02,3,3,98.4
ANON001,2024-01-02,2,2,95.0
ANON002,2024-01-09,3,3,97.1
ANON002,2024-01-09,2,2,94.0
ANON003,2024-01-16,3,3,99.0
ANON003,2024-01-16,2,2,96.1
ANON004,2024-01-23,3,3,96.5
ANON004,2024-01-23,2,2,93.2
ANON005,2024-01-30,3,3,97.8
ANON005,2024-01-30,2,2,95.5
`
	e := newTestEngine(t, csv, Config{})
	h, err := e.HotellingT2(0.05)
	require.NoError(t, err)
	assert.Len(t, h.Q, e.Observations())
	assert.False(t, math.IsNaN(h.UCL))
}
