package tabular

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qachart/domain/core"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeTemp(t, "results.csv",
		"Patient ID,Date,Pass Rate\nANON001,2024-01-02,98.4\nANON002,2024-01-09,97.1\n")

	table, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Patient ID", "Date", "Pass Rate"}, table.Columns())
	assert.Equal(t, 2, table.RowCount())
	assert.True(t, table.HasColumn("Pass Rate"))

	col, err := table.Column("Patient ID")
	require.NoError(t, err)
	assert.Equal(t, []string{"ANON001", "ANON002"}, col)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.csv"))
	assert.ErrorIs(t, err, core.ErrFileNotFound)
}

func TestLoadRaggedRow(t *testing.T) {
	path := writeTemp(t, "ragged.csv", "a,b,c\n1,2,3\n4,5\n")

	_, err := Load(path)
	require.ErrorIs(t, err, core.ErrMalformedTable)
	assert.Contains(t, err.Error(), "row 2")
}

func TestLoadHeaderless(t *testing.T) {
	path := writeTemp(t, "bare.csv", "ANON001,98.4\nANON002,97.1\n")

	table, err := Load(path, WithoutHeader())
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1"}, table.Columns())
	assert.Equal(t, 2, table.RowCount())
}

func TestLoadAlternateDelimiter(t *testing.T) {
	path := writeTemp(t, "semi.csv", "a;b\n1;2\n")

	table, err := Load(path, WithDelimiter(';'))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, table.Columns())
}

func TestLoadTrimsHeaderWhitespace(t *testing.T) {
	path := writeTemp(t, "pad.csv", " a , b \n1,2\n")

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, table.Columns())
}

func TestUnknownColumn(t *testing.T) {
	path := writeTemp(t, "results.csv", "a\n1\n")
	table, err := Load(path)
	require.NoError(t, err)

	_, err = table.Column("missing")
	assert.ErrorIs(t, err, core.ErrUnknownColumn)
}

func TestNumericColumn(t *testing.T) {
	path := writeTemp(t, "results.csv", "rate\n98.4%\nn/a\n 97.1 \n")
	table, err := Load(path)
	require.NoError(t, err)

	vals, err := table.NumericColumn("rate", nil)
	require.NoError(t, err)
	require.Len(t, vals, 3)
	assert.Equal(t, 98.4, vals[0])
	assert.True(t, math.IsNaN(vals[1]))
	assert.Equal(t, 97.1, vals[2])
}

func TestDistinctValues(t *testing.T) {
	path := writeTemp(t, "results.csv", "dose\n2\n3\n2\n")
	table, err := Load(path)
	require.NoError(t, err)

	vals, err := table.DistinctValues("dose")
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, vals)
}
