package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qachart/domain/core"
	"qachart/domain/report"
)

func TestDefaults(t *testing.T) {
	opts := Default()
	assert.Equal(t, report.PolicyFirst, opts.DuplicatePolicy)
	assert.True(t, opts.DuplicateDetection)
	assert.Equal(t, 3.0, opts.StdDeviations)
	assert.Equal(t, 0.05, opts.Alpha)
	assert.GreaterOrEqual(t, opts.MinerJobs, 1)
	require.NoError(t, opts.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	opts, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, Default().StdDeviations, opts.StdDeviations)
}

func TestLoadFileOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"duplicate_policy": "mean", "std_deviations": 2.5}`), 0o644))

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, report.PolicyMean, opts.DuplicatePolicy)
	assert.Equal(t, 2.5, opts.StdDeviations)
	// untouched fields keep their defaults
	assert.Equal(t, Default().Alpha, opts.Alpha)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"std_deviations": 2.5}`), 0o644))
	t.Setenv("QACHART_STD_DEVIATIONS", "4")
	t.Setenv("QACHART_DUPLICATE_POLICY", "max")

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4.0, opts.StdDeviations)
	assert.Equal(t, report.PolicyMax, opts.DuplicatePolicy)
}

func TestLoadRejectsBadEnvPolicy(t *testing.T) {
	t.Setenv("QACHART_DUPLICATE_POLICY", "median")
	_, err := Load("")
	assert.ErrorIs(t, err, core.ErrInvalidPolicy)
}

func TestValidate(t *testing.T) {
	opts := Default()
	opts.StdDeviations = 0
	assert.Error(t, opts.Validate())

	opts = Default()
	opts.Alpha = 1.5
	assert.Error(t, opts.Validate())

	opts = Default()
	opts.MinerJobs = 0
	assert.Error(t, opts.Validate())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "options.json")

	opts := Default()
	opts.DuplicatePolicy = report.PolicyMean
	opts.StdDeviations = 2
	require.NoError(t, opts.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, opts.DuplicatePolicy, loaded.DuplicatePolicy)
	assert.Equal(t, opts.StdDeviations, loaded.StdDeviations)
}

func TestFieldsEnumeration(t *testing.T) {
	fields := Default().Fields()
	assert.Equal(t, "first", fields["duplicate_policy"])
	assert.Equal(t, "3", fields["std_deviations"])
	assert.Contains(t, fields, "archive_path")
}
