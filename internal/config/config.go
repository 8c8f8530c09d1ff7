// Package config holds user-configurable options as an explicit typed
// struct. String-keyed access exists only at the CLI binding boundary via
// the enumerated field map.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"qachart/domain/report"
)

// Options is the source of the std/duplicate-policy/limit parameters the
// core pipeline consumes on every recompute, plus miner settings.
type Options struct {
	// DuplicatePolicy resolves colliding measurements during reshaping.
	DuplicatePolicy report.DuplicatePolicy `json:"duplicate_policy"`
	// DuplicateDetection merges rows sharing the template identity.
	DuplicateDetection bool `json:"duplicate_detection"`
	// StdDeviations is the control-limit sigma multiplier.
	StdDeviations float64 `json:"std_deviations"`
	// Alpha is the Hotelling T² significance level.
	Alpha float64 `json:"alpha"`
	// MinerJobs bounds concurrent PDF-mining subprocesses.
	MinerJobs int `json:"miner_jobs"`
	// MinerExecutable is the external miner binary.
	MinerExecutable string `json:"miner_executable"`
	// TemplatesDir holds persisted parser templates.
	TemplatesDir string `json:"templates_dir"`
	// ArchivePath is the import-history database file.
	ArchivePath string `json:"archive_path"`
}

// Default returns the options used before any persisted file or environment
// override.
func Default() *Options {
	return &Options{
		DuplicatePolicy:    report.PolicyFirst,
		DuplicateDetection: true,
		StdDeviations:      3,
		Alpha:              0.05,
		MinerJobs:          runtime.NumCPU(),
		MinerExecutable:    "iqdmpdf",
		TemplatesDir:       filepath.Join(userDataDir(), "templates"),
		ArchivePath:        filepath.Join(userDataDir(), "history.db"),
	}
}

// Load builds options from defaults, then a persisted JSON file (ignored if
// absent), then environment variables. A .env file in the working directory
// is honored when present.
func Load(path string) (*Options, error) {
	_ = godotenv.Load()

	opts := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := json.Unmarshal(data, opts); err != nil {
				return nil, fmt.Errorf("failed to parse options file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read options file %s: %w", path, err)
		}
	}

	if err := opts.applyEnv(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Save persists options as JSON.
func (o *Options) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create options directory: %w", err)
	}
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write options file %s: %w", path, err)
	}
	return nil
}

func (o *Options) applyEnv() error {
	if v := os.Getenv("QACHART_DUPLICATE_POLICY"); v != "" {
		p, err := report.ParsePolicy(v)
		if err != nil {
			return err
		}
		o.DuplicatePolicy = p
	}
	if v := os.Getenv("QACHART_DUPLICATE_DETECTION"); v != "" {
		o.DuplicateDetection = parseBool(v)
	}
	if v := os.Getenv("QACHART_STD_DEVIATIONS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid QACHART_STD_DEVIATIONS %q: %w", v, err)
		}
		o.StdDeviations = f
	}
	if v := os.Getenv("QACHART_ALPHA"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid QACHART_ALPHA %q: %w", v, err)
		}
		o.Alpha = f
	}
	if v := os.Getenv("QACHART_MINER_JOBS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid QACHART_MINER_JOBS %q: %w", v, err)
		}
		o.MinerJobs = n
	}
	if v := os.Getenv("QACHART_MINER_EXECUTABLE"); v != "" {
		o.MinerExecutable = v
	}
	if v := os.Getenv("QACHART_TEMPLATES_DIR"); v != "" {
		o.TemplatesDir = v
	}
	if v := os.Getenv("QACHART_ARCHIVE_PATH"); v != "" {
		o.ArchivePath = v
	}
	return nil
}

// Validate checks option invariants.
func (o *Options) Validate() error {
	if _, err := report.ParsePolicy(string(o.DuplicatePolicy)); err != nil {
		return err
	}
	if o.StdDeviations <= 0 {
		return fmt.Errorf("std_deviations must be positive, got %g", o.StdDeviations)
	}
	if o.Alpha <= 0 || o.Alpha >= 1 {
		return fmt.Errorf("alpha must be in (0, 1), got %g", o.Alpha)
	}
	if o.MinerJobs < 1 {
		return fmt.Errorf("miner_jobs must be at least 1, got %d", o.MinerJobs)
	}
	return nil
}

// Fields enumerates option names and display values for the CLI binding
// boundary.
func (o *Options) Fields() map[string]string {
	return map[string]string{
		"duplicate_policy":    string(o.DuplicatePolicy),
		"duplicate_detection": strconv.FormatBool(o.DuplicateDetection),
		"std_deviations":      strconv.FormatFloat(o.StdDeviations, 'g', -1, 64),
		"alpha":               strconv.FormatFloat(o.Alpha, 'g', -1, 64),
		"miner_jobs":          strconv.Itoa(o.MinerJobs),
		"miner_executable":    o.MinerExecutable,
		"templates_dir":       o.TemplatesDir,
		"archive_path":        o.ArchivePath,
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func userDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "qachart")
	}
	return ".qachart"
}
