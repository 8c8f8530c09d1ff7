// Package schema manages the parser-template registry: persisted JSON
// templates on disk, built-in vendor defaults, and non-destructive
// materialization of the defaults.
package schema

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"qachart/domain/core"
	"qachart/domain/report"
)

// Registry resolves template names against a configured directory, falling
// back to the built-in defaults. Loaded once at startup; immutable after.
type Registry struct {
	dir string
}

// NewRegistry creates a registry over the given template directory. The
// directory may not exist yet; discovery then yields only built-ins.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir}
}

// List returns every available template name: persisted files first, then
// built-ins not shadowed by a file. Sorted for determinism.
func (r *Registry) List() ([]string, error) {
	seen := make(map[string]bool)
	var names []string

	entries, err := os.ReadDir(r.dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read template directory %s: %w", r.dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, name := range BuiltinNames() {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

// Load resolves a template by name: a persisted file wins, a built-in is
// the fallback.
func (r *Registry) Load(name string) (*report.ParserTemplate, error) {
	path := filepath.Join(r.dir, name+".json")
	data, err := os.ReadFile(path)
	if err == nil {
		var tpl report.ParserTemplate
		if err := json.Unmarshal(data, &tpl); err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		if tpl.Name == "" {
			tpl.Name = name
		}
		return &tpl, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}

	if tpl, ok := Builtin(name); ok {
		return tpl, nil
	}
	return nil, fmt.Errorf("%w: %s", core.ErrTemplateNotFound, name)
}

// ForFile picks the template matching a miner output file, which is named
// "<Template>_results_<timestamp>.csv" by convention.
func (r *Registry) ForFile(path string) (*report.ParserTemplate, error) {
	base := filepath.Base(path)
	if i := strings.Index(base, "_"); i > 0 {
		base = base[:i]
	} else {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return r.Load(base)
}

// Materialize writes every built-in template missing from the directory to
// disk. Existing files of the same name are never overwritten.
func (r *Registry) Materialize() error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create template directory %s: %w", r.dir, err)
	}
	for _, name := range BuiltinNames() {
		path := filepath.Join(r.dir, name+".json")
		if _, err := os.Stat(path); err == nil {
			continue
		}
		tpl, _ := Builtin(name)
		data, err := json.MarshalIndent(tpl, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode template %s: %w", name, err)
		}
		if err := writeExclusive(path, data); err != nil {
			return err
		}
		log.Printf("[TemplateRegistry] Materialized built-in template %s", path)
	}
	return nil
}

// writeExclusive creates the file only if absent, so a concurrent or
// pre-existing file is never clobbered.
func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
