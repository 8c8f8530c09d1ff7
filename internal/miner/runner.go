// Package miner drives the external PDF-mining executable over a scan
// directory. The miner is an external collaborator: this package only
// launches it and collects the CSV paths it emits.
package miner

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"qachart/domain/core"
)

// Progress reports completed/total jobs as mining advances. Called from
// worker goroutines.
type Progress func(done, total int)

// Runner launches mining subprocesses.
type Runner struct {
	// Executable is the miner binary on PATH or an absolute path.
	Executable string
	// Jobs bounds concurrent subprocesses; values below 1 mean 1.
	Jobs int
}

// Run mines every PDF under scanDir into outputDir, returning the CSV files
// the miner reported. The context cancels in-flight subprocesses.
func (r *Runner) Run(ctx context.Context, scanDir, outputDir string, progress Progress) ([]string, error) {
	pdfs, err := findPDFs(scanDir)
	if err != nil {
		return nil, err
	}
	if len(pdfs) == 0 {
		return nil, nil
	}

	jobs := r.Jobs
	if jobs < 1 {
		jobs = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	var (
		mu      sync.Mutex
		outputs []string
		done    atomic.Int64
	)

	for _, pdf := range pdfs {
		g.Go(func() error {
			jobID := core.NewJobID()
			out, err := r.mineOne(ctx, jobID, pdf, outputDir)

			if progress != nil {
				progress(int(done.Add(1)), len(pdfs))
			}
			if err != nil {
				return err
			}
			if out != "" {
				mu.Lock()
				outputs = append(outputs, out)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

// mineOne runs the miner for a single PDF. The miner prints the CSV path it
// wrote on its last output line.
func (r *Runner) mineOne(ctx context.Context, jobID core.JobID, pdf, outputDir string) (string, error) {
	cmd := exec.CommandContext(ctx, r.Executable, "-o", outputDir, pdf)
	raw, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("miner failed for %s (job %s): %w", pdf, jobID, err)
	}

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	out := strings.TrimSpace(lines[len(lines)-1])
	log.Printf("[Miner] job %s mined %s -> %s", jobID, filepath.Base(pdf), out)
	return out, nil
}

func findPDFs(scanDir string) ([]string, error) {
	var pdfs []string
	err := filepath.WalkDir(scanDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
			pdfs = append(pdfs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", scanDir, err)
	}
	return pdfs, nil
}
