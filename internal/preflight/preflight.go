package preflight

import (
	"context"

	"fftoolbox/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all preflight checks for the given config: external
// tools first, then every directory the pipeline writes into.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := CheckTools(ctx, cfg)

	if cfg.Paths.OutputDir == "" {
		results = append(results, Result{
			Name:   "Output directory",
			Passed: true,
			Detail: "not configured (outputs land next to their inputs)",
		})
	} else {
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	}
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	results = append(results, CheckDirectoryAccess("Preset directory", cfg.Paths.PresetDir))

	return results
}

// Failed returns the names of checks that did not pass.
func Failed(results []Result) []string {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r.Name)
		}
	}
	return failed
}
