package preflight

import (
	"context"

	"faultscope/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The dataset root check is skipped when no root is configured; the
// assistant can still hold general conversations without one.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir, true))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir, true))

	if cfg.Dataset.Root != "" {
		results = append(results, CheckDirectoryAccess("Dataset root", cfg.Dataset.Root, false))
	} else {
		results = append(results, Result{Name: "Dataset root", Detail: "not configured (set [dataset].root)"})
	}

	results = append(results, CheckStore(ctx, cfg))
	results = append(results, CheckLLM(ctx, "Language model", cfg.NarratorLLM()))
	if router := cfg.RouterLLM(); router.Model != cfg.NarratorLLM().Model {
		results = append(results, CheckLLM(ctx, "Router model", router))
	}

	return results
}

// Passed reports whether every check in the set succeeded.
func Passed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
