package preflight

import (
	"context"
	"strings"

	"tubelens/internal/config"
	"tubelens/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Detail   string `json:"detail"`
	Optional bool   `json:"optional,omitempty"`
}

// Report is the aggregate of all checks.
type Report struct {
	Healthy bool     `json:"healthy"`
	Checks  []Result `json:"checks"`
}

// MinFreeBytes is the free space below which the data directory check fails.
const MinFreeBytes = 512 << 20

// RunAll executes the local checks for cfg. Optional checks never make the
// report unhealthy.
func RunAll(ctx context.Context, cfg *config.Config) Report {
	if cfg == nil {
		return Report{}
	}
	var results []Result
	results = append(results, CheckConfiguration(cfg))
	for _, status := range CheckSystemDeps(ctx, cfg) {
		results = append(results, fromDependency(status))
	}
	dirs := []struct{ name, path string }{
		{"Screenshots directory", cfg.Paths.ScreenshotsDir},
		{"Audio directory", cfg.Paths.AudioDir},
		{"Results directory", cfg.Paths.ResultsDir},
		{"Log directory", cfg.Paths.LogDir},
	}
	for _, dir := range dirs {
		results = append(results, CheckDirectoryAccess(dir.name, dir.path))
	}
	results = append(results, CheckFreeSpace("Data directory space", cfg.Paths.DataDir, MinFreeBytes))
	return summarize(results)
}

func summarize(results []Result) Report {
	report := Report{Healthy: true, Checks: results}
	for _, result := range results {
		if !result.Passed && !result.Optional {
			report.Healthy = false
		}
	}
	return report
}

// Merge appends more results and recomputes health.
func (r Report) Merge(results ...Result) Report {
	return summarize(append(append([]Result(nil), r.Checks...), results...))
}

// CheckConfiguration reports missing provider credentials.
func CheckConfiguration(cfg *config.Config) Result {
	const name = "Configuration"
	if err := cfg.Validate(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if missing := cfg.MissingProviderKeys(); len(missing) > 0 {
		return Result{Name: name, Detail: "missing " + strings.Join(missing, ", ") + " (results will be degraded)"}
	}
	return Result{Name: name, Passed: true, Detail: "provider keys configured"}
}

func fromDependency(status deps.Status) Result {
	detail := status.Description
	if !status.Available {
		detail = status.Detail
	} else if status.Command != "" {
		detail = status.Command
	}
	return Result{Name: status.Name, Passed: status.Available, Detail: detail, Optional: status.Optional}
}
