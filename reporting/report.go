// Package reporting renders the engine's computed verdicts and performance
// records into markdown and JSON reports. Rendering is pure; persistence of
// the rendered artifacts is the logging package's job.
package reporting

import (
	"sort"
	"time"

	"github.com/flakewatch/flakewatch/types"
)

// Report is the assembled output of one reliability analysis.
type Report struct {
	RunID       string
	Target      string
	GeneratedAt time.Time

	// Run bookkeeping. ExcludedRuns > 0 means the reliability figures are
	// based on fewer runs than requested; reports must surface this so a
	// reader never mistakes "insufficient data" for a clean verdict.
	RequestedRuns  int
	CompletedRuns  int
	LaunchFailures int
	IncompleteRuns int

	Verdicts    []types.TestVerdict
	Performance []types.PerformanceRecord
}

// Stats summarizes verdict counts for one report.
type Stats struct {
	Total              int
	ConsistentPasses   int
	ConsistentFailures int
	Flaky              int
}

// Assemble builds a Report from the engine's output.
func Assemble(runID, target string, requestedRuns, completedRuns, launchFailures, incompleteRuns int,
	verdicts []types.TestVerdict, performance []types.PerformanceRecord) *Report {
	return &Report{
		RunID:          runID,
		Target:         target,
		GeneratedAt:    time.Now(),
		RequestedRuns:  requestedRuns,
		CompletedRuns:  completedRuns,
		LaunchFailures: launchFailures,
		IncompleteRuns: incompleteRuns,
		Verdicts:       verdicts,
		Performance:    performance,
	}
}

// Stats tallies the report's verdicts.
func (r *Report) Stats() Stats {
	stats := Stats{Total: len(r.Verdicts)}
	for _, v := range r.Verdicts {
		switch v.Status {
		case types.VerdictConsistentPass:
			stats.ConsistentPasses++
		case types.VerdictConsistentFailure:
			stats.ConsistentFailures++
		case types.VerdictFlaky:
			stats.Flaky++
		}
	}
	return stats
}

// ActionItems returns the verdicts needing engineer attention: consistent
// failures first (deterministic bugs), then flaky tests (instability
// signals), each group ordered by reliability ascending so the worst
// offenders lead.
func (r *Report) ActionItems() []types.TestVerdict {
	var failures, flaky []types.TestVerdict
	for _, v := range r.Verdicts {
		switch v.Status {
		case types.VerdictConsistentFailure:
			failures = append(failures, v)
		case types.VerdictFlaky:
			flaky = append(flaky, v)
		}
	}
	sortByReliability(failures)
	sortByReliability(flaky)
	return append(failures, flaky...)
}

// ExcludedRuns returns how many requested runs contributed no data.
func (r *Report) ExcludedRuns() int {
	return r.LaunchFailures + r.IncompleteRuns
}

func sortByReliability(verdicts []types.TestVerdict) {
	sort.Slice(verdicts, func(i, j int) bool {
		if verdicts[i].Reliability != verdicts[j].Reliability {
			return verdicts[i].Reliability < verdicts[j].Reliability
		}
		return verdicts[i].Identity.Less(verdicts[j].Identity)
	})
}
