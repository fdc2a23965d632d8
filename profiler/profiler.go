// Package profiler derives per-test duration statistics from the completed
// run recorders and flags tests exceeding a configurable slow threshold.
package profiler

import (
	"sort"
	"time"

	"github.com/flakewatch/flakewatch/runner"
	"github.com/flakewatch/flakewatch/types"
)

// DefaultSlowThreshold flags tests averaging above one second. Tunable via
// configuration; the value is a convention, not load-bearing semantics.
const DefaultSlowThreshold = 1000 * time.Millisecond

// Profile computes min/avg/max/total duration per test across every
// completed run that executed it. Durations from failed runs are included:
// a test's speed is still meaningful when it fails. Pure and side-effect
// free; empty input yields empty output.
func Profile(recorders []*runner.RunRecorder, slowThreshold time.Duration) []types.PerformanceRecord {
	durations := make(map[types.TestIdentity][]time.Duration)
	for _, rec := range recorders {
		if rec == nil || !rec.Completed() {
			continue
		}
		for _, id := range rec.Identities() {
			outcome, _ := rec.Outcome(id)
			durations[id] = append(durations[id], outcome.Duration)
		}
	}

	records := make([]types.PerformanceRecord, 0, len(durations))
	for id, samples := range durations {
		records = append(records, buildRecord(id, samples, slowThreshold))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Identity.Less(records[j].Identity) })
	return records
}

func buildRecord(id types.TestIdentity, samples []time.Duration, slowThreshold time.Duration) types.PerformanceRecord {
	record := types.PerformanceRecord{
		Identity: id,
		Min:      samples[0],
		Max:      samples[0],
	}
	for _, d := range samples {
		record.Total += d
		if d < record.Min {
			record.Min = d
		}
		if d > record.Max {
			record.Max = d
		}
	}
	record.Average = record.Total / time.Duration(len(samples))
	record.IsSlow = record.Average > slowThreshold
	return record
}
