// Package aggregator combines the recorders of all completed runs into
// per-test reliability verdicts. A test that passed every run is a
// consistent pass, one that failed every run is a deterministic bug, and
// anything in between is flaky. Every test that failed at least once gets a
// classified representative failure.
package aggregator

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/flakewatch/flakewatch/classifier"
	"github.com/flakewatch/flakewatch/runner"
	"github.com/flakewatch/flakewatch/types"
)

// ErrInsufficientRuns is returned when no completed recorder is available:
// there is no data to render a verdict from. The caller must surface this
// as "could not determine", never as 100% reliability.
var ErrInsufficientRuns = errors.New("insufficient completed runs")

// Aggregate computes one TestVerdict per distinct test identity observed
// across the completed recorders. Incomplete recorders are skipped. The
// returned verdicts are ordered deterministically by identity.
func Aggregate(recorders []*runner.RunRecorder) ([]types.TestVerdict, error) {
	completed := completedByRunIndex(recorders)
	if len(completed) == 0 {
		return nil, fmt.Errorf("%w: %d recorders provided, none completed", ErrInsufficientRuns, len(recorders))
	}

	identities := identityUnion(completed)

	verdicts := make([]types.TestVerdict, 0, len(identities))
	for _, id := range identities {
		verdicts = append(verdicts, buildVerdict(id, completed))
	}
	return verdicts, nil
}

// buildVerdict folds one identity's outcomes across all completed runs.
// A run that never observed the test (it crashed before reaching it, or the
// runner filtered it) counts as "not executed", not as a failure.
func buildVerdict(id types.TestIdentity, completed []*runner.RunRecorder) types.TestVerdict {
	verdict := types.TestVerdict{Identity: id}

	var firstFailure *types.RunOutcome
	for _, rec := range completed {
		outcome, ok := rec.Outcome(id)
		if !ok {
			continue
		}
		if outcome.Passed {
			verdict.PassCount++
			continue
		}
		verdict.FailCount++
		if firstFailure == nil {
			// Recorders are ordered by run index, so the first failure
			// seen here is the representative one. The tie-break is run
			// order, which keeps repeated aggregations deterministic.
			o := outcome
			firstFailure = &o
		}
	}

	executed := verdict.PassCount + verdict.FailCount
	if executed > 0 {
		verdict.Reliability = roundToOneDecimal(float64(verdict.PassCount) / float64(executed) * 100)
	}

	switch {
	case verdict.FailCount == 0:
		verdict.Status = types.VerdictConsistentPass
	case verdict.PassCount == 0:
		verdict.Status = types.VerdictConsistentFailure
	default:
		verdict.Status = types.VerdictFlaky
	}

	if firstFailure != nil {
		verdict.RepresentativeFailure = classifier.Classify(firstFailure.ErrorText, firstFailure.StackTrace)
	}
	return verdict
}

// completedByRunIndex filters to completed recorders sorted by run index.
func completedByRunIndex(recorders []*runner.RunRecorder) []*runner.RunRecorder {
	var completed []*runner.RunRecorder
	for _, rec := range recorders {
		if rec != nil && rec.Completed() {
			completed = append(completed, rec)
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].RunIndex() < completed[j].RunIndex()
	})
	return completed
}

// identityUnion returns every identity observed in any completed run, in
// deterministic order.
func identityUnion(completed []*runner.RunRecorder) []types.TestIdentity {
	seen := make(map[types.TestIdentity]struct{})
	var identities []types.TestIdentity
	for _, rec := range completed {
		for _, id := range rec.Identities() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			identities = append(identities, id)
		}
	}
	sort.Slice(identities, func(i, j int) bool { return identities[i].Less(identities[j]) })
	return identities
}

func roundToOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
