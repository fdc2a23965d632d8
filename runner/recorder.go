package runner

import (
	"fmt"
	"sort"

	"github.com/flakewatch/flakewatch/types"
)

// RunRecorder owns the raw outcomes of exactly one run. It is populated
// incrementally by the supervisor while the run's event stream is consumed
// and frozen once the runner exits. After the handoff to aggregation it is
// read-only; the single-writer discipline is what makes the parallel mode
// lock-free.
type RunRecorder struct {
	runIndex  int
	outcomes  map[types.TestIdentity]types.RunOutcome
	completed bool
	frozen    bool
}

// NewRunRecorder creates an empty recorder for the run at the given index.
func NewRunRecorder(runIndex int) *RunRecorder {
	return &RunRecorder{
		runIndex: runIndex,
		outcomes: make(map[types.TestIdentity]types.RunOutcome),
	}
}

// RunIndex returns the zero-based index of the run this recorder belongs to.
func (r *RunRecorder) RunIndex() int { return r.runIndex }

// Record stores one test's outcome. The first outcome per identity wins;
// a duplicate testDone for the same identity within one run indicates a
// misbehaving runner and is rejected.
func (r *RunRecorder) Record(outcome types.RunOutcome) error {
	if r.frozen {
		return fmt.Errorf("run %d: recorder is frozen", r.runIndex)
	}
	if _, exists := r.outcomes[outcome.Identity]; exists {
		return fmt.Errorf("run %d: duplicate outcome for %s", r.runIndex, outcome.Identity)
	}
	r.outcomes[outcome.Identity] = outcome
	return nil
}

// Complete freezes the recorder and marks the run as having reached its
// terminal suiteDone event.
func (r *RunRecorder) Complete() {
	r.completed = true
	r.frozen = true
}

// Abandon freezes the recorder without marking it completed. Used for runs
// whose event stream ended before suiteDone.
func (r *RunRecorder) Abandon() {
	r.frozen = true
}

// Completed reports whether the run reached suiteDone. Only completed
// recorders participate in aggregation.
func (r *RunRecorder) Completed() bool { return r.completed }

// Outcome returns the recorded outcome for an identity, if any.
func (r *RunRecorder) Outcome(id types.TestIdentity) (types.RunOutcome, bool) {
	outcome, ok := r.outcomes[id]
	return outcome, ok
}

// Len returns the number of recorded outcomes.
func (r *RunRecorder) Len() int { return len(r.outcomes) }

// Identities returns the identities observed in this run in deterministic
// order.
func (r *RunRecorder) Identities() []types.TestIdentity {
	ids := make([]types.TestIdentity, 0, len(r.outcomes))
	for id := range r.outcomes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}
