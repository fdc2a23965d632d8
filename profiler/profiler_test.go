package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flakewatch/flakewatch/runner"
	"github.com/flakewatch/flakewatch/types"
)

var testID = types.NewTestIdentity("test/a_test.dart", "adds")

func recorderWithDurations(t *testing.T, runIndex int, id types.TestIdentity, passed bool, d time.Duration) *runner.RunRecorder {
	t.Helper()
	rec := runner.NewRunRecorder(runIndex)
	require.NoError(t, rec.Record(types.RunOutcome{Identity: id, Passed: passed, Duration: d}))
	rec.Complete()
	return rec
}

func TestProfileComputesStatistics(t *testing.T) {
	recorders := []*runner.RunRecorder{
		recorderWithDurations(t, 0, testID, true, 100*time.Millisecond),
		recorderWithDurations(t, 1, testID, true, 200*time.Millisecond),
		recorderWithDurations(t, 2, testID, true, 300*time.Millisecond),
	}

	records := Profile(recorders, 150*time.Millisecond)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, 100*time.Millisecond, r.Min)
	assert.Equal(t, 300*time.Millisecond, r.Max)
	assert.Equal(t, 200*time.Millisecond, r.Average)
	assert.Equal(t, 600*time.Millisecond, r.Total)
	assert.True(t, r.IsSlow, "average 200ms exceeds the 150ms threshold")
}

func TestProfileSlowThresholdIsExclusive(t *testing.T) {
	recorders := []*runner.RunRecorder{
		recorderWithDurations(t, 0, testID, true, time.Second),
	}

	// Average exactly at the threshold is not slow.
	records := Profile(recorders, time.Second)
	require.Len(t, records, 1)
	assert.False(t, records[0].IsSlow)
}

func TestProfileIncludesFailedRuns(t *testing.T) {
	recorders := []*runner.RunRecorder{
		recorderWithDurations(t, 0, testID, true, 100*time.Millisecond),
		recorderWithDurations(t, 1, testID, false, 500*time.Millisecond),
	}

	records := Profile(recorders, DefaultSlowThreshold)
	require.Len(t, records, 1)
	assert.Equal(t, 500*time.Millisecond, records[0].Max)
	assert.Equal(t, 300*time.Millisecond, records[0].Average)
}

func TestProfileSkipsIncompleteRecorders(t *testing.T) {
	abandoned := runner.NewRunRecorder(1)
	require.NoError(t, abandoned.Record(types.RunOutcome{Identity: testID, Duration: time.Hour}))
	abandoned.Abandon()

	recorders := []*runner.RunRecorder{
		recorderWithDurations(t, 0, testID, true, 10*time.Millisecond),
		abandoned,
		nil,
	}

	records := Profile(recorders, DefaultSlowThreshold)
	require.Len(t, records, 1)
	assert.Equal(t, 10*time.Millisecond, records[0].Max)
}

func TestProfileEmptyInput(t *testing.T) {
	assert.Empty(t, Profile(nil, DefaultSlowThreshold))
}

func TestProfileRecordsAreOrdered(t *testing.T) {
	a := types.NewTestIdentity("test/a_test.dart", "x")
	b := types.NewTestIdentity("test/b_test.dart", "y")

	rec := runner.NewRunRecorder(0)
	require.NoError(t, rec.Record(types.RunOutcome{Identity: b, Duration: time.Millisecond}))
	require.NoError(t, rec.Record(types.RunOutcome{Identity: a, Duration: time.Millisecond}))
	rec.Complete()

	records := Profile([]*runner.RunRecorder{rec}, DefaultSlowThreshold)
	require.Len(t, records, 2)
	assert.Equal(t, a, records[0].Identity)
	assert.Equal(t, b, records[1].Identity)
}
