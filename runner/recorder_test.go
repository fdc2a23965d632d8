package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flakewatch/flakewatch/types"
)

func TestRunRecorderRecordsOutcomes(t *testing.T) {
	rec := NewRunRecorder(0)

	outcome := types.RunOutcome{
		Identity: types.NewTestIdentity("test/a_test.dart", "adds"),
		Passed:   true,
		Duration: 100 * time.Millisecond,
	}
	require.NoError(t, rec.Record(outcome))

	got, ok := rec.Outcome(outcome.Identity)
	require.True(t, ok)
	assert.Equal(t, outcome, got)
	assert.Equal(t, 1, rec.Len())
}

func TestRunRecorderRejectsDuplicates(t *testing.T) {
	rec := NewRunRecorder(2)
	outcome := types.RunOutcome{Identity: types.NewTestIdentity("f", "t"), Passed: true}

	require.NoError(t, rec.Record(outcome))
	err := rec.Record(outcome)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestRunRecorderFreezesOnComplete(t *testing.T) {
	rec := NewRunRecorder(0)
	require.NoError(t, rec.Record(types.RunOutcome{Identity: types.NewTestIdentity("f", "t")}))

	rec.Complete()
	assert.True(t, rec.Completed())

	err := rec.Record(types.RunOutcome{Identity: types.NewTestIdentity("f", "other")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frozen")
}

func TestRunRecorderAbandonIsNotCompleted(t *testing.T) {
	rec := NewRunRecorder(0)
	rec.Abandon()

	assert.False(t, rec.Completed())
	require.Error(t, rec.Record(types.RunOutcome{Identity: types.NewTestIdentity("f", "t")}))
}

func TestRunRecorderIdentitiesAreOrdered(t *testing.T) {
	rec := NewRunRecorder(0)
	require.NoError(t, rec.Record(types.RunOutcome{Identity: types.NewTestIdentity("b.dart", "z")}))
	require.NoError(t, rec.Record(types.RunOutcome{Identity: types.NewTestIdentity("a.dart", "y")}))
	require.NoError(t, rec.Record(types.RunOutcome{Identity: types.NewTestIdentity("a.dart", "x")}))

	assert.Equal(t, []types.TestIdentity{
		types.NewTestIdentity("a.dart", "x"),
		types.NewTestIdentity("a.dart", "y"),
		types.NewTestIdentity("b.dart", "z"),
	}, rec.Identities())
}
