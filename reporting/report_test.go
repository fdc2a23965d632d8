package reporting

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flakewatch/flakewatch/classifier"
	"github.com/flakewatch/flakewatch/types"
)

func sampleReport() *Report {
	status := 503
	return &Report{
		RunID:          "run-123",
		Target:         "test",
		GeneratedAt:    time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
		RequestedRuns:  5,
		CompletedRuns:  4,
		LaunchFailures: 0,
		IncompleteRuns: 1,
		Verdicts: []types.TestVerdict{
			{
				Identity:    types.NewTestIdentity("test/a_test.dart", "adds"),
				PassCount:   4,
				Reliability: 100.0,
				Status:      types.VerdictConsistentPass,
			},
			{
				Identity:    types.NewTestIdentity("test/b_test.dart", "renders"),
				PassCount:   2,
				FailCount:   2,
				Reliability: 50.0,
				Status:      types.VerdictFlaky,
				RepresentativeFailure: classifier.NetworkError{
					Operation:  "GET",
					Endpoint:   "https://api.example.com",
					StatusCode: &status,
				},
			},
			{
				Identity:    types.NewTestIdentity("test/c_test.dart", "saves"),
				FailCount:   4,
				Reliability: 0.0,
				Status:      types.VerdictConsistentFailure,
				RepresentativeFailure: classifier.AssertionFailure{
					Message:  "Expected: saved",
					Expected: "saved",
					Actual:   "pending",
					Location: "test/c_test.dart:12",
				},
			},
		},
		Performance: []types.PerformanceRecord{
			{
				Identity: types.NewTestIdentity("test/a_test.dart", "adds"),
				Average:  1200 * time.Millisecond,
				Min:      time.Second,
				Max:      1500 * time.Millisecond,
				Total:    4800 * time.Millisecond,
				IsSlow:   true,
			},
		},
	}
}

func TestReportStats(t *testing.T) {
	stats := sampleReport().Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ConsistentPasses)
	assert.Equal(t, 1, stats.ConsistentFailures)
	assert.Equal(t, 1, stats.Flaky)
}

// Consistent failures lead, flaky tests follow, worst reliability first.
func TestReportActionItems(t *testing.T) {
	items := sampleReport().ActionItems()
	require.Len(t, items, 2)
	assert.Equal(t, types.VerdictConsistentFailure, items[0].Status)
	assert.Equal(t, types.VerdictFlaky, items[1].Status)
}

func TestReportExcludedRuns(t *testing.T) {
	assert.Equal(t, 1, sampleReport().ExcludedRuns())
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(sampleReport())

	assert.Contains(t, md, "# Test Reliability Report")
	assert.Contains(t, md, "run-123")
	// Excluded runs must be surfaced, never silently folded in.
	assert.Contains(t, md, "1 run(s) excluded")
	assert.Contains(t, md, "## Action Items")
	assert.Contains(t, md, "test/c_test.dart::saves")
	assert.Contains(t, md, "Suggested remedy:")
	assert.Contains(t, md, "50.0%")
	assert.Contains(t, md, "## Performance")
}

func TestRenderMarkdownAllPassing(t *testing.T) {
	report := sampleReport()
	report.Verdicts = report.Verdicts[:1]
	report.IncompleteRuns = 0
	report.CompletedRuns = 5

	md := RenderMarkdown(report)
	assert.Contains(t, md, "No action needed")
	assert.NotContains(t, md, "excluded")
}

func TestRenderJSON(t *testing.T) {
	data, err := RenderJSON(sampleReport())
	require.NoError(t, err)

	var decoded struct {
		RunID   string `json:"runId"`
		Summary struct {
			Total int `json:"total"`
			Flaky int `json:"flaky"`
		} `json:"summary"`
		Verdicts []struct {
			Test    string `json:"test"`
			Status  string `json:"status"`
			Failure *struct {
				Kind string `json:"kind"`
			} `json:"failure"`
		} `json:"verdicts"`
		Performance []struct {
			AverageMillis int64 `json:"averageMillis"`
			IsSlow        bool  `json:"isSlow"`
		} `json:"performance"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "run-123", decoded.RunID)
	assert.Equal(t, 3, decoded.Summary.Total)
	assert.Equal(t, 1, decoded.Summary.Flaky)

	require.Len(t, decoded.Verdicts, 3)
	assert.Nil(t, decoded.Verdicts[0].Failure)
	require.NotNil(t, decoded.Verdicts[1].Failure)
	assert.Equal(t, "network", decoded.Verdicts[1].Failure.Kind)

	require.Len(t, decoded.Performance, 1)
	assert.Equal(t, int64(1200), decoded.Performance[0].AverageMillis)
	assert.True(t, decoded.Performance[0].IsSlow)
}
