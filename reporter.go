package flakewatch

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/flakewatch/flakewatch/reporting"
	"github.com/flakewatch/flakewatch/types"
)

// printResultsTable prints the verdicts and performance records of one
// analysis to the console.
func printResultsTable(report *reporting.Report, logger log.Logger) {
	logger.Info("Printing results...")

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Test Reliability Results (%s)", report.Target))

	t.AppendHeader(table.Row{
		"Test", "Runs", "Passed", "Failed", "Reliability", "Status", "Failure", "Avg", "Slow",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Runs", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Reliability", Align: text.AlignRight},
		{Name: "Failure", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Avg", Align: text.AlignRight},
	})

	perfByIdentity := make(map[types.TestIdentity]types.PerformanceRecord, len(report.Performance))
	for _, p := range report.Performance {
		perfByIdentity[p.Identity] = p
	}

	for _, v := range report.Verdicts {
		failure := ""
		if v.RepresentativeFailure != nil {
			failure = v.RepresentativeFailure.Summary()
		}

		avg, slow := "", ""
		if p, ok := perfByIdentity[v.Identity]; ok {
			avg = formatDuration(p.Average)
			if p.IsSlow {
				slow = text.FgYellow.Sprint("slow")
			}
		}

		t.AppendRow(table.Row{
			v.Identity.DisplayName(),
			v.PassCount + v.FailCount,
			v.PassCount,
			v.FailCount,
			fmt.Sprintf("%.1f%%", v.Reliability),
			getResultString(v.Status),
			failure,
			avg,
			slow,
		})
	}

	stats := report.Stats()
	t.AppendFooter(table.Row{
		"TOTAL", "", "", "",
		fmt.Sprintf("%d tests", stats.Total),
		fmt.Sprintf("%d flaky / %d failing", stats.Flaky, stats.ConsistentFailures),
		"", "", "",
	})

	t.Render()

	if report.ExcludedRuns() > 0 {
		fmt.Println(text.FgYellow.Sprintf(
			"Warning: %d of %d runs excluded (%d failed to launch, %d never completed); verdicts use the remaining runs only.",
			report.ExcludedRuns(), report.RequestedRuns, report.LaunchFailures, report.IncompleteRuns))
	}
}

// summaryLine is the one-line outcome printed after the table.
func summaryLine(report *reporting.Report) string {
	stats := report.Stats()
	if stats.ConsistentFailures == 0 && stats.Flaky == 0 {
		return text.FgGreen.Sprintf("All %d tests passed consistently across %d runs.",
			stats.Total, report.CompletedRuns)
	}
	return text.FgRed.Sprintf("%d of %d tests need attention: %d consistently failing, %d flaky.",
		stats.ConsistentFailures+stats.Flaky, stats.Total, stats.ConsistentFailures, stats.Flaky)
}

// getResultString returns a colored string representing the verdict status
func getResultString(status types.VerdictStatus) string {
	switch status {
	case types.VerdictConsistentPass:
		return text.FgGreen.Sprint("✓ pass")
	case types.VerdictFlaky:
		return text.FgYellow.Sprint("~ flaky")
	default:
		return text.FgRed.Sprint("✗ fail")
	}
}

// formatDuration renders a duration compactly for table cells.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}
