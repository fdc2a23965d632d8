package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/flakewatch/flakewatch/types"
)

// RenderMarkdown formats the report as a markdown document: a summary
// header, the action items with their classified failures and remedies,
// then the full verdict and performance tables.
func RenderMarkdown(report *Report) string {
	var b strings.Builder
	stats := report.Stats()

	b.WriteString(fmt.Sprintf("# Test Reliability Report — %s\n\n", report.Target))
	b.WriteString(fmt.Sprintf("Generated: %s  \n", report.GeneratedAt.Format(time.RFC3339)))
	b.WriteString(fmt.Sprintf("Run ID: `%s`\n\n", report.RunID))

	b.WriteString("## Summary\n\n")
	b.WriteString(fmt.Sprintf("- Runs: %d completed of %d requested\n", report.CompletedRuns, report.RequestedRuns))
	if report.ExcludedRuns() > 0 {
		b.WriteString(fmt.Sprintf("- **Warning**: %d run(s) excluded (%d failed to launch, %d never completed); reliability figures are based on the remaining runs only\n",
			report.ExcludedRuns(), report.LaunchFailures, report.IncompleteRuns))
	}
	b.WriteString(fmt.Sprintf("- Tests: %d total, %d consistently passing, %d consistently failing, %d flaky\n\n",
		stats.Total, stats.ConsistentPasses, stats.ConsistentFailures, stats.Flaky))

	actionItems := report.ActionItems()
	if len(actionItems) == 0 {
		b.WriteString("All tests passed consistently. No action needed.\n")
	} else {
		b.WriteString("## Action Items\n\n")
		for _, v := range actionItems {
			writeActionItem(&b, v)
		}
	}

	b.WriteString("\n## All Verdicts\n\n")
	b.WriteString("| Test | Passed | Failed | Reliability | Status |\n")
	b.WriteString("|---|---:|---:|---:|---|\n")
	for _, v := range report.Verdicts {
		b.WriteString(fmt.Sprintf("| %s | %d | %d | %.1f%% | %s |\n",
			v.Identity.DisplayName(), v.PassCount, v.FailCount, v.Reliability, statusLabel(v.Status)))
	}

	if len(report.Performance) > 0 {
		b.WriteString("\n## Performance\n\n")
		b.WriteString("| Test | Min | Avg | Max | Slow |\n")
		b.WriteString("|---|---:|---:|---:|---|\n")
		for _, p := range report.Performance {
			slow := ""
			if p.IsSlow {
				slow = "yes"
			}
			b.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				p.Identity.DisplayName(), p.Min, p.Average, p.Max, slow))
		}
	}

	return b.String()
}

func writeActionItem(b *strings.Builder, v types.TestVerdict) {
	b.WriteString(fmt.Sprintf("### %s\n\n", v.Identity.String()))
	if v.Status == types.VerdictConsistentFailure {
		b.WriteString(fmt.Sprintf("Deterministic failure: failed all %d run(s). Always reproducible.\n\n", v.FailCount))
	} else {
		b.WriteString(fmt.Sprintf("Flaky: passed %d, failed %d (%.1f%% reliable). Investigate isolation and timing.\n\n",
			v.PassCount, v.FailCount, v.Reliability))
	}
	if v.RepresentativeFailure != nil {
		b.WriteString(fmt.Sprintf("- Classification: `%s`\n", v.RepresentativeFailure.Kind()))
		b.WriteString(fmt.Sprintf("- Failure: %s\n", v.RepresentativeFailure.Summary()))
		b.WriteString(fmt.Sprintf("- Suggested remedy: %s\n\n", v.RepresentativeFailure.Remedy()))
	}
}

func statusLabel(status types.VerdictStatus) string {
	switch status {
	case types.VerdictConsistentPass:
		return "consistent pass"
	case types.VerdictConsistentFailure:
		return "consistent failure"
	case types.VerdictFlaky:
		return "flaky"
	default:
		return string(status)
	}
}
