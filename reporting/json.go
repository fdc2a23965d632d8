package reporting

import (
	"encoding/json"
	"time"

	"github.com/flakewatch/flakewatch/classifier"
)

// jsonReport is the stable machine-readable shape of a Report. The domain
// types stay free of json tags; this file owns the wire format.
type jsonReport struct {
	RunID          string            `json:"runId"`
	Target         string            `json:"target"`
	GeneratedAt    time.Time         `json:"generatedAt"`
	RequestedRuns  int               `json:"requestedRuns"`
	CompletedRuns  int               `json:"completedRuns"`
	LaunchFailures int               `json:"launchFailures"`
	IncompleteRuns int               `json:"incompleteRuns"`
	Summary        jsonStats         `json:"summary"`
	Verdicts       []jsonVerdict     `json:"verdicts"`
	Performance    []jsonPerformance `json:"performance"`
}

type jsonStats struct {
	Total              int `json:"total"`
	ConsistentPasses   int `json:"consistentPasses"`
	ConsistentFailures int `json:"consistentFailures"`
	Flaky              int `json:"flaky"`
}

type jsonVerdict struct {
	File        string       `json:"file"`
	Test        string       `json:"test"`
	PassCount   int          `json:"passCount"`
	FailCount   int          `json:"failCount"`
	Reliability float64      `json:"reliability"`
	Status      string       `json:"status"`
	Failure     *jsonFailure `json:"failure,omitempty"`
}

type jsonFailure struct {
	Kind    string `json:"kind"`
	Summary string `json:"summary"`
	Remedy  string `json:"remedy"`
}

type jsonPerformance struct {
	File          string `json:"file"`
	Test          string `json:"test"`
	AverageMillis int64  `json:"averageMillis"`
	MinMillis     int64  `json:"minMillis"`
	MaxMillis     int64  `json:"maxMillis"`
	TotalMillis   int64  `json:"totalMillis"`
	IsSlow        bool   `json:"isSlow"`
}

// RenderJSON serializes the report for machine consumers (CI annotations,
// dashboards). The output is indented so it diffs cleanly in artifacts.
func RenderJSON(report *Report) ([]byte, error) {
	out := jsonReport{
		RunID:          report.RunID,
		Target:         report.Target,
		GeneratedAt:    report.GeneratedAt,
		RequestedRuns:  report.RequestedRuns,
		CompletedRuns:  report.CompletedRuns,
		LaunchFailures: report.LaunchFailures,
		IncompleteRuns: report.IncompleteRuns,
		Summary:        jsonStats(report.Stats()),
		Verdicts:       make([]jsonVerdict, 0, len(report.Verdicts)),
		Performance:    make([]jsonPerformance, 0, len(report.Performance)),
	}

	for _, v := range report.Verdicts {
		out.Verdicts = append(out.Verdicts, jsonVerdict{
			File:        v.Identity.File,
			Test:        v.Identity.Name,
			PassCount:   v.PassCount,
			FailCount:   v.FailCount,
			Reliability: v.Reliability,
			Status:      string(v.Status),
			Failure:     toJSONFailure(v.RepresentativeFailure),
		})
	}

	for _, p := range report.Performance {
		out.Performance = append(out.Performance, jsonPerformance{
			File:          p.Identity.File,
			Test:          p.Identity.Name,
			AverageMillis: p.Average.Milliseconds(),
			MinMillis:     p.Min.Milliseconds(),
			MaxMillis:     p.Max.Milliseconds(),
			TotalMillis:   p.Total.Milliseconds(),
			IsSlow:        p.IsSlow,
		})
	}

	return json.MarshalIndent(out, "", "  ")
}

func toJSONFailure(f classifier.FailureVariant) *jsonFailure {
	if f == nil {
		return nil
	}
	return &jsonFailure{
		Kind:    string(f.Kind()),
		Summary: f.Summary(),
		Remedy:  f.Remedy(),
	}
}
