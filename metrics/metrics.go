package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "flakewatch"
)

// RunStatus labels the outcome of one supervised run.
type RunStatus string

const (
	RunCompleted    RunStatus = "completed"
	RunIncomplete   RunStatus = "incomplete"
	RunLaunchFailed RunStatus = "launch_failed"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of supervised test runs by outcome",
	}, []string{
		"status",
	})

	verdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "verdicts_total",
		Help:      "Count of per-test verdicts by status",
	}, []string{
		"run_id",
		"status",
	})

	failureKindsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "failure_kinds_total",
		Help:      "Count of classified representative failures by kind",
	}, []string{
		"run_id",
		"kind",
	})

	analysisResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "analysis_results",
		Help:      "Summary of the last reliability analysis",
	}, []string{
		"run_id",
		"result",
	})

	analysisDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "analysis_duration_seconds",
		Help:      "Wall-clock duration of the last reliability analysis",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordRun counts one supervised run by its outcome.
func RecordRun(status RunStatus) {
	if Debug {
		log.Debug("metric inc", "m", "runs_total", "status", status)
	}
	runsTotal.WithLabelValues(string(status)).Inc()
}

// RecordVerdict counts one per-test verdict.
func RecordVerdict(runID string, status string) {
	verdictsTotal.WithLabelValues(runID, status).Inc()
}

// RecordFailureKind counts one classified representative failure.
func RecordFailureKind(runID string, kind string) {
	failureKindsTotal.WithLabelValues(runID, kind).Inc()
}

// RecordAnalysis records the summary of one full reliability analysis.
func RecordAnalysis(runID string, result string, duration time.Duration) {
	analysisResults.WithLabelValues(runID, result).Set(1)
	analysisDuration.WithLabelValues(runID).Set(duration.Seconds())
}
