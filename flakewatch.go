// Package flakewatch is a test reliability analyzer: it runs a test target
// repeatedly, aggregates per-run outcomes into reliability verdicts,
// classifies failures into structured variants, and profiles test timing.
package flakewatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/flakewatch/flakewatch/adapters/darttest"
	"github.com/flakewatch/flakewatch/adapters/gotest"
	"github.com/flakewatch/flakewatch/aggregator"
	"github.com/flakewatch/flakewatch/exitcodes"
	"github.com/flakewatch/flakewatch/logging"
	"github.com/flakewatch/flakewatch/metrics"
	"github.com/flakewatch/flakewatch/profiler"
	"github.com/flakewatch/flakewatch/registry"
	"github.com/flakewatch/flakewatch/reporting"
	"github.com/flakewatch/flakewatch/runner"
)

// watcher implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &watcher{}

// watcher is the reliability analysis service: it drives one or more
// configured suites through the run/aggregate/classify/profile pipeline.
type watcher struct {
	ctx     context.Context
	config  *Config
	version string
	suites  []registry.Suite
	reports []*reporting.Report

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*watcher, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating flakewatch with config",
		"testDir", config.TestDir,
		"target", config.Target,
		"tool", config.Tool,
		"runs", config.Runs,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	suites, err := resolveSuites(config)
	if err != nil {
		return nil, err
	}

	return &watcher{
		ctx:              ctx,
		config:           config,
		version:          version,
		suites:           suites,
		done:             make(chan struct{}),
		shutdownCallback: shutdownCallback,
	}, nil
}

// resolveSuites builds the suite list either from the YAML suite config or,
// when none is given, from the target/tool flags as a single suite.
func resolveSuites(config *Config) ([]registry.Suite, error) {
	if config.SuiteConfig == "" {
		return []registry.Suite{{
			Name:          "default",
			Target:        config.Target,
			Tool:          config.Tool,
			Runs:          config.Runs,
			Concurrency:   config.Concurrency,
			RunTimeout:    config.RunTimeout,
			SlowThreshold: config.SlowThreshold,
			Command:       config.Command,
		}}, nil
	}

	reg, err := registry.NewRegistry(registry.Config{
		Log:                  config.Log,
		SuiteConfigFile:      config.SuiteConfig,
		DefaultRuns:          config.Runs,
		DefaultConcurrency:   config.Concurrency,
		DefaultRunTimeout:    config.RunTimeout,
		DefaultSlowThreshold: config.SlowThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}
	return reg.Suites(), nil
}

// Start runs the reliability analysis, once or periodically at the
// configured interval.
// Start implements the cliapp.Lifecycle interface.
func (w *watcher) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			w.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	w.ctx = ctx
	w.done = make(chan struct{})
	w.running.Store(true)

	if w.config.RunOnce {
		w.config.Log.Info("Starting flakewatch in run-once mode")
	} else {
		w.config.Log.Info("Starting flakewatch in continuous mode", "interval", w.config.RunInterval)
	}

	err := w.runAnalyses()
	if err != nil {
		// For runtime errors (bad target, zero usable runs), return exit code 2
		w.config.Log.Error("Runtime error running analysis", "error", err)
		return cli.Exit(err.Error(), exitcodes.RuntimeErr)
	}

	if w.config.RunOnce {
		w.config.Log.Info("Analysis completed, exiting (run-once mode)")

		if summary := w.actionItemSummary(); summary != "" {
			w.config.Log.Warn("Run-once analysis found unreliable tests, returning exit code 1")
			return NewTestFailureError(summary)
		}

		// Only need to call this when we're in run-once mode and all tests
		// passed consistently
		go func() {
			w.shutdownCallback(nil)
		}()
		return nil // Success (exit code 0)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.config.Log.Debug("Starting periodic analysis goroutine", "interval", w.config.RunInterval)

		for {
			select {
			case <-time.After(w.config.RunInterval):
				if !w.running.Load() {
					w.config.Log.Debug("Service stopped, exiting periodic analysis")
					return
				}

				w.config.Log.Info("Running periodic analysis")
				if err := w.runAnalyses(); err != nil {
					w.config.Log.Error("Error running periodic analysis", "error", err)
				}

			case <-w.done:
				w.config.Log.Debug("Done signal received, stopping periodic analysis")
				return

			case <-ctx.Done():
				w.config.Log.Debug("Context canceled, stopping periodic analysis")
				w.running.Store(false)
				return
			}
		}
	}()
	w.config.Log.Debug("flakewatch started successfully")
	return nil
}

// runAnalyses analyzes every configured suite and stores the reports.
func (w *watcher) runAnalyses() error {
	reports := make([]*reporting.Report, 0, len(w.suites))
	for _, suite := range w.suites {
		report, err := w.analyzeSuite(suite)
		if err != nil {
			return NewRuntimeError(fmt.Errorf("analyzing suite %q: %w", suite.Name, err))
		}
		reports = append(reports, report)
	}
	w.reports = reports
	return nil
}

// analyzeSuite drives one suite through the full pipeline: supervised runs,
// verdict aggregation, failure classification, performance profiling,
// reporting, and metrics.
func (w *watcher) analyzeSuite(suite registry.Suite) (*reporting.Report, error) {
	start := time.Now()
	runID := uuid.New().String()
	logger := w.config.Log.New("suite", suite.Name, "run_id", runID)

	testRunner, err := w.buildRunner(suite, logger)
	if err != nil {
		return nil, err
	}

	fileLogger, err := logging.NewFileLogger(w.config.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating run log directory: %w", err)
	}

	supervisor, err := runner.NewSupervisor(runner.SupervisorConfig{
		Runner:      testRunner,
		RunID:       runID,
		RunCount:    suite.Runs,
		Concurrency: suite.Concurrency,
		RunTimeout:  suite.RunTimeout,
		LogStore:    fileLogger,
		Log:         logger,
	})
	if err != nil {
		return nil, err
	}

	result, err := supervisor.Execute(w.ctx, suite.Target)
	if err != nil {
		return nil, err
	}

	verdicts, err := aggregator.Aggregate(result.Recorders)
	if err != nil {
		return nil, err
	}
	performance := profiler.Profile(result.Recorders, suite.SlowThreshold)

	report := reporting.Assemble(result.RunID, suite.Target,
		suite.Runs, len(result.Completed()), result.LaunchFailures, result.IncompleteRuns,
		verdicts, performance)

	w.recordMetrics(report, time.Since(start))
	w.saveReports(fileLogger, report, logger)

	printResultsTable(report, w.config.Log)
	fmt.Println(summaryLine(report))

	logger.Info("Analysis completed",
		"tests", len(report.Verdicts),
		"action_items", len(report.ActionItems()),
		"duration", time.Since(start))
	return report, nil
}

// buildRunner selects the adapter for the suite's tool. A suite-level
// Command overrides the configured binary for the dart and go adapters.
func (w *watcher) buildRunner(suite registry.Suite, logger log.Logger) (runner.Runner, error) {
	switch suite.Tool {
	case registry.ToolDart:
		binary := w.config.DartBinary
		if suite.Command != "" {
			binary = suite.Command
		}
		return darttest.New(darttest.Config{
			DartBinary: binary,
			WorkDir:    w.config.TestDir,
			Log:        logger,
		})
	case registry.ToolGo:
		binary := w.config.GoBinary
		if suite.Command != "" {
			binary = suite.Command
		}
		return gotest.New(gotest.Config{
			GoBinary: binary,
			WorkDir:  w.config.TestDir,
			Log:      logger,
		})
	case registry.ToolCommand:
		return runner.NewProcessRunner(runner.ProcessRunnerConfig{
			Command: strings.Fields(suite.Command),
			WorkDir: w.config.TestDir,
			Log:     logger,
		})
	default:
		return nil, fmt.Errorf("unknown tool %q", suite.Tool)
	}
}

// recordMetrics publishes per-verdict and per-analysis metrics.
func (w *watcher) recordMetrics(report *reporting.Report, elapsed time.Duration) {
	for _, v := range report.Verdicts {
		metrics.RecordVerdict(report.RunID, string(v.Status))
		if v.RepresentativeFailure != nil {
			metrics.RecordFailureKind(report.RunID, string(v.RepresentativeFailure.Kind()))
		}
	}
	result := "pass"
	if len(report.ActionItems()) > 0 {
		result = "fail"
	}
	metrics.RecordAnalysis(report.RunID, result, elapsed)
}

// saveReports writes the markdown and JSON artifacts next to the raw run
// logs. Report persistence is best-effort; a failed write never fails the
// analysis itself.
func (w *watcher) saveReports(fileLogger *logging.FileLogger, report *reporting.Report, logger log.Logger) {
	if path, err := fileLogger.SaveReport("report.md", []byte(reporting.RenderMarkdown(report))); err != nil {
		logger.Error("Failed to write markdown report", "error", err)
	} else {
		logger.Info("Wrote markdown report", "path", path)
	}

	data, err := reporting.RenderJSON(report)
	if err != nil {
		logger.Error("Failed to render JSON report", "error", err)
		return
	}
	if path, err := fileLogger.SaveReport("report.json", data); err != nil {
		logger.Error("Failed to write JSON report", "error", err)
	} else {
		logger.Info("Wrote JSON report", "path", path)
	}
}

// actionItemSummary describes the unreliable tests of the latest analyses,
// or "" when everything passed consistently.
func (w *watcher) actionItemSummary() string {
	var parts []string
	for _, report := range w.reports {
		items := report.ActionItems()
		if len(items) == 0 {
			continue
		}
		stats := report.Stats()
		parts = append(parts, fmt.Sprintf("%s: %d consistently failing, %d flaky of %d tests",
			report.Target, stats.ConsistentFailures, stats.Flaky, stats.Total))
	}
	return strings.Join(parts, "; ")
}

// Stop stops the flakewatch service.
// Stop implements the cliapp.Lifecycle interface.
func (w *watcher) Stop(ctx context.Context) error {
	w.config.Log.Info("Stopping flakewatch")

	if !w.running.Load() {
		w.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	w.running.Store(false)

	w.config.Log.Debug("Sending done signal to goroutines")
	close(w.done)

	w.config.Log.Info("flakewatch stopped successfully")
	return nil
}

// Stopped returns true if the flakewatch service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (w *watcher) Stopped() bool {
	return !w.running.Load()
}
