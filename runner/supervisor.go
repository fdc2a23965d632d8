package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/flakewatch/flakewatch/metrics"
	"github.com/flakewatch/flakewatch/types"
)

var (
	// ErrNoTestsFound is returned before any run starts when the target
	// resolves to zero discoverable tests. Running anyway would produce a
	// misleading "0/0 reliable" result.
	ErrNoTestsFound = errors.New("no tests found in target")

	// ErrAllRunsFailed is returned when not a single run produced a usable
	// recorder. Individual run failures are recovered locally; only the
	// total loss is escalated.
	ErrAllRunsFailed = errors.New("all runs failed to complete")

	// errRunIncomplete marks a run whose event stream ended before
	// suiteDone, including runs killed by the per-run timeout. The run is
	// excluded from aggregation with a warning.
	errRunIncomplete = errors.New("run ended before suiteDone")
)

// interRunDelay is applied between sequential runs to reduce resource
// contention and timing-correlated flakiness. Parallel mode skips it.
const interRunDelay = 500 * time.Millisecond

// RunLogStore persists raw event streams per run for post-hoc debugging.
// Implemented by logging.FileLogger.
type RunLogStore interface {
	OpenRun(runIndex int) (io.WriteCloser, error)
}

// SupervisorConfig configures a Supervisor.
type SupervisorConfig struct {
	Runner Runner
	// RunID pins the analysis run ID so callers can key artifacts before
	// execution starts. A fresh UUID is generated when empty.
	RunID string
	// RunCount is the number of repeated executions, >= 1.
	RunCount int
	// Concurrency bounds how many runs execute simultaneously, >= 1.
	// 1 means sequential with an inter-run delay.
	Concurrency int
	// RunTimeout is the global ceiling for one run; a run exceeding it is
	// treated as failed-to-complete, same as a crash. Zero disables it.
	RunTimeout time.Duration
	// LogStore, when set, receives each run's raw event lines.
	LogStore RunLogStore
	Log      log.Logger
}

// ExecutionResult is the supervisor's output: the ordered recorders of all
// attempted runs plus exclusion bookkeeping. Excluded runs are represented
// by nil entries in Recorders so indexes stay aligned with run order.
type ExecutionResult struct {
	RunID          string
	Target         string
	Recorders      []*RunRecorder
	LaunchFailures int
	IncompleteRuns int
}

// Completed returns the usable recorders in run order. This is the
// single-writer-to-multiple-readers handoff point: once returned, the
// recorders are read-only.
func (r *ExecutionResult) Completed() []*RunRecorder {
	var completed []*RunRecorder
	for _, rec := range r.Recorders {
		if rec != nil && rec.Completed() {
			completed = append(completed, rec)
		}
	}
	return completed
}

// Supervisor invokes the external runner N times against one target and
// collects one RunRecorder per run. Runs never share mutable state; in
// parallel mode each run is bound to its own recorder and results are
// merged only after completion.
type Supervisor struct {
	runner   Runner
	runID    string
	runCount int
	workers  int
	timeout  time.Duration
	logStore RunLogStore
	log      log.Logger
	tracer   trace.Tracer
}

// NewSupervisor validates the configuration and creates a supervisor.
func NewSupervisor(cfg SupervisorConfig) (*Supervisor, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.RunCount < 1 {
		return nil, fmt.Errorf("run count must be >= 1, got %d", cfg.RunCount)
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", cfg.Concurrency)
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}

	return &Supervisor{
		runner:   cfg.Runner,
		runID:    cfg.RunID,
		runCount: cfg.RunCount,
		workers:  cfg.Concurrency,
		timeout:  cfg.RunTimeout,
		logStore: cfg.LogStore,
		log:      cfg.Log.New("component", "supervisor"),
		tracer:   otel.Tracer("execution supervisor"),
	}, nil
}

// Execute drives runCount isolated runs of the target and returns their
// recorders in run order. Per-run failures (launch failure, missing
// suiteDone, run timeout) exclude that run and let the others proceed;
// only zero usable runs is escalated as an error. Cancelling ctx discards
// every in-flight run entirely so partial data never skews reliability;
// already-completed runs are returned alongside the context error.
func (s *Supervisor) Execute(ctx context.Context, target string) (*ExecutionResult, error) {
	identities, err := s.runner.Discover(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("discovering tests in %q: %w", target, err)
	}
	if len(identities) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoTestsFound, target)
	}

	result := &ExecutionResult{
		RunID:     s.runID,
		Target:    target,
		Recorders: make([]*RunRecorder, s.runCount),
	}

	s.log.Info("Starting execution",
		"run_id", result.RunID,
		"target", target,
		"tests", len(identities),
		"runs", s.runCount,
		"concurrency", s.workers)

	if s.workers > 1 {
		s.executeParallel(ctx, target, result)
	} else {
		s.executeSequential(ctx, target, result)
	}

	if err := ctx.Err(); err != nil {
		// In-flight runs were discarded; runs that already completed are
		// returned so the caller can still aggregate them.
		return result, err
	}

	completed := len(result.Completed())
	if completed == 0 {
		return nil, fmt.Errorf("%w: %d launch failures, %d incomplete",
			ErrAllRunsFailed, result.LaunchFailures, result.IncompleteRuns)
	}
	if completed < s.runCount {
		s.log.Warn("Some runs were excluded from aggregation",
			"run_id", result.RunID,
			"completed", completed,
			"launch_failures", result.LaunchFailures,
			"incomplete", result.IncompleteRuns)
	}

	return result, nil
}

func (s *Supervisor) executeSequential(ctx context.Context, target string, result *ExecutionResult) {
	for i := 0; i < s.runCount; i++ {
		if ctx.Err() != nil {
			return
		}
		s.runOnce(ctx, target, i, result, &sync.Mutex{})

		if i < s.runCount-1 {
			select {
			case <-time.After(interRunDelay):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Supervisor) executeParallel(ctx context.Context, target string, result *ExecutionResult) {
	indexes := make(chan int)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case i, ok := <-indexes:
					if !ok {
						return
					}
					s.runOnce(ctx, target, i, result, &mu)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for i := 0; i < s.runCount; i++ {
		select {
		case indexes <- i:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(indexes)
	wg.Wait()
}

// runOnce executes one run and files its outcome into the shared result.
// The mutex only guards the result bookkeeping; the recorder itself has a
// single writer for its whole lifetime.
func (s *Supervisor) runOnce(ctx context.Context, target string, index int, result *ExecutionResult, mu *sync.Mutex) {
	ctx, span := s.tracer.Start(ctx, fmt.Sprintf("run %d", index))
	defer span.End()

	recorder, err := s.executeRun(ctx, target, index)

	mu.Lock()
	defer mu.Unlock()

	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// A cancelled run contributes nothing, never partial data.
		s.log.Debug("Run discarded", "run", index, "reason", err)
	case errors.Is(err, errRunIncomplete):
		result.IncompleteRuns++
		result.Recorders[index] = recorder
		metrics.RecordRun(metrics.RunIncomplete)
		s.log.Warn("Run never reached suiteDone, excluding from aggregation", "run", index)
	case err != nil:
		result.LaunchFailures++
		metrics.RecordRun(metrics.RunLaunchFailed)
		metrics.RecordErrorDetails("run launch", err)
		s.log.Warn("Run could not start, excluding from aggregation", "run", index, "error", err)
	default:
		result.Recorders[index] = recorder
		metrics.RecordRun(metrics.RunCompleted)
	}
}

// executeRun starts one runner process and consumes its event stream into a
// fresh recorder. Event parsing is strictly sequential: one stream, one
// consumer.
func (s *Supervisor) executeRun(ctx context.Context, target string, index int) (*RunRecorder, error) {
	// The parent distinguishes caller cancellation (discard the run) from
	// the per-run deadline below (failed-to-complete, same as a crash).
	parent := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	stream, err := s.runner.Start(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("starting run %d: %w", index, err)
	}
	defer func() { _ = stream.Close() }()

	var rawLog io.WriteCloser
	if s.logStore != nil {
		rawLog, err = s.logStore.OpenRun(index)
		if err != nil {
			s.log.Error("Failed to open run log, continuing without", "run", index, "error", err)
			rawLog = nil
		} else {
			defer func() { _ = rawLog.Close() }()
		}
	}

	recorder := NewRunRecorder(index)
	var started []types.TestIdentity
	var pendingError *Event

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}

		line := scanner.Bytes()
		if rawLog != nil {
			_, _ = rawLog.Write(append(append([]byte{}, line...), '\n'))
		}

		event, ok := ParseEvent(line)
		if !ok {
			// Noise is tolerated, not fatal.
			continue
		}

		switch event.Event {
		case EventTestStart:
			started = append(started, types.NewTestIdentity(event.File, event.Test))

		case EventRunError:
			// Applies to the next failing testDone on this stream.
			pendingError = &event

		case EventTestDone:
			outcome := types.RunOutcome{
				Identity: types.NewTestIdentity(event.File, event.Test),
				Passed:   event.Passed,
				Duration: time.Duration(event.DurationMillis) * time.Millisecond,
			}
			if !event.Passed && pendingError != nil {
				outcome.ErrorText = pendingError.Message
				outcome.StackTrace = pendingError.StackTrace
			}
			pendingError = nil
			if err := recorder.Record(outcome); err != nil {
				s.log.Warn("Dropping outcome", "run", index, "error", err)
			}

		case EventSuiteDone:
			recorder.Complete()
			s.log.Debug("Run completed", "run", index, "tests", recorder.Len(), "started", len(started))
			return recorder, nil
		}
	}

	if parent.Err() != nil {
		return nil, parent.Err()
	}
	if err := scanner.Err(); err != nil {
		s.log.Warn("Event stream read error", "run", index, "error", err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.log.Warn("Run exceeded the run timeout", "run", index, "timeout", s.timeout)
	}

	recorder.Abandon()
	return recorder, errRunIncomplete
}
