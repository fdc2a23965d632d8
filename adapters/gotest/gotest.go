// Package gotest adapts `go test -json` output to the engine event
// protocol so Go test suites can be analyzed for reliability.
package gotest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/flakewatch/flakewatch/runner"
	"github.com/flakewatch/flakewatch/testlist"
	"github.com/flakewatch/flakewatch/types"
)

// test2json action constants.
// See https://cs.opensource.google/go/go/+/master:src/cmd/test2json/main.go
const (
	actionStart  = "start"
	actionRun    = "run"
	actionPass   = "pass"
	actionFail   = "fail"
	actionSkip   = "skip"
	actionOutput = "output"
)

// testEvent is one line of go test -json output.
type testEvent struct {
	Time    time.Time
	Action  string
	Package string
	Test    string
	Output  string
	Elapsed float64
}

// Runner implements runner.Runner for Go test suites. The target is a
// package path (import path or ./relative) within the working directory.
type Runner struct {
	goBinary string
	workDir  string
	log      log.Logger
}

// Config configures a gotest Runner.
type Config struct {
	// GoBinary is the go tool to invoke; defaults to "go".
	GoBinary string
	// WorkDir is the module root the target packages live in.
	WorkDir string
	Log     log.Logger
}

// New creates a Go test runner adapter.
func New(cfg Config) (*Runner, error) {
	if cfg.WorkDir == "" {
		return nil, fmt.Errorf("work directory is required")
	}
	if cfg.GoBinary == "" {
		cfg.GoBinary = "go"
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	return &Runner{
		goBinary: cfg.GoBinary,
		workDir:  cfg.WorkDir,
		log:      cfg.Log.New("component", "gotest-runner"),
	}, nil
}

// Discover parses the target package's test files and returns their test
// functions without running anything.
func (r *Runner) Discover(ctx context.Context, target string) ([]types.TestIdentity, error) {
	return testlist.FindTests(target, r.workDir)
}

// Start launches one `go test -json` run of the target and returns a
// stream of translated engine protocol events.
func (r *Runner) Start(ctx context.Context, target string) (io.ReadCloser, error) {
	args := []string{"test", target, "-count", "1", "-v", "-json"}

	cmd := exec.CommandContext(ctx, r.goBinary, args...)
	cmd.Dir = r.workDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("attaching stdout pipe: %w", err)
	}

	r.log.Debug("Starting go test run", "command", cmd.String())
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting go test: %w", err)
	}

	pr, pw := io.Pipe()
	go func() {
		translate(stdout, pw, r.log)
		_ = cmd.Wait()
		_ = pw.Close()
	}()
	return pr, nil
}

// translate converts test2json events into engine protocol lines. The
// terminal suiteDone is only emitted when every package that started also
// reported a result; a crashed `go test` run therefore surfaces as
// failed-to-complete instead of a truncated-but-complete suite.
func translate(in io.Reader, out io.Writer, logger log.Logger) {
	packagesStarted := 0
	packagesFinished := 0
	sawPackage := false
	failureOutput := make(map[string]*strings.Builder)

	write := func(event runner.Event) {
		line := runner.MarshalEvent(event)
		_, _ = out.Write(append(line, '\n'))
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		var event testEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			// Non-JSON lines (build output, noise) are ignored.
			continue
		}

		switch event.Action {
		case actionStart:
			sawPackage = true
			packagesStarted++

		case actionRun:
			if event.Test != "" {
				write(runner.Event{
					Event: runner.EventTestStart,
					File:  event.Package,
					Test:  event.Test,
				})
			}

		case actionOutput:
			if event.Test == "" {
				continue
			}
			key := event.Package + "/" + event.Test
			if failureOutput[key] == nil {
				failureOutput[key] = &strings.Builder{}
			}
			failureOutput[key].WriteString(event.Output)

		case actionPass, actionFail, actionSkip:
			if event.Test == "" {
				packagesFinished++
				continue
			}
			// Skipped tests contribute no outcome; the engine tracks
			// pass/fail only.
			if event.Action == actionSkip {
				continue
			}
			key := event.Package + "/" + event.Test
			if event.Action == actionFail {
				message := ""
				if b := failureOutput[key]; b != nil {
					message = strings.TrimSpace(b.String())
				}
				write(runner.Event{
					Event:   runner.EventRunError,
					Message: message,
				})
			}
			delete(failureOutput, key)
			write(runner.Event{
				Event:          runner.EventTestDone,
				File:           event.Package,
				Test:           event.Test,
				Passed:         event.Action == actionPass,
				DurationMillis: int64(event.Elapsed * 1000),
			})
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Warn("go test output read error", "error", err)
		return
	}
	if sawPackage && packagesFinished >= packagesStarted {
		write(runner.Event{Event: runner.EventSuiteDone})
	}
}

var _ runner.Runner = (*Runner)(nil)
