// Package darttest adapts the `dart test --reporter json` machine format
// to the engine event protocol so Dart and Flutter suites can be analyzed
// for reliability.
package darttest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/flakewatch/flakewatch/runner"
	"github.com/flakewatch/flakewatch/types"
)

// testNameRe matches test('name', ...) and testWidgets('name', ...)
// declarations in a test file. Static discovery is deliberately shallow:
// it exists to answer "does this target contain any tests at all", not to
// enumerate dynamically generated ones.
var testNameRe = regexp.MustCompile(`(?m)^\s*(?:test|testWidgets)\(\s*['"]([^'"]+)['"]`)

// machineEvent is one line of the dart test JSON reporter output. Only the
// fields the translation needs are decoded.
type machineEvent struct {
	Type string `json:"type"`

	Test struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"test"`

	// testDone
	TestID  int    `json:"testID"`
	Result  string `json:"result"`
	Skipped bool   `json:"skipped"`
	Hidden  bool   `json:"hidden"`

	// error
	Error      string `json:"error"`
	StackTrace string `json:"stackTrace"`

	Time int64 `json:"time"`
}

// Runner implements runner.Runner for Dart/Flutter test suites. The target
// is a test directory or file path relative to the working directory.
type Runner struct {
	dartBinary string
	workDir    string
	log        log.Logger
}

// Config configures a darttest Runner.
type Config struct {
	// DartBinary is the tool to invoke; defaults to "dart". Set it to
	// "flutter" for widget test suites.
	DartBinary string
	// WorkDir is the package root the target lives in.
	WorkDir string
	Log     log.Logger
}

// New creates a Dart test runner adapter.
func New(cfg Config) (*Runner, error) {
	if cfg.WorkDir == "" {
		return nil, fmt.Errorf("work directory is required")
	}
	if cfg.DartBinary == "" {
		cfg.DartBinary = "dart"
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	return &Runner{
		dartBinary: cfg.DartBinary,
		workDir:    cfg.WorkDir,
		log:        cfg.Log.New("component", "darttest-runner"),
	}, nil
}

// Discover walks the target for *_test.dart files and extracts their
// declared test names.
func (r *Runner) Discover(ctx context.Context, target string) ([]types.TestIdentity, error) {
	root := filepath.Join(r.workDir, target)

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("resolving target %q: %w", target, err)
	}

	var files []string
	if info.IsDir() {
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), "_test.dart") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking target %q: %w", target, err)
		}
	} else if strings.HasSuffix(root, "_test.dart") {
		files = []string{root}
	}

	var identities []types.TestIdentity
	for _, file := range files {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		rel, err := filepath.Rel(r.workDir, file)
		if err != nil {
			rel = file
		}
		for _, m := range testNameRe.FindAllStringSubmatch(string(content), -1) {
			identities = append(identities, types.NewTestIdentity(rel, m[1]))
		}
	}
	return identities, nil
}

// Start launches one `dart test --reporter json` run of the target and
// returns a stream of translated engine protocol events.
func (r *Runner) Start(ctx context.Context, target string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, r.dartBinary, "test", "--reporter", "json", target)
	cmd.Dir = r.workDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("attaching stdout pipe: %w", err)
	}

	r.log.Debug("Starting dart test run", "command", cmd.String())
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting dart test: %w", err)
	}

	pr, pw := io.Pipe()
	go func() {
		r.translate(stdout, pw)
		_ = cmd.Wait()
		_ = pw.Close()
	}()
	return pr, nil
}

// runningTest tracks an in-flight test between its testStart and testDone
// machine events.
type runningTest struct {
	identity  types.TestIdentity
	startTime int64
}

// translate converts dart machine events into engine protocol lines.
// Hidden tests (test loaders) and skips contribute nothing. The reporter's
// terminal "done" event becomes the engine's suiteDone, so a crashed dart
// process surfaces as failed-to-complete.
func (r *Runner) translate(in io.Reader, out io.Writer) {
	running := make(map[int]runningTest)

	write := func(event runner.Event) {
		line := runner.MarshalEvent(event)
		_, _ = out.Write(append(line, '\n'))
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		var event machineEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}

		switch event.Type {
		case "testStart":
			identity := types.NewTestIdentity(fileFromURL(event.Test.URL), event.Test.Name)
			running[event.Test.ID] = runningTest{identity: identity, startTime: event.Time}
			if event.Test.URL != "" {
				write(runner.Event{
					Event: runner.EventTestStart,
					File:  identity.File,
					Test:  identity.Name,
				})
			}

		case "error":
			write(runner.Event{
				Event:      runner.EventRunError,
				Message:    event.Error,
				StackTrace: event.StackTrace,
			})

		case "testDone":
			test, ok := running[event.TestID]
			if !ok {
				continue
			}
			delete(running, event.TestID)
			// Loader pseudo-tests have no URL; they are reported hidden.
			if event.Hidden || event.Skipped || test.identity.File == "" {
				continue
			}
			write(runner.Event{
				Event:          runner.EventTestDone,
				File:           test.identity.File,
				Test:           test.identity.Name,
				Passed:         event.Result == "success",
				DurationMillis: event.Time - test.startTime,
			})

		case "done":
			write(runner.Event{Event: runner.EventSuiteDone})
		}
	}

	if err := scanner.Err(); err != nil {
		r.log.Warn("dart test output read error", "error", err)
	}
}

// fileFromURL strips the file:// scheme from a test location URL.
func fileFromURL(url string) string {
	return strings.TrimPrefix(url, "file://")
}

var _ runner.Runner = (*Runner)(nil)
