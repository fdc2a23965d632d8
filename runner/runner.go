// Package runner drives repeated executions of a test target and records
// per-run outcomes. The external test runner is abstracted behind the
// Runner interface; this package only consumes its line-delimited event
// stream.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/flakewatch/flakewatch/types"
)

// Runner is the external collaborator that actually executes test code.
// Start launches one isolated run of the target and returns its event
// stream; reading EOF means the runner process has exited. Implementations
// must not share mutable state between invocations.
type Runner interface {
	// Discover resolves the target to the set of tests it contains,
	// without running any of them.
	Discover(ctx context.Context, target string) ([]types.TestIdentity, error)

	// Start launches one run of the target. The returned stream carries
	// engine protocol events, one per line, possibly interleaved with
	// noise. Closing the stream releases the underlying process.
	Start(ctx context.Context, target string) (io.ReadCloser, error)
}

// ProcessRunner runs an arbitrary command that natively speaks the engine
// event protocol on stdout. The target is appended to the configured
// command line.
type ProcessRunner struct {
	command  []string
	listArgs []string
	workDir  string
	log      log.Logger
}

// ProcessRunnerConfig configures a ProcessRunner.
type ProcessRunnerConfig struct {
	// Command is the executable and fixed arguments, e.g.
	// ["./tool", "run"]. The target is appended per invocation.
	Command []string
	// ListArgs are appended instead of the run arguments during
	// discovery; the command is expected to print one "file::name"
	// identity per line. Defaults to ["--list"].
	ListArgs []string
	WorkDir  string
	Log      log.Logger
}

// NewProcessRunner creates a runner for a protocol-native command.
func NewProcessRunner(cfg ProcessRunnerConfig) (*ProcessRunner, error) {
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("runner command is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
	}
	listArgs := cfg.ListArgs
	if len(listArgs) == 0 {
		listArgs = []string{"--list"}
	}
	return &ProcessRunner{
		command:  cfg.Command,
		listArgs: listArgs,
		workDir:  cfg.WorkDir,
		log:      cfg.Log.New("component", "process-runner"),
	}, nil
}

// Discover runs the command in list mode and parses one identity per line.
func (p *ProcessRunner) Discover(ctx context.Context, target string) ([]types.TestIdentity, error) {
	args := append(append([]string{}, p.command[1:]...), p.listArgs...)
	args = append(args, target)

	cmd := exec.CommandContext(ctx, p.command[0], args...)
	cmd.Dir = p.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.log.Debug("Listing tests", "command", cmd.String())
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("listing tests: %w\nstderr: %s", err, stderr.String())
	}

	var identities []types.TestIdentity
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		identities = append(identities, types.ParseTestIdentity(line))
	}
	return identities, nil
}

// Start launches one run and returns its stdout as the event stream.
func (p *ProcessRunner) Start(ctx context.Context, target string) (io.ReadCloser, error) {
	args := append(append([]string{}, p.command[1:]...), target)

	cmd := exec.CommandContext(ctx, p.command[0], args...)
	cmd.Dir = p.workDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("attaching stdout pipe: %w", err)
	}

	p.log.Debug("Starting run", "command", cmd.String())
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting runner process: %w", err)
	}

	return &processStream{ReadCloser: stdout, cmd: cmd}, nil
}

// processStream ties the event stream's lifetime to the subprocess: Close
// reaps the process so abandoned runs do not leak children.
type processStream struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (s *processStream) Close() error {
	_ = s.ReadCloser.Close()
	// Non-zero exit is expected when tests fail; only reap here.
	_ = s.cmd.Wait()
	return nil
}

var _ Runner = (*ProcessRunner)(nil)
