package flakewatch

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum/go-ethereum/log"

	"github.com/flakewatch/flakewatch/flags"
	"github.com/flakewatch/flakewatch/registry"
)

// Config holds the application configuration
type Config struct {
	TestDir       string        // Project directory containing the tests
	Target        string        // Test target within the project
	Tool          registry.Tool // Runner adapter selection
	SuiteConfig   string        // Path to a YAML suite config; overrides Target/Tool
	Runs          int           // Number of repeated runs per analysis
	Concurrency   int           // Number of runs executing simultaneously
	RunTimeout    time.Duration // Per-run time ceiling; 0 disables
	SlowThreshold time.Duration // Average duration above which a test is flagged slow
	GoBinary      string        // Go binary for the gotest adapter
	DartBinary    string        // Dart/flutter binary for the darttest adapter
	Command       string        // Protocol-native command for tool=command
	LogDir        string        // Directory for raw event logs and reports
	RunInterval   time.Duration // Interval between analyses
	RunOnce       bool          // Indicates if the service should exit after one analysis
	Log           log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	testDir := ctx.String(flags.TestDir.Name)
	if testDir == "" {
		return nil, errors.New("test directory is required")
	}
	absTestDir, err := filepath.Abs(testDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for test directory '%s': %w", testDir, err)
	}

	logDir := ctx.String(flags.LogDir.Name)
	if logDir == "" {
		logDir = "logs"
	}
	logDir, err = filepath.Abs(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
	}

	var absSuiteConfig string
	if suiteConfig := ctx.String(flags.SuiteConfig.Name); suiteConfig != "" {
		absSuiteConfig, err = filepath.Abs(suiteConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for suite config '%s': %w", suiteConfig, err)
		}
	}

	runs := ctx.Int(flags.Runs.Name)
	if runs < 1 {
		return nil, fmt.Errorf("runs must be >= 1, got %d", runs)
	}
	concurrency := ctx.Int(flags.Concurrency.Name)
	if concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", concurrency)
	}

	tool := registry.Tool(ctx.String(flags.Tool.Name))
	switch tool {
	case registry.ToolDart, registry.ToolGo:
	case registry.ToolCommand:
		if ctx.String(flags.Command.Name) == "" {
			return nil, errors.New("tool=command requires --command")
		}
	default:
		return nil, fmt.Errorf("unknown tool %q (want dart, go, or command)", tool)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	runOnce := runInterval == 0

	return &Config{
		TestDir:       absTestDir,
		Target:        ctx.String(flags.Target.Name),
		Tool:          tool,
		SuiteConfig:   absSuiteConfig,
		Runs:          runs,
		Concurrency:   concurrency,
		RunTimeout:    ctx.Duration(flags.RunTimeout.Name),
		SlowThreshold: ctx.Duration(flags.SlowThreshold.Name),
		GoBinary:      ctx.String(flags.GoBinary.Name),
		DartBinary:    ctx.String(flags.DartBinary.Name),
		Command:       ctx.String(flags.Command.Name),
		LogDir:        logDir,
		RunInterval:   runInterval,
		RunOnce:       runOnce,
		Log:           log,
	}, nil
}
