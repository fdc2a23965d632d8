package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

const EnvVarPrefix = "FLAKEWATCH"

var (
	TestDir = &cli.StringFlag{
		Name:     "testdir",
		Value:    "",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "TESTDIR"),
		Usage:    "Path to the project directory containing the tests to analyze",
	}
	Target = &cli.StringFlag{
		Name:    "target",
		Value:   "test",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TARGET"),
		Usage:   "Test target within the project (directory, file, or package path)",
	}
	Tool = &cli.StringFlag{
		Name:    "tool",
		Value:   "dart",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TOOL"),
		Usage:   "Test tool adapter to use: 'dart', 'go', or 'command'",
	}
	Runs = &cli.IntFlag{
		Name:    "runs",
		Value:   3,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUNS"),
		Usage:   "Number of repeated runs per analysis (>= 1)",
	}
	Concurrency = &cli.IntFlag{
		Name:    "concurrency",
		Value:   1,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONCURRENCY"),
		Usage:   "Maximum number of runs executing simultaneously; 1 means sequential",
	}
	RunTimeout = &cli.DurationFlag{
		Name:    "run-timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_TIMEOUT"),
		Usage:   "Per-run time ceiling (e.g. '10m'). A run exceeding it is excluded. 0 disables.",
	}
	SlowThreshold = &cli.DurationFlag{
		Name:    "slow-threshold",
		Value:   time.Second,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SLOW_THRESHOLD"),
		Usage:   "Average duration above which a test is flagged as slow",
	}
	SuiteConfig = &cli.StringFlag{
		Name:    "suites",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SUITES"),
		Usage:   "Path to a suite config file (eg. 'suites.yaml'); overrides target/tool flags",
	}
	GoBinary = &cli.StringFlag{
		Name:    "go-binary",
		Value:   "go",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "GO_BINARY"),
		Usage:   "Path to the Go binary to use for running tests",
	}
	DartBinary = &cli.StringFlag{
		Name:    "dart-binary",
		Value:   "dart",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DART_BINARY"),
		Usage:   "Path to the dart (or flutter) binary to use for running tests",
	}
	Command = &cli.StringFlag{
		Name:    "command",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "COMMAND"),
		Usage:   "Executable emitting the engine event protocol directly (tool=command)",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOGDIR"),
		Usage:   "Directory for per-run raw event logs and report artifacts",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between analyses (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
)

var requiredFlags = []cli.Flag{
	TestDir,
}

var optionalFlags = []cli.Flag{
	Target,
	Tool,
	Runs,
	Concurrency,
	RunTimeout,
	SlowThreshold,
	SuiteConfig,
	GoBinary,
	DartBinary,
	Command,
	LogDir,
	RunInterval,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}
