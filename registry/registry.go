// Package registry loads and validates the YAML suite configuration that
// tells the engine which test targets to analyze and with what knobs.
package registry

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"
)

// Tool identifies which runner adapter executes a suite.
type Tool string

const (
	ToolDart    Tool = "dart"
	ToolGo      Tool = "go"
	ToolCommand Tool = "command"
)

// Suite is one configured analysis target. Zero-valued knobs inherit the
// registry defaults.
type Suite struct {
	Name          string
	Target        string
	Tool          Tool
	Runs          int
	Concurrency   int
	RunTimeout    time.Duration
	SlowThreshold time.Duration
	// Command overrides the adapter binary ("dart", "flutter", "go", or an
	// arbitrary protocol-native executable for ToolCommand).
	Command string
}

// yamlSuite is the on-disk shape of a suite. Durations are Go duration
// strings ("30s", "500ms"); yaml.v3 has no native time.Duration decoding.
type yamlSuite struct {
	Name          string `yaml:"name"`
	Target        string `yaml:"target"`
	Tool          string `yaml:"tool"`
	Runs          int    `yaml:"runs"`
	Concurrency   int    `yaml:"concurrency"`
	RunTimeout    string `yaml:"run_timeout"`
	SlowThreshold string `yaml:"slow_threshold"`
	Command       string `yaml:"command"`
}

type suiteFile struct {
	Suites []yamlSuite `yaml:"suites"`
}

func (y yamlSuite) toSuite() (Suite, error) {
	suite := Suite{
		Name:        y.Name,
		Target:      y.Target,
		Tool:        Tool(y.Tool),
		Runs:        y.Runs,
		Concurrency: y.Concurrency,
		Command:     y.Command,
	}
	var err error
	if y.RunTimeout != "" {
		if suite.RunTimeout, err = time.ParseDuration(y.RunTimeout); err != nil {
			return Suite{}, fmt.Errorf("invalid run_timeout %q: %w", y.RunTimeout, err)
		}
	}
	if y.SlowThreshold != "" {
		if suite.SlowThreshold, err = time.ParseDuration(y.SlowThreshold); err != nil {
			return Suite{}, fmt.Errorf("invalid slow_threshold %q: %w", y.SlowThreshold, err)
		}
	}
	return suite, nil
}

// Registry manages suite configurations loaded from a YAML file.
type Registry struct {
	config Config
	suites []Suite
	mu     sync.RWMutex
}

// Config contains registry configuration.
type Config struct {
	Log             log.Logger
	SuiteConfigFile string

	// Defaults applied to suites that leave a knob unset.
	DefaultRuns          int
	DefaultConcurrency   int
	DefaultRunTimeout    time.Duration
	DefaultSlowThreshold time.Duration
}

// NewRegistry creates a new registry instance and loads the suite file.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.SuiteConfigFile == "" {
		return nil, fmt.Errorf("suite config file is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{
		config: cfg,
	}

	if err := r.loadSuites(cfg.SuiteConfigFile); err != nil {
		return nil, fmt.Errorf("failed to load suite config: %w", err)
	}

	cfg.Log.Debug("Registry loaded", "len(suites)", len(r.suites))

	return r, nil
}

// Suites returns the configured suites with defaults applied.
func (r *Registry) Suites() []Suite {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Suite, len(r.suites))
	copy(out, r.suites)
	return out
}

func (r *Registry) loadSuites(cfgPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read suite config: %w", err)
	}

	var file suiteFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse suite config: %w", err)
	}
	if len(file.Suites) == 0 {
		return fmt.Errorf("suite config %s defines no suites", cfgPath)
	}

	seen := make(map[string]bool)
	suites := make([]Suite, 0, len(file.Suites))
	for i, raw := range file.Suites {
		suite, err := raw.toSuite()
		if err != nil {
			return fmt.Errorf("suite %d (%q): %w", i, raw.Name, err)
		}
		r.applyDefaults(&suite)
		if err := validateSuite(suite); err != nil {
			return fmt.Errorf("suite %d (%q): %w", i, suite.Name, err)
		}
		if seen[suite.Name] {
			return fmt.Errorf("duplicate suite name %q", suite.Name)
		}
		seen[suite.Name] = true
		suites = append(suites, suite)
	}

	r.suites = suites
	return nil
}

func (r *Registry) applyDefaults(suite *Suite) {
	if suite.Runs == 0 {
		suite.Runs = r.config.DefaultRuns
	}
	if suite.Concurrency == 0 {
		suite.Concurrency = r.config.DefaultConcurrency
	}
	if suite.RunTimeout == 0 {
		suite.RunTimeout = r.config.DefaultRunTimeout
	}
	if suite.SlowThreshold == 0 {
		suite.SlowThreshold = r.config.DefaultSlowThreshold
	}
}

func validateSuite(suite Suite) error {
	if suite.Name == "" {
		return fmt.Errorf("name is required")
	}
	if suite.Target == "" {
		return fmt.Errorf("target is required")
	}
	switch suite.Tool {
	case ToolDart, ToolGo:
	case ToolCommand:
		if suite.Command == "" {
			return fmt.Errorf("command tool requires an explicit command")
		}
	default:
		return fmt.Errorf("unknown tool %q (want dart, go, or command)", suite.Tool)
	}
	if suite.Runs < 1 {
		return fmt.Errorf("runs must be >= 1, got %d", suite.Runs)
	}
	if suite.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", suite.Concurrency)
	}
	return nil
}
