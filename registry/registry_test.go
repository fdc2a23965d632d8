package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSuiteFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "suites.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func defaultTestConfig(path string) Config {
	return Config{
		SuiteConfigFile:      path,
		DefaultRuns:          3,
		DefaultConcurrency:   1,
		DefaultRunTimeout:    10 * time.Minute,
		DefaultSlowThreshold: time.Second,
	}
}

func TestNewRegistryLoadsSuites(t *testing.T) {
	path := writeSuiteFile(t, `
suites:
  - name: widget-tests
    target: test/widgets
    tool: dart
    runs: 5
    concurrency: 2
    slow_threshold: 500ms
  - name: unit-tests
    target: ./internal/core
    tool: go
`)

	reg, err := NewRegistry(defaultTestConfig(path))
	require.NoError(t, err)

	suites := reg.Suites()
	require.Len(t, suites, 2)

	assert.Equal(t, "widget-tests", suites[0].Name)
	assert.Equal(t, ToolDart, suites[0].Tool)
	assert.Equal(t, 5, suites[0].Runs)
	assert.Equal(t, 2, suites[0].Concurrency)
	assert.Equal(t, 500*time.Millisecond, suites[0].SlowThreshold)
	// Unset knobs inherit the defaults.
	assert.Equal(t, 10*time.Minute, suites[0].RunTimeout)

	assert.Equal(t, ToolGo, suites[1].Tool)
	assert.Equal(t, 3, suites[1].Runs)
	assert.Equal(t, 1, suites[1].Concurrency)
	assert.Equal(t, time.Second, suites[1].SlowThreshold)
}

func TestNewRegistryRequiresConfigFile(t *testing.T) {
	_, err := NewRegistry(Config{})
	require.ErrorContains(t, err, "suite config file is required")
}

func TestNewRegistryRejectsMissingFile(t *testing.T) {
	_, err := NewRegistry(defaultTestConfig(filepath.Join(t.TempDir(), "nope.yaml")))
	require.ErrorContains(t, err, "failed to read suite config")
}

func TestNewRegistryValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "empty suites",
			content: "suites: []",
			wantErr: "defines no suites",
		},
		{
			name: "missing name",
			content: `
suites:
  - target: test
    tool: dart
`,
			wantErr: "name is required",
		},
		{
			name: "missing target",
			content: `
suites:
  - name: s
    tool: dart
`,
			wantErr: "target is required",
		},
		{
			name: "unknown tool",
			content: `
suites:
  - name: s
    target: test
    tool: python
`,
			wantErr: "unknown tool",
		},
		{
			name: "command tool without command",
			content: `
suites:
  - name: s
    target: test
    tool: command
`,
			wantErr: "requires an explicit command",
		},
		{
			name: "bad duration",
			content: `
suites:
  - name: s
    target: test
    tool: dart
    run_timeout: soon
`,
			wantErr: "invalid run_timeout",
		},
		{
			name: "duplicate names",
			content: `
suites:
  - name: s
    target: a
    tool: dart
  - name: s
    target: b
    tool: dart
`,
			wantErr: "duplicate suite name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(defaultTestConfig(writeSuiteFile(t, tt.content)))
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSuitesReturnsCopy(t *testing.T) {
	path := writeSuiteFile(t, `
suites:
  - name: s
    target: test
    tool: dart
`)
	reg, err := NewRegistry(defaultTestConfig(path))
	require.NoError(t, err)

	suites := reg.Suites()
	suites[0].Name = "mutated"
	assert.Equal(t, "s", reg.Suites()[0].Name)
}
