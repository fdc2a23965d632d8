package gotest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flakewatch/flakewatch/runner"
)

func translateString(t *testing.T, input string) []runner.Event {
	t.Helper()
	var out bytes.Buffer
	translate(strings.NewReader(input), &out, log.New())

	var events []runner.Event
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		event, ok := runner.ParseEvent([]byte(line))
		require.True(t, ok, "translated line is not a protocol event: %s", line)
		events = append(events, event)
	}
	return events
}

func TestTranslatePassingTest(t *testing.T) {
	input := `{"Action":"start","Package":"example.com/m/pkg"}
{"Action":"run","Package":"example.com/m/pkg","Test":"TestAdd"}
{"Action":"output","Package":"example.com/m/pkg","Test":"TestAdd","Output":"=== RUN   TestAdd\n"}
{"Action":"pass","Package":"example.com/m/pkg","Test":"TestAdd","Elapsed":0.25}
{"Action":"pass","Package":"example.com/m/pkg","Elapsed":0.3}
`
	events := translateString(t, input)
	require.Len(t, events, 3)

	assert.Equal(t, runner.EventTestStart, events[0].Event)
	assert.Equal(t, "TestAdd", events[0].Test)

	assert.Equal(t, runner.EventTestDone, events[1].Event)
	assert.True(t, events[1].Passed)
	assert.Equal(t, int64(250), events[1].DurationMillis)

	assert.Equal(t, runner.EventSuiteDone, events[2].Event)
}

func TestTranslateFailingTestCarriesOutput(t *testing.T) {
	input := `{"Action":"start","Package":"example.com/m/pkg"}
{"Action":"run","Package":"example.com/m/pkg","Test":"TestAdd"}
{"Action":"output","Package":"example.com/m/pkg","Test":"TestAdd","Output":"    add_test.go:12: got 3, want 5\n"}
{"Action":"fail","Package":"example.com/m/pkg","Test":"TestAdd","Elapsed":0.1}
{"Action":"fail","Package":"example.com/m/pkg","Elapsed":0.2}
`
	events := translateString(t, input)
	require.Len(t, events, 4)

	assert.Equal(t, runner.EventRunError, events[1].Event)
	assert.Contains(t, events[1].Message, "got 3, want 5")

	assert.Equal(t, runner.EventTestDone, events[2].Event)
	assert.False(t, events[2].Passed)

	assert.Equal(t, runner.EventSuiteDone, events[3].Event)
}

func TestTranslateSkippedTestsContributeNothing(t *testing.T) {
	input := `{"Action":"start","Package":"example.com/m/pkg"}
{"Action":"run","Package":"example.com/m/pkg","Test":"TestSkipped"}
{"Action":"skip","Package":"example.com/m/pkg","Test":"TestSkipped","Elapsed":0}
{"Action":"pass","Package":"example.com/m/pkg","Elapsed":0.1}
`
	events := translateString(t, input)
	require.Len(t, events, 2)
	assert.Equal(t, runner.EventTestStart, events[0].Event)
	assert.Equal(t, runner.EventSuiteDone, events[1].Event)
}

// A crashed `go test` run (package started but never finished) must not emit
// suiteDone, so the engine excludes the run instead of treating the
// truncated stream as a complete suite.
func TestTranslateCrashedRunOmitsSuiteDone(t *testing.T) {
	input := `{"Action":"start","Package":"example.com/m/pkg"}
{"Action":"run","Package":"example.com/m/pkg","Test":"TestAdd"}
`
	events := translateString(t, input)
	require.Len(t, events, 1)
	assert.Equal(t, runner.EventTestStart, events[0].Event)
}

func TestTranslateIgnoresBuildNoise(t *testing.T) {
	input := `go: downloading example.com/dep v1.0.0
{"Action":"start","Package":"example.com/m/pkg"}
{"Action":"pass","Package":"example.com/m/pkg","Elapsed":0.1}
`
	events := translateString(t, input)
	require.Len(t, events, 1)
	assert.Equal(t, runner.EventSuiteDone, events[0].Event)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	require.ErrorContains(t, err, "work directory is required")

	r, err := New(Config{WorkDir: t.TempDir()})
	require.NoError(t, err)
	assert.NotNil(t, r)
}
