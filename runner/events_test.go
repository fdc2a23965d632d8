package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		wantOK bool
		want   Event
	}{
		{
			name:   "testStart",
			line:   `{"event":"testStart","file":"test/a_test.dart","test":"adds"}`,
			wantOK: true,
			want:   Event{Event: EventTestStart, File: "test/a_test.dart", Test: "adds"},
		},
		{
			name:   "testDone passed",
			line:   `{"event":"testDone","file":"test/a_test.dart","test":"adds","passed":true,"durationMillis":120}`,
			wantOK: true,
			want:   Event{Event: EventTestDone, File: "test/a_test.dart", Test: "adds", Passed: true, DurationMillis: 120},
		},
		{
			name:   "error",
			line:   `{"event":"error","message":"boom","stackTrace":"main.dart:1"}`,
			wantOK: true,
			want:   Event{Event: EventRunError, Message: "boom", StackTrace: "main.dart:1"},
		},
		{
			name:   "suiteDone",
			line:   `{"event":"suiteDone"}`,
			wantOK: true,
			want:   Event{Event: EventSuiteDone},
		},
		{
			name:   "ansi colored event still parses",
			line:   "\x1b[32m{\"event\":\"suiteDone\"}\x1b[0m",
			wantOK: true,
			want:   Event{Event: EventSuiteDone},
		},
		{
			name:   "plain text noise",
			line:   "00:01 +3: All tests passed!",
			wantOK: false,
		},
		{
			name:   "malformed json",
			line:   `{"event":"testDone"`,
			wantOK: false,
		},
		{
			name:   "unknown event name",
			line:   `{"event":"heartbeat"}`,
			wantOK: false,
		},
		{
			name:   "json without event field",
			line:   `{"foo":"bar"}`,
			wantOK: false,
		},
		{
			name:   "empty line",
			line:   "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, ok := ParseEvent([]byte(tt.line))
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, event)
			}
		})
	}
}

func TestMarshalEventRoundTrip(t *testing.T) {
	want := Event{
		Event:          EventTestDone,
		File:           "test/b_test.dart",
		Test:           "renders",
		Passed:         true,
		DurationMillis: 42,
	}

	got, ok := ParseEvent(MarshalEvent(want))
	require.True(t, ok)
	assert.Equal(t, want, got)
}
