package runner

import (
	"encoding/json"
	"strings"

	"github.com/acarl005/stripansi"
)

// Engine event protocol. Runners emit one JSON event per line on their
// output stream; anything that does not parse as an event is treated as
// noise and ignored.
const (
	EventTestStart = "testStart"
	EventTestDone  = "testDone"
	EventRunError  = "error"
	EventSuiteDone = "suiteDone"
)

// Event is a single line of the runner's event stream.
type Event struct {
	Event string `json:"event"`

	// testStart / testDone
	File string `json:"file,omitempty"`
	Test string `json:"test,omitempty"`

	// testDone
	Passed         bool  `json:"passed,omitempty"`
	DurationMillis int64 `json:"durationMillis,omitempty"`

	// error
	Message    string `json:"message,omitempty"`
	StackTrace string `json:"stackTrace,omitempty"`
}

// ParseEvent decodes one line of runner output. ANSI escapes are stripped
// first since runners routinely colorize output. The returned bool is false
// for noise lines: malformed JSON, JSON without an event field, or unknown
// event names.
func ParseEvent(line []byte) (Event, bool) {
	clean := strings.TrimSpace(stripansi.Strip(string(line)))
	if clean == "" || clean[0] != '{' {
		return Event{}, false
	}

	var event Event
	if err := json.Unmarshal([]byte(clean), &event); err != nil {
		return Event{}, false
	}

	switch event.Event {
	case EventTestStart, EventTestDone, EventRunError, EventSuiteDone:
		return event, true
	default:
		return Event{}, false
	}
}

// MarshalEvent encodes an event as one protocol line (no trailing newline).
// Used by runner adapters that translate foreign formats into the engine
// protocol.
func MarshalEvent(event Event) []byte {
	data, err := json.Marshal(event)
	if err != nil {
		// Event has no unmarshalable fields; this cannot happen.
		return nil
	}
	return data
}
