package types

import "time"

// RunOutcome captures one test's result within one run. It is created once
// by the execution supervisor as the runner's event stream is consumed and
// never mutated afterward.
type RunOutcome struct {
	Identity   TestIdentity
	Passed     bool
	Duration   time.Duration
	ErrorText  string
	StackTrace string
}
