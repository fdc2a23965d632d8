// Package classifier turns raw test failure output into one of a closed set
// of structured failure variants. Classification is a pure, deterministic
// function of the error text and stack trace: the same input always yields
// the same variant with the same fields, and it never fails — anything the
// rules cannot place lands in UnknownFailure.
package classifier

import (
	"fmt"
	"time"
)

// Kind identifies a failure variant. The set is closed; consumers switch
// exhaustively over Kinds().
type Kind string

const (
	KindAssertion     Kind = "assertion"
	KindNullReference Kind = "null_reference"
	KindTimeout       Kind = "timeout"
	KindRange         Kind = "range"
	KindTypeMismatch  Kind = "type_mismatch"
	KindIO            Kind = "io"
	KindNetwork       Kind = "network"
	KindUnknown       Kind = "unknown"
)

// Kinds returns every failure kind the classifier can produce, in rule
// order. Used by totality tests and report legends.
func Kinds() []Kind {
	return []Kind{
		KindAssertion,
		KindNullReference,
		KindTimeout,
		KindRange,
		KindTypeMismatch,
		KindIO,
		KindNetwork,
		KindUnknown,
	}
}

// FailureVariant is the sealed union over all failure classifications.
// Exactly one variant is produced per failed run outcome.
type FailureVariant interface {
	Kind() Kind
	// Summary is a one-line human-readable description of the failure.
	Summary() string
	// Remedy is the suggested next step for the failure mode.
	Remedy() string

	sealed()
}

// AssertionFailure is a test assertion whose expected and actual values
// diverged.
type AssertionFailure struct {
	Message  string
	Expected string
	Actual   string
	Location string
}

func (AssertionFailure) Kind() Kind { return KindAssertion }
func (f AssertionFailure) Summary() string {
	if f.Expected != "" || f.Actual != "" {
		return fmt.Sprintf("assertion failed at %s: expected %q, got %q", f.Location, f.Expected, f.Actual)
	}
	return fmt.Sprintf("assertion failed at %s: %s", f.Location, f.Message)
}
func (AssertionFailure) Remedy() string {
	return "Compare the expected and actual values; the assertion or the code under test is wrong."
}
func (AssertionFailure) sealed() {}

// NullReferenceError is a member access on a null value.
type NullReferenceError struct {
	Variable string
	Location string
}

func (NullReferenceError) Kind() Kind { return KindNullReference }
func (f NullReferenceError) Summary() string {
	return fmt.Sprintf("null reference on '%s' at %s", f.Variable, f.Location)
}
func (f NullReferenceError) Remedy() string {
	return fmt.Sprintf("Initialize or guard '%s' before it is dereferenced.", f.Variable)
}
func (NullReferenceError) sealed() {}

// TimeoutFailure is an operation that exceeded its time budget.
type TimeoutFailure struct {
	Duration  time.Duration
	Operation string
}

func (TimeoutFailure) Kind() Kind { return KindTimeout }
func (f TimeoutFailure) Summary() string {
	return fmt.Sprintf("%s timed out after %s", f.Operation, f.Duration)
}
func (TimeoutFailure) Remedy() string {
	return "Raise the timeout or stub the slow dependency; timeouts are a common flakiness source."
}
func (TimeoutFailure) sealed() {}

// RangeError is an out-of-bounds index access.
type RangeError struct {
	Index      int
	ValidRange string
	Location   string
}

func (RangeError) Kind() Kind { return KindRange }
func (f RangeError) Summary() string {
	return fmt.Sprintf("index %d outside range %s at %s", f.Index, f.ValidRange, f.Location)
}
func (RangeError) Remedy() string {
	return "Validate index bounds before access, or fix the collection size assumption."
}
func (RangeError) sealed() {}

// TypeMismatch is a failed cast or subtype check.
type TypeMismatch struct {
	ExpectedType string
	ActualType   string
	Location     string
}

func (TypeMismatch) Kind() Kind { return KindTypeMismatch }
func (f TypeMismatch) Summary() string {
	return fmt.Sprintf("type mismatch at %s: got %s, want %s", f.Location, f.ActualType, f.ExpectedType)
}
func (TypeMismatch) Remedy() string {
	return "Check the cast site; the runtime type differs from the declared type."
}
func (TypeMismatch) sealed() {}

// IOError is a filesystem failure.
type IOError struct {
	Operation string
	Path      string
}

func (IOError) Kind() Kind { return KindIO }
func (f IOError) Summary() string {
	return fmt.Sprintf("I/O failure during %s on %q", f.Operation, f.Path)
}
func (IOError) Remedy() string {
	return "Verify the path exists and is accessible in the test environment; avoid shared fixtures."
}
func (IOError) sealed() {}

// NetworkError is a failed network interaction. StatusCode is nil when no
// HTTP status was present in the output.
type NetworkError struct {
	Operation  string
	Endpoint   string
	StatusCode *int
}

func (NetworkError) Kind() Kind { return KindNetwork }
func (f NetworkError) Summary() string {
	if f.StatusCode != nil {
		return fmt.Sprintf("%s to %s failed with status %d", f.Operation, f.Endpoint, *f.StatusCode)
	}
	return fmt.Sprintf("%s to %s failed", f.Operation, f.Endpoint)
}
func (NetworkError) Remedy() string {
	return "Mock the endpoint; real network calls make tests nondeterministic."
}
func (NetworkError) sealed() {}

// UnknownFailure carries the raw message of a failure no rule matched.
type UnknownFailure struct {
	RawMessage string
}

func (UnknownFailure) Kind() Kind { return KindUnknown }
func (f UnknownFailure) Summary() string {
	return fmt.Sprintf("unclassified failure: %s", firstLine(f.RawMessage))
}
func (UnknownFailure) Remedy() string {
	return "Inspect the raw failure output; no known pattern matched."
}
func (UnknownFailure) sealed() {}
