package types

import (
	"time"

	"github.com/flakewatch/flakewatch/classifier"
)

// VerdictStatus represents the reliability classification of a test across
// all completed runs.
type VerdictStatus string

const (
	VerdictConsistentPass    VerdictStatus = "consistent_pass"
	VerdictConsistentFailure VerdictStatus = "consistent_failure"
	VerdictFlaky             VerdictStatus = "flaky"
)

// TestVerdict is the per-test result of aggregating all completed runs.
// Created once after all runs complete; never mutated afterward.
type TestVerdict struct {
	Identity  TestIdentity
	PassCount int
	FailCount int

	// Reliability is the percentage of runs in which the test passed,
	// rounded to one decimal place.
	Reliability float64

	Status VerdictStatus

	// RepresentativeFailure is the classification of the first failing
	// run's error output. Nil for consistently passing tests.
	RepresentativeFailure classifier.FailureVariant
}

// IsActionItem reports whether the verdict needs engineer attention.
// Consistent failures are deterministic bugs; flaky tests are instability
// signals. Both are reported, but they are distinguished in output.
func (v TestVerdict) IsActionItem() bool {
	return v.Status != VerdictConsistentPass
}

// PerformanceRecord holds per-test duration statistics across all runs that
// executed the test, including failing runs.
type PerformanceRecord struct {
	Identity TestIdentity
	Average  time.Duration
	Min      time.Duration
	Max      time.Duration
	Total    time.Duration
	IsSlow   bool
}
