// Package exitcodes defines the standard exit codes used by flakewatch.
package exitcodes

// Exit code constants used by flakewatch
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when every analyzed test passes consistently
// * TestFailure (1): Used when the analysis found flaky or consistently failing tests
// * RuntimeErr (2): Used for runtime errors such as bad configuration or a run batch with no usable runs
const (
	Success     = 0 // All tests pass consistently
	TestFailure = 1 // Flaky or consistently failing tests found
	RuntimeErr  = 2 // Runtime errors or misconfiguration
)
