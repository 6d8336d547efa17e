package types

import "fmt"

// OutcomeStatus is the terminal classification of a run.
type OutcomeStatus string

const (
	// OutcomeSuccess: the success sentinel arrived and the report was handled.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeTestsFailed: the failure sentinel arrived.
	OutcomeTestsFailed OutcomeStatus = "tests_failed"
	// OutcomeRuntimeError: the page reported a console error, or coverage
	// for the target script could not be reduced.
	OutcomeRuntimeError OutcomeStatus = "runtime_error"
	// OutcomeCommunicationError: connecting, a protocol call, or the wait
	// for a sentinel failed.
	OutcomeCommunicationError OutcomeStatus = "communication_error"
	// OutcomeReportWriteError: the coverage report could not be persisted.
	OutcomeReportWriteError OutcomeStatus = "report_write_error"
	// OutcomeUnhandledError: anything else, including bad configuration.
	OutcomeUnhandledError OutcomeStatus = "unhandled_error"
)

// Exit codes. These are the stable process ABI.
const (
	ExitCodeSuccess            = 0
	ExitCodeTestsFailed        = 1
	ExitCodeRuntimeError       = 2
	ExitCodeCommunicationError = 3
	ExitCodeReportWriteError   = 4
	ExitCodeUnhandledError     = 255
)

// ExitCode returns the process exit code for the status.
// Unknown statuses map to ExitCodeUnhandledError.
func (s OutcomeStatus) ExitCode() int {
	switch s {
	case OutcomeSuccess:
		return ExitCodeSuccess
	case OutcomeTestsFailed:
		return ExitCodeTestsFailed
	case OutcomeRuntimeError:
		return ExitCodeRuntimeError
	case OutcomeCommunicationError:
		return ExitCodeCommunicationError
	case OutcomeReportWriteError:
		return ExitCodeReportWriteError
	default:
		return ExitCodeUnhandledError
	}
}

// RunOutcome is the single terminal result of a run.
type RunOutcome struct {
	// Status is the outcome classification.
	Status OutcomeStatus
	// Detail is optional diagnostic text. Empty means no detail is emitted.
	Detail string
	// Coverage is the aggregate percentage when it was computed, else nil.
	Coverage *float64
}

// HasDetail reports whether the outcome carries diagnostic text.
func (o *RunOutcome) HasDetail() bool {
	return o != nil && o.Detail != ""
}

// ExitCode returns the outcome's process exit code. A nil outcome is
// unhandled.
func (o *RunOutcome) ExitCode() int {
	if o == nil {
		return ExitCodeUnhandledError
	}
	return o.Status.ExitCode()
}

func (o *RunOutcome) String() string {
	if o == nil {
		return string(OutcomeUnhandledError)
	}
	if o.Detail == "" {
		return string(o.Status)
	}
	return fmt.Sprintf("%s: %s", o.Status, o.Detail)
}

// Outcome constructors.

// Success returns a success outcome.
func Success() *RunOutcome { return &RunOutcome{Status: OutcomeSuccess} }

// TestsFailed returns a tests-failed outcome.
func TestsFailed() *RunOutcome { return &RunOutcome{Status: OutcomeTestsFailed} }

// RuntimeError returns a runtime-error outcome with optional detail.
func RuntimeError(detail string) *RunOutcome {
	return &RunOutcome{Status: OutcomeRuntimeError, Detail: detail}
}

// CommunicationError returns a communication-error outcome with optional detail.
func CommunicationError(detail string) *RunOutcome {
	return &RunOutcome{Status: OutcomeCommunicationError, Detail: detail}
}

// ReportWriteError returns a report-write-error outcome with optional detail.
func ReportWriteError(detail string) *RunOutcome {
	return &RunOutcome{Status: OutcomeReportWriteError, Detail: detail}
}

// UnhandledError returns an unhandled-error outcome.
func UnhandledError(detail string) *RunOutcome {
	return &RunOutcome{Status: OutcomeUnhandledError, Detail: detail}
}
