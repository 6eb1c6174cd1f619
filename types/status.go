package types

import "fmt"

// OutcomeStatus classifies the terminal outcome of a pipeline run.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates every step in the catalogue succeeded.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeStepFailure indicates a step exited abnormally; the run
	// stopped at that step and its exit code is preserved verbatim.
	OutcomeStepFailure OutcomeStatus = "step_failure"
	// OutcomeCanceled indicates the run was canceled. Distinct from both
	// success and failure; carries no exit code.
	OutcomeCanceled OutcomeStatus = "canceled"
)

// Result is the success payload of a conversion: the produced artifact(s).
type Result struct {
	// ModelPath is the primary converted model artifact.
	ModelPath string
	// Artifacts lists any additional files produced alongside the model.
	Artifacts []string
}

// Status is the terminal outcome of a pipeline run. Exactly one variant is
// populated: Result on success, FailedStep/ExitCode on step failure, neither
// on cancellation.
type Status struct {
	// Outcome is the outcome classification.
	Outcome OutcomeStatus
	// Result is the success payload. Nil unless Outcome is OutcomeSuccess.
	Result *Result
	// FailedStep identifies the failing step. Empty unless OutcomeStepFailure.
	FailedStep StepID
	// ExitCode is the failing step's process exit code, unmodified.
	// Meaningful only when Outcome is OutcomeStepFailure.
	ExitCode int
	// Message is a human-readable description.
	Message string
}

// SuccessStatus builds a success status carrying the conversion result.
func SuccessStatus(result *Result) Status {
	return Status{
		Outcome: OutcomeSuccess,
		Result:  result,
		Message: "conversion completed",
	}
}

// FailureStatus builds a step-failure status preserving the exit code.
func FailureStatus(step StepID, exitCode int, message string) Status {
	if message == "" {
		message = fmt.Sprintf("step %s exited with code %d", step, exitCode)
	}
	return Status{
		Outcome:    OutcomeStepFailure,
		FailedStep: step,
		ExitCode:   exitCode,
		Message:    message,
	}
}

// CanceledStatus builds a cancellation status.
func CanceledStatus(message string) Status {
	if message == "" {
		message = "conversion canceled"
	}
	return Status{
		Outcome: OutcomeCanceled,
		Message: message,
	}
}

// Success reports whether the run completed with every step succeeding.
func (s Status) Success() bool {
	return s.Outcome == OutcomeSuccess
}
