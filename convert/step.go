package convert

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"syscall"
)

// StepResult is the terminal outcome of a single step execution.
type StepResult struct {
	// ExitCode is the process exit code. -1 when the process was killed
	// or could not report a code.
	ExitCode int
	// Err is set when the process could not be started or reaped. A
	// non-zero exit from a started process is not an Err.
	Err error
}

// StepRunner executes one planned step to completion. Implementations must
// respect ctx: cancellation terminates the in-flight process.
type StepRunner interface {
	Run(ctx context.Context, step PlannedStep) StepResult
}

// ProcessRunner runs steps as external processes. This is the default
// runner; tests substitute their own StepRunner.
type ProcessRunner struct {
	// Stdout receives converter stdout. Nil discards it; converter output
	// is collaborator logging, not part of the pipeline contract.
	Stdout io.Writer
	// Stderr receives converter stderr. Nil discards it.
	Stderr io.Writer
}

// Run starts the step's command and waits for it to exit.
// The process is forcibly terminated when ctx is canceled.
func (r *ProcessRunner) Run(ctx context.Context, step PlannedStep) StepResult {
	if len(step.Argv) == 0 {
		return StepResult{ExitCode: -1, Err: errors.New("step has empty argv")}
	}

	cmd := exec.CommandContext(ctx, step.Argv[0], step.Argv[1:]...)
	cmd.Dir = step.Dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	if err := cmd.Start(); err != nil {
		return StepResult{ExitCode: -1, Err: err}
	}

	err := cmd.Wait()
	if err == nil {
		return StepResult{ExitCode: 0}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return StepResult{ExitCode: status.ExitStatus()}
		}
		return StepResult{ExitCode: -1}
	}

	return StepResult{ExitCode: -1, Err: err}
}
