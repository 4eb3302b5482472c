package action

import (
	"errors"
	"fmt"
)

// Sentinel errors for action invocations. Check with errors.Is().
var (
	// ErrLaunchFailed means the command could not be started at all
	// (binary not found, permission denied).
	ErrLaunchFailed = errors.New("action: launch failed")

	// ErrExecutionFailed means the command started but did not exit cleanly.
	ErrExecutionFailed = errors.New("action: execution failed")
)

// LaunchError wraps a failure to start the command.
type LaunchError struct {
	Binary string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrLaunchFailed, e.Binary, e.Err)
}

// Unwrap allows matching both ErrLaunchFailed and the underlying cause.
func (e *LaunchError) Unwrap() []error {
	return []error{ErrLaunchFailed, e.Err}
}

// ExecutionError describes a command that ran but failed.
type ExecutionError struct {
	Binary   string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s exited with code %d: %v", ErrExecutionFailed, e.Binary, e.ExitCode, e.Err)
}

// Unwrap allows matching both ErrExecutionFailed and the underlying cause.
func (e *ExecutionError) Unwrap() []error {
	return []error{ErrExecutionFailed, e.Err}
}
