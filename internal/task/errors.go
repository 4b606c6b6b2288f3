package task

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected failure modes. Validation errors
// (ErrInputNotFound, ErrInvalidArgument) are returned before any process is
// launched; process-level errors surface only through the completion event.
var (
	ErrInputNotFound        = errors.New("input file not found")
	ErrWorkspaceUnavailable = errors.New("workspace unavailable")
	ErrProcessLaunchFailed  = errors.New("process launch failed")
	ErrProcessCrashed       = errors.New("process crashed")
	ErrProcessFailed        = errors.New("process failed")
	ErrEmptyResult          = errors.New("empty result")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrCanceled             = errors.New("task canceled")
)

// ProcessError carries the exit status and the diagnostic tail of a failed
// external process.
type ProcessError struct {
	Kind     string // capability name, e.g. "detect-beats"
	ExitCode int
	Crashed  bool
	Output   string // last unrecognized lines, for the failure message
	Cause    error
}

func (e *ProcessError) Error() string {
	verb := "failed"
	if e.Crashed {
		verb = "crashed"
	}
	if e.Output != "" {
		return fmt.Sprintf("%s %s (exit %d): %s", e.Kind, verb, e.ExitCode, e.Output)
	}
	return fmt.Sprintf("%s %s (exit %d)", e.Kind, verb, e.ExitCode)
}

func (e *ProcessError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	if e.Crashed {
		return ErrProcessCrashed
	}
	return ErrProcessFailed
}
