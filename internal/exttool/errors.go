package exttool

import (
	"fmt"
	"strconv"
)

// SetUpDirError reports a failure preparing the scratch directory a tool
// runs against.
type SetUpDirError struct {
	Err error
}

func (e *SetUpDirError) Error() string {
	return fmt.Sprintf("Error setting up temporary directory: %v", e.Err)
}

func (e *SetUpDirError) Unwrap() error { return e.Err }

// FailedToExecuteError is returned when the tool could not be started.
type FailedToExecuteError struct {
	Tool string
	Err  error
}

func (e *FailedToExecuteError) Error() string {
	return fmt.Sprintf("Error executing '%s' (run with --verbose to see the exact invocation). %v", e.Tool, e.Err)
}

func (e *FailedToExecuteError) Unwrap() error { return e.Err }

// ToolAbortedError is returned when the tool exits unsuccessfully. Signaled
// is set when the process was killed by a signal and has no exit code.
type ToolAbortedError struct {
	ExitCode int
	Signaled bool
}

func (e *ToolAbortedError) Error() string {
	code := "<unknown>"
	if !e.Signaled {
		code = strconv.Itoa(e.ExitCode)
	}
	return fmt.Sprintf("Tool exited with a non-zero code (run with --verbose to see the exact invocation). Exit code: %s.", code)
}
