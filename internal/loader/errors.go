package loader

import "fmt"

// ModuleNotFoundError is returned when a request cannot be resolved to a
// registry name, relative path, or absolute path. The message format is a
// stable contract; downstream consumers match on it.
type ModuleNotFoundError struct {
	// Request is the string passed to RequireModule.
	Request string
	// FromDir is the requesting module's directory, or "." for the
	// synthetic root caller.
	FromDir string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("Cannot find module '%s' from '%s'", e.Request, e.FromDir)
}

// EvaluationError wraps an error thrown by a module body, or by a function a
// module defines, with its stack trace rewritten to report original file
// positions. The underlying VM error is preserved via Unwrap.
type EvaluationError struct {
	// Path is the absolute path of the module whose evaluation raised.
	Path string
	// Stack is the normalized trace, beginning with "Error: <message>".
	Stack string
	// Err is the raw error from the execution environment.
	Err error
}

func (e *EvaluationError) Error() string {
	return e.Stack
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
