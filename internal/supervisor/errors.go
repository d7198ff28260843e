package supervisor

import "fmt"

// modelRequiredError signals a start request that named no model.
type modelRequiredError struct{}

func (modelRequiredError) Error() string { return "no model selected" }

// ErrModelRequired constructs the error Start returns for an empty model name.
func ErrModelRequired() error { return modelRequiredError{} }

// IsModelRequired reports whether err means the start request named no model.
func IsModelRequired(err error) bool {
	_, ok := err.(modelRequiredError)
	return ok
}

// spawnError wraps the os-level failure to launch the worker binary
// (missing or unexecutable file, pipe setup).
type spawnError struct{ cause error }

func (e spawnError) Error() string { return "start worker: " + e.cause.Error() }
func (e spawnError) Unwrap() error { return e.cause }

// ErrSpawnFailed constructs a spawnError.
func ErrSpawnFailed(cause error) error { return spawnError{cause: cause} }

// IsSpawnFailed reports whether err means the worker binary never launched.
func IsSpawnFailed(err error) bool {
	_, ok := err.(spawnError)
	return ok
}

// earlyExitError marks a worker that died inside the start grace window.
type earlyExitError struct{ code int }

func (e earlyExitError) Error() string {
	return fmt.Sprintf("process exited immediately with code %d", e.code)
}

// ErrExitedEarly constructs an earlyExitError carrying the exit code.
func ErrExitedEarly(code int) error { return earlyExitError{code: code} }

// IsExitedEarly reports whether err means the worker died during the grace
// window.
func IsExitedEarly(err error) bool {
	_, ok := err.(earlyExitError)
	return ok
}

// ExitCode extracts the exit code from an early-exit error.
func ExitCode(err error) (int, bool) {
	e, ok := err.(earlyExitError)
	if !ok {
		return 0, false
	}
	return e.code, true
}
