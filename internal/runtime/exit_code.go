// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidExitCode reports a code the host process cannot exit with.
var ErrInvalidExitCode = errors.New("invalid exit code")

// failureExitCode is what a failed execution maps to when its own code
// cannot be passed on.
const failureExitCode ExitCode = 1

type (
	// ExitCode is the code a task or terminal process ended with. Windows
	// reports NTSTATUS values above 255, which a POSIX exit truncates.
	ExitCode int

	// InvalidExitCodeError wraps ErrInvalidExitCode with the offending value.
	InvalidExitCodeError struct {
		Value ExitCode
	}

	// ExitStatus is how a tracked execution ended. Known is false when the
	// process went away without reporting a code.
	ExitStatus struct {
		Code  ExitCode
		Known bool
	}
)

func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("exit code %d is outside 0-255", e.Value)
}

func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// IsValid reports whether c can be used as this process's exit code.
func (c ExitCode) IsValid() (bool, []error) {
	if c < 0 || c > 255 {
		return false, []error{&InvalidExitCodeError{Value: c}}
	}
	return true, nil
}

// IsSuccess reports a zero code.
func (c ExitCode) IsSuccess() bool { return c == 0 }

func (c ExitCode) String() string { return strconv.Itoa(int(c)) }

// Exited returns a known ExitStatus for code.
func Exited(code ExitCode) ExitStatus {
	return ExitStatus{Code: code, Known: true}
}

// UnknownExit is the status of an execution that ended without a code.
var UnknownExit = ExitStatus{}

// Success reports whether the execution ended with a known zero code.
// An unknown status is never a success.
func (s ExitStatus) Success() bool {
	return s.Known && s.Code.IsSuccess()
}

// String returns the code, or "unknown".
func (s ExitStatus) String() string {
	if !s.Known {
		return "unknown"
	}
	return s.Code.String()
}

// HostExitCode is the code pixienv exits with to mirror s: the task's own
// code when it is known and fits 0-255, otherwise 1 for a failure.
func (s ExitStatus) HostExitCode() ExitCode {
	if s.Success() {
		return 0
	}
	if !s.Known {
		return failureExitCode
	}
	if ok, _ := s.Code.IsValid(); !ok || s.Code.IsSuccess() {
		return failureExitCode
	}
	return s.Code
}
