// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	goruntime "runtime"
)

// ErrCommandFailed is the sentinel error wrapped by CommandError.
var ErrCommandFailed = errors.New("command failed")

type (
	// Output is the captured result of an Executor invocation.
	Output struct {
		Stdout   string
		Stderr   string
		ExitCode ExitCode
	}

	// Executor runs a command line to completion and captures its output.
	Executor interface {
		Exec(ctx context.Context, line, dir string) (Output, error)
	}

	// CommandError is returned when a captured command exits non-zero or
	// cannot be started. Output holds whatever was captured.
	CommandError struct {
		Line   string
		Output Output
		Cause  error
	}

	// ShellExecutor is the production Executor. Each call spawns the capture
	// shell with the current process environment, so variables mirrored into
	// the process by activation are visible to later invocations.
	ShellExecutor struct {
		shell Shell
	}
)

// NewShellExecutor creates an executor that runs lines through the capture
// shell of the host OS.
func NewShellExecutor() *ShellExecutor {
	return &ShellExecutor{shell: CaptureShell(goruntime.GOOS)}
}

// NewShellExecutorWith creates an executor bound to an explicit shell.
func NewShellExecutorWith(shell Shell) *ShellExecutor {
	return &ShellExecutor{shell: shell}
}

// Exec runs line in dir and returns its captured output. A non-zero exit
// yields a *CommandError that still carries the captured Output.
func (e *ShellExecutor) Exec(ctx context.Context, line, dir string) (Output, error) {
	cmd := shellCommand(ctx, e.shell, line)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = ExitCode(exitErr.ExitCode())
	} else {
		out.ExitCode = 1
	}
	return out, &CommandError{Line: line, Output: out, Cause: err}
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	if e.Output.Stderr != "" {
		return fmt.Sprintf("command %s exited with code %d: %s", e.Line, e.Output.ExitCode, bytes.TrimSpace([]byte(e.Output.Stderr)))
	}
	return fmt.Sprintf("command %s exited with code %d: %v", e.Line, e.Output.ExitCode, e.Cause)
}

// Unwrap returns ErrCommandFailed and the underlying cause.
func (e *CommandError) Unwrap() []error {
	return []error{ErrCommandFailed, e.Cause}
}
