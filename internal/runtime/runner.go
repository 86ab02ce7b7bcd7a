// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	goruntime "runtime"
)

// TaskRunner runs Tasks as background processes through the task shell,
// streaming their output to the configured writers.
type TaskRunner struct {
	shell  Shell
	stdout io.Writer
	stderr io.Writer
	bus    Bus
}

// NewTaskRunner creates a TaskRunner for the host's task shell.
// nil writers default to os.Stdout / os.Stderr.
func NewTaskRunner(stdout, stderr io.Writer) (*TaskRunner, error) {
	shell, err := TaskShell(goruntime.GOOS)
	if err != nil {
		return nil, err
	}
	return NewTaskRunnerWith(shell, stdout, stderr), nil
}

// NewTaskRunnerWith creates a TaskRunner bound to an explicit shell.
func NewTaskRunnerWith(shell Shell, stdout, stderr io.Writer) *TaskRunner {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &TaskRunner{shell: shell, stdout: stdout, stderr: stderr}
}

// Events returns the runner's completion bus.
func (r *TaskRunner) Events() *Bus {
	return &r.bus
}

// Start launches task and returns immediately. The EndEvent is published
// from a background goroutine once the process exits.
func (r *TaskRunner) Start(ctx context.Context, task Task) (*Execution, error) {
	cmd := shellCommand(ctx, r.shell, task.Line)
	cmd.Dir = task.Dir
	cmd.Env = os.Environ()
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr
	cmd.Stdin = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", task.Name, err)
	}

	execution := NewExecution(task)
	go func() {
		execution.Finish(&r.bus, statusOf(cmd.Wait()))
	}()
	return execution, nil
}

// statusOf converts the result of (*exec.Cmd).Wait into an ExitStatus.
// A process terminated by a signal has no exit code.
func statusOf(err error) ExitStatus {
	if err == nil {
		return Exited(0)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return Exited(ExitCode(code))
		}
	}
	return UnknownExit
}
