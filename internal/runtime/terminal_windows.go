// SPDX-License-Identifier: MPL-2.0

//go:build windows

package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	goruntime "runtime"
)

// TerminalRunner on Windows streams the task's output without a
// pseudo-terminal.
type TerminalRunner struct {
	tasks *TaskRunner
	out   io.Writer
}

// NewTerminalRunner creates a TerminalRunner for the host's task shell.
// A nil writer defaults to os.Stdout.
func NewTerminalRunner(out io.Writer) (*TerminalRunner, error) {
	shell, err := TaskShell(goruntime.GOOS)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = os.Stdout
	}
	return &TerminalRunner{tasks: NewTaskRunnerWith(shell, out, out), out: out}, nil
}

// Events returns the runner's completion bus.
func (r *TerminalRunner) Events() *Bus {
	return r.tasks.Events()
}

// Start launches task with its output attached to the configured writer.
func (r *TerminalRunner) Start(ctx context.Context, task Task) (*Execution, error) {
	fmt.Fprintf(r.out, "── %s ──\n", task.Name)
	return r.tasks.Start(ctx, task)
}
