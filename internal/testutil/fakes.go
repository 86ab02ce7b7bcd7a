// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/pixienv/pixienv/internal/runtime"
)

type (
	// FakeExecutor is a scripted runtime.Executor. Each call is answered by
	// the first rule whose substring occurs in the line; unmatched lines
	// succeed with empty output.
	FakeExecutor struct {
		mu    sync.Mutex
		rules []execRule
		calls []ExecCall
	}

	// ExecCall records one Exec invocation.
	ExecCall struct {
		Line string
		Dir  string
	}

	execRule struct {
		contains string
		out      runtime.Output
		err      error
	}

	// FakeRunner is a runtime.Runner whose tasks finish immediately with the
	// status registered for the first matching substring of their line.
	FakeRunner struct {
		// Default is the status of tasks no rule matches.
		Default runtime.ExitStatus
		// OnStart, when set, runs before the task is finished.
		OnStart func(runtime.Task)

		bus   runtime.Bus
		mu    sync.Mutex
		rules []runRule
		tasks []runtime.Task
		wg    sync.WaitGroup
	}

	runRule struct {
		contains string
		status   runtime.ExitStatus
	}
)

// Respond registers stdout for lines containing substr.
func (f *FakeExecutor) Respond(substr, stdout string) *FakeExecutor {
	return f.RespondWith(substr, runtime.Output{Stdout: stdout}, nil)
}

// Fail makes lines containing substr fail with a *runtime.CommandError.
func (f *FakeExecutor) Fail(substr string, code runtime.ExitCode, stderr string) *FakeExecutor {
	out := runtime.Output{Stderr: stderr, ExitCode: code}
	return f.RespondWith(substr, out, &runtime.CommandError{Line: substr, Output: out, Cause: context.Canceled})
}

// RespondWith registers an arbitrary result for lines containing substr.
func (f *FakeExecutor) RespondWith(substr string, out runtime.Output, err error) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, execRule{contains: substr, out: out, err: err})
	return f
}

// Exec implements runtime.Executor.
func (f *FakeExecutor) Exec(_ context.Context, line, dir string) (runtime.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ExecCall{Line: line, Dir: dir})
	for _, r := range f.rules {
		if strings.Contains(line, r.contains) {
			return r.out, r.err
		}
	}
	return runtime.Output{}, nil
}

// Calls returns the recorded invocations.
func (f *FakeExecutor) Calls() []ExecCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ExecCall(nil), f.calls...)
}

// Lines returns the recorded command lines.
func (f *FakeExecutor) Lines() []string {
	calls := f.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.Line
	}
	return lines
}

// CountContaining returns how many recorded lines contain substr.
func (f *FakeExecutor) CountContaining(substr string) int {
	n := 0
	for _, line := range f.Lines() {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

// NewFakeRunner returns a FakeRunner whose unmatched tasks succeed.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{Default: runtime.Exited(0)}
}

// Finish registers status for tasks whose line contains substr.
func (f *FakeRunner) Finish(substr string, status runtime.ExitStatus) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, runRule{contains: substr, status: status})
	return f
}

// Start implements runtime.Runner. The task ends on another goroutine.
func (f *FakeRunner) Start(_ context.Context, task runtime.Task) (*runtime.Execution, error) {
	f.mu.Lock()
	f.tasks = append(f.tasks, task)
	status := f.Default
	for _, r := range f.rules {
		if strings.Contains(task.Line, r.contains) {
			status = r.status
			break
		}
	}
	f.mu.Unlock()

	if f.OnStart != nil {
		f.OnStart(task)
	}

	exec := runtime.NewExecution(task)
	f.wg.Go(func() { exec.Finish(&f.bus, status) })
	return exec, nil
}

// Events implements runtime.Runner.
func (f *FakeRunner) Events() *runtime.Bus {
	return &f.bus
}

// Tasks returns the started tasks in order.
func (f *FakeRunner) Tasks() []runtime.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runtime.Task(nil), f.tasks...)
}

// Wait blocks until every started task has published its end.
func (f *FakeRunner) Wait() {
	f.wg.Wait()
}
