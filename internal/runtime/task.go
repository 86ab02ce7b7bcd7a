// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type (
	// Task is a command line to run on a Runner.
	Task struct {
		// Name labels the execution for the user (terminal title, log lines).
		Name string
		// Line is the already platform-escaped command line.
		Line string
		// Dir is the working directory.
		Dir string
	}

	// Execution is a started Task. Its ID keys the EndEvent published when
	// the underlying process goes away.
	Execution struct {
		ID   uuid.UUID
		Task Task

		mu     sync.Mutex
		ended  bool
		status ExitStatus
	}

	// EndEvent reports the end of one Execution.
	EndEvent struct {
		ExecutionID uuid.UUID
		Exit        ExitStatus
	}

	// Runner starts Tasks and reports their completion on its Bus.
	Runner interface {
		Start(ctx context.Context, task Task) (*Execution, error)
		Events() *Bus
	}

	// Bus fans EndEvents out to subscribers. The zero value is ready to use.
	Bus struct {
		mu        sync.Mutex
		next      int
		listeners map[int]func(EndEvent)
	}
)

// NewExecution creates an Execution with a fresh ID.
func NewExecution(task Task) *Execution {
	return &Execution{ID: uuid.New(), Task: task}
}

// Status returns the final status and whether the execution has ended.
func (e *Execution) Status() (ExitStatus, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, e.ended
}

// Finish records the final status of e and publishes it on bus.
// Only the first call has any effect.
func (e *Execution) Finish(bus *Bus, status ExitStatus) {
	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		return
	}
	e.ended = true
	e.status = status
	e.mu.Unlock()

	bus.Publish(EndEvent{ExecutionID: e.ID, Exit: status})
}

// OnDidEnd registers fn for every EndEvent and returns a function that
// removes the registration.
func (b *Bus) OnDidEnd(fn func(EndEvent)) (dispose func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[int]func(EndEvent))
	}
	id := b.next
	b.next++
	b.listeners[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// Publish delivers ev to every current subscriber.
func (b *Bus) Publish(ev EndEvent) {
	b.mu.Lock()
	listeners := make([]func(EndEvent), 0, len(b.listeners))
	for _, fn := range b.listeners {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// Await blocks until exec ends, as reported on bus, or ctx is done.
// The engine has no cancellation of its own; a caller that cannot rely on
// the process going away must bound ctx with a deadline.
func Await(ctx context.Context, bus *Bus, exec *Execution) (ExitStatus, error) {
	done := make(chan ExitStatus, 1)
	dispose := bus.OnDidEnd(func(ev EndEvent) {
		if ev.ExecutionID != exec.ID {
			return
		}
		select {
		case done <- ev.Exit:
		default:
		}
	})
	defer dispose()

	// The execution may have ended before the subscription existed.
	if status, ended := exec.Status(); ended {
		return status, nil
	}

	select {
	case status := <-done:
		return status, nil
	case <-ctx.Done():
		return UnknownExit, fmt.Errorf("wait for %q: %w", exec.Task.Name, ctx.Err())
	}
}

// RunAndWait starts task on runner and waits for its completion.
func RunAndWait(ctx context.Context, runner Runner, task Task) (ExitStatus, error) {
	exec, err := runner.Start(ctx, task)
	if err != nil {
		return UnknownExit, err
	}
	return Await(ctx, runner.Events(), exec)
}
