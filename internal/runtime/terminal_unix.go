// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	goruntime "runtime"
	"syscall"

	"github.com/creack/pty"
)

// TerminalRunner runs Tasks attached to a pseudo-terminal so the tool sees
// a TTY and keeps its colors and progress output. The terminal output is
// copied to the configured writer.
type TerminalRunner struct {
	shell Shell
	out   io.Writer
	bus   Bus
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
	return &TerminalRunner{shell: shell, out: out}, nil
}

// Events returns the runner's completion bus.
func (r *TerminalRunner) Events() *Bus {
	return &r.bus
}

// Start launches task inside a new pseudo-terminal.
func (r *TerminalRunner) Start(ctx context.Context, task Task) (*Execution, error) {
	cmd := shellCommand(ctx, r.shell, task.Line)
	cmd.Dir = task.Dir
	cmd.Env = os.Environ()

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("open terminal %q: %w", task.Name, err)
	}
	if size, sizeErr := pty.GetsizeFull(os.Stdin); sizeErr == nil {
		_ = pty.Setsize(ptmx, size) //nolint:errcheck // cosmetic
	}

	fmt.Fprintf(r.out, "── %s ──\n", task.Name)

	execution := NewExecution(task)
	go func() {
		copyTerminal(r.out, ptmx)
		waitErr := cmd.Wait()
		_ = ptmx.Close() //nolint:errcheck // process already gone
		execution.Finish(&r.bus, statusOf(waitErr))
	}()
	return execution, nil
}

// copyTerminal drains the pty until the child closes it. Linux reports the
// closed slave side as EIO, which is the normal end of output.
func copyTerminal(dst io.Writer, ptmx *os.File) {
	_, err := io.Copy(dst, ptmx)
	if err != nil && !errors.Is(err, syscall.EIO) {
		fmt.Fprintf(dst, "\nterminal: %v\n", err)
	}
}
