// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package runtime

import (
	"context"
	"os/exec"
)

// shellCommand builds the process that runs line through shell.
func shellCommand(ctx context.Context, shell Shell, line string) *exec.Cmd {
	args := make([]string, 0, len(shell.Args)+1)
	args = append(args, shell.Args...)
	args = append(args, line)
	return exec.CommandContext(ctx, shell.Path, args...)
}
