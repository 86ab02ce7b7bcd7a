// SPDX-License-Identifier: MPL-2.0

//go:build windows

package runtime

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

// shellCommand builds the process that runs line through shell.
// The raw command line is handed over untouched: cmd.exe and PowerShell do
// their own quote parsing, and Go's argv escaping would double-escape the
// quotes the line already carries.
func shellCommand(ctx context.Context, shell Shell, line string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, shell.Path)
	parts := make([]string, 0, len(shell.Args)+2)
	parts = append(parts, `"`+shell.Path+`"`)
	parts = append(parts, shell.Args...)
	if isCmdExe(shell.Path) {
		// cmd /s strips exactly one outer pair of quotes.
		parts = append(parts, `"`+line+`"`)
	} else {
		parts = append(parts, line)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: strings.Join(parts, " ")}
	return cmd
}

func isCmdExe(path string) bool {
	return strings.TrimSuffix(strings.ToLower(filepath.Base(path)), ".exe") == "cmd"
}
