// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pixienv/pixienv/pkg/platform"
)

type (
	// cliNotifier prints engine notifications to stderr.
	cliNotifier struct {
		mu sync.Mutex
		w  io.Writer
	}

	// shellReloader stands in for a host reload. A CLI cannot change its
	// parent shell, so it tells the user how to load the injected variables.
	shellReloader struct {
		w    io.Writer
		goos string
	}
)

func (n *cliNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, SuccessStyle.Render("✓")+" "+msg)
}

func (n *cliNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, ErrorStyle.Render("✗")+" "+msg)
}

// Reload prints the command that loads the workspace variables into the
// current shell.
func (r *shellReloader) Reload(context.Context) error {
	_, err := fmt.Fprintf(r.w, "%s run %s or open a new shell.\n",
		WarningStyle.Render("To reload:"), CmdStyle.Render(reloadCommand(r.goos)))
	return err
}

func reloadCommand(goos string) string {
	if platform.IsWindows(goos) {
		return "pixienv env --shell powershell | Invoke-Expression"
	}
	return `eval "$(pixienv env)"`
}
