// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pixienv/pixienv/pkg/platform"
)

// ErrNoShell is returned when no usable shell can be found on the host.
var ErrNoShell = errors.New("no shell found")

// Shell is an interpreter plus the arguments that precede the command line.
type Shell struct {
	Path string
	Args []string
}

// CaptureShell returns the shell used for captured invocations on goos.
// Capture lines use bare double quotes, which both sh and cmd.exe accept.
func CaptureShell(goos string) Shell {
	if platform.IsWindows(goos) {
		comspec := os.Getenv("ComSpec")
		if comspec == "" {
			comspec = "cmd.exe"
		}
		return Shell{Path: comspec, Args: []string{"/d", "/s", "/c"}}
	}
	return Shell{Path: "/bin/sh", Args: []string{"-c"}}
}

// TaskShell resolves the interactive shell that runs task and terminal
// lines on goos. Windows always resolves to PowerShell because task lines
// are rendered in the PowerShell dialect there.
func TaskShell(goos string) (Shell, error) {
	if platform.IsWindows(goos) {
		if pwsh, err := exec.LookPath("pwsh"); err == nil {
			return Shell{Path: pwsh, Args: shellArgs(pwsh)}, nil
		}
		if ps, err := exec.LookPath("powershell"); err == nil {
			return Shell{Path: ps, Args: shellArgs(ps)}, nil
		}
		return Shell{}, ErrNoShell
	}

	if sh := os.Getenv("SHELL"); sh != "" {
		return Shell{Path: sh, Args: shellArgs(sh)}, nil
	}
	if bash, err := exec.LookPath("bash"); err == nil {
		return Shell{Path: bash, Args: shellArgs(bash)}, nil
	}
	if sh, err := exec.LookPath("sh"); err == nil {
		return Shell{Path: sh, Args: shellArgs(sh)}, nil
	}
	return Shell{}, ErrNoShell
}

// shellArgs returns the arguments that make shell run a single line.
func shellArgs(shell string) []string {
	base := strings.TrimSuffix(filepath.Base(shell), ".exe")

	switch base {
	case "cmd":
		return []string{"/d", "/s", "/c"}
	case "powershell", "pwsh":
		return []string{"-NoProfile", "-Command"}
	default:
		return []string{"-c"}
	}
}
