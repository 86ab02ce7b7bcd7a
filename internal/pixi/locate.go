// SPDX-License-Identifier: MPL-2.0

package pixi

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"

	"github.com/pixienv/pixienv/pkg/platform"
)

// HomeEnvVar overrides the pixi installation root (default ~/.pixi).
const HomeEnvVar = "PIXI_HOME"

// ErrCliUnavailable is returned when no pixi binary can be found.
var ErrCliUnavailable = errors.New("pixi CLI is not available")

// Locator finds the pixi binary. Lookup order: the configured path, the
// binary under the pixi home directory, then PATH.
type Locator struct {
	Configured string
	Home       string
	GOOS       string
	LookPath   func(file string) (string, error)
}

// DefaultLocator returns a Locator for the current host.
func DefaultLocator(configured string) Locator {
	home := os.Getenv(HomeEnvVar)
	if home == "" {
		if userHome, err := os.UserHomeDir(); err == nil {
			home = filepath.Join(userHome, ".pixi")
		}
	}
	return Locator{
		Configured: configured,
		Home:       home,
		GOOS:       goruntime.GOOS,
		LookPath:   exec.LookPath,
	}
}

// Locate returns the absolute path of the pixi binary.
func (l Locator) Locate() (string, error) {
	if l.Configured != "" {
		if isFile(l.Configured) {
			return filepath.Abs(l.Configured)
		}
		return "", fmt.Errorf("%w: configured path %q does not exist", ErrCliUnavailable, l.Configured)
	}

	if l.Home != "" {
		candidate := filepath.Join(l.Home, "bin", l.binaryName())
		if isFile(candidate) {
			return candidate, nil
		}
	}

	if l.LookPath != nil {
		if found, err := l.LookPath("pixi"); err == nil {
			return filepath.Abs(found)
		}
	}
	return "", ErrCliUnavailable
}

func (l Locator) binaryName() string {
	if platform.IsWindows(l.GOOS) {
		return "pixi.exe"
	}
	return "pixi"
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
