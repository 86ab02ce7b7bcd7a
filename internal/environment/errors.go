// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"errors"
	"fmt"

	"github.com/pixienv/pixienv/internal/pixi"
	"github.com/pixienv/pixienv/internal/runtime"
)

var (
	// ErrCliUnavailable is returned when pixi cannot be found.
	ErrCliUnavailable = pixi.ErrCliUnavailable
	// ErrInstallFailed is the sentinel error wrapped by InstallError.
	ErrInstallFailed = errors.New("pixi install failed")
	// ErrShellHookFailed is the sentinel error wrapped by ShellHookError.
	ErrShellHookFailed = errors.New("pixi shell-hook failed")
	// ErrSelectionCancelled is returned when the user dismisses the
	// environment picker.
	ErrSelectionCancelled = errors.New("environment selection cancelled")
)

type (
	// InstallError reports a visible install that did not end with code 0.
	InstallError struct {
		Environment string
		Status      runtime.ExitStatus
		Cause       error
	}

	// ShellHookError reports a failed shell-hook capture.
	ShellHookError struct {
		Environment string
		Cause       error
	}
)

// Error implements the error interface.
func (e *InstallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("pixi install for %s: %v", displayName(e.Environment), e.Cause)
	}
	return fmt.Sprintf("pixi install terminal for %s closed with code %s", displayName(e.Environment), e.Status)
}

// Unwrap returns ErrInstallFailed and the cause, if any.
func (e *InstallError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrInstallFailed}
	}
	return []error{ErrInstallFailed, e.Cause}
}

// Error implements the error interface.
func (e *ShellHookError) Error() string {
	return fmt.Sprintf("activate %s: %v", displayName(e.Environment), e.Cause)
}

// Unwrap returns ErrShellHookFailed and the cause.
func (e *ShellHookError) Unwrap() []error {
	return []error{ErrShellHookFailed, e.Cause}
}

func displayName(env string) string {
	if env == "" {
		return "default"
	}
	return env
}
