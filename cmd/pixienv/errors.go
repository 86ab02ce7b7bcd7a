// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pixienv/pixienv/internal/environment"
	"github.com/pixienv/pixienv/internal/issue"
	"github.com/pixienv/pixienv/internal/offline"
	"github.com/pixienv/pixienv/internal/pixi"
	"github.com/pixienv/pixienv/internal/tui"

	"github.com/spf13/cobra"
)

// errTaskNotFound is returned by `tasks run` for a name discovery did not yield.
var errTaskNotFound = errors.New("task not found")

// reportedError marks a failure the engine already showed to the user.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }

func (e *reportedError) Unwrap() error { return e.err }

// reported marks err as already shown. It returns nil for a nil err.
func reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// report renders err for the user and returns the ExitError RunE should
// return. Cobra's own error printing is silenced once a command has started.
func report(cmd *cobra.Command, opts *globalOptions, err error) error {
	if err == nil {
		return nil
	}
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	if cancelled(err) {
		return &ExitError{Code: 1, Err: err}
	}

	w := cmd.ErrOrStderr()
	ae := classify(err)
	var shown *reportedError
	if errors.As(err, &shown) {
		printSuggestions(w, ae.Suggestions)
	} else {
		fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), ae.Format(opts.verbose))
	}

	if opts.verbose && ae.Issue != 0 {
		if page, renderErr := issue.Get(ae.Issue).Render("dark"); renderErr == nil {
			fmt.Fprint(w, page)
		}
	}
	return &ExitError{Code: 1, Err: err}
}

func cancelled(err error) bool {
	return errors.Is(err, environment.ErrSelectionCancelled) ||
		errors.Is(err, tui.ErrCancelled) ||
		errors.Is(err, context.Canceled)
}

func printSuggestions(w io.Writer, suggestions []string) {
	for _, s := range suggestions {
		fmt.Fprintln(w, SubtitleStyle.Render("  • "+s))
	}
}

// classify maps engine failures to issue catalog entries with suggestions.
// Errors that already carry an ActionableError are returned unchanged.
func classify(err error) *issue.ActionableError {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae
	}

	b := issue.NewErrorContext().Wrap(err)
	var (
		installErr *environment.InstallError
		hookErr    *environment.ShellHookError
		packErr    *offline.PackError
		unpackErr  *offline.UnpackError
	)
	switch {
	case errors.Is(err, pixi.ErrCliUnavailable):
		b.WithOperation("locate pixi").
			WithIssue(issue.CliUnavailableId).
			WithSuggestion("Install pixi: curl -fsSL https://pixi.sh/install.sh | bash").
			WithSuggestion("Or set pixi_path in the pixienv configuration")
	case errors.Is(err, pixi.ErrNoWorkspace):
		b.WithOperation("find a pixi workspace").
			WithIssue(issue.NoWorkspaceId).
			WithSuggestion("Run 'pixienv create' to initialize one here").
			WithSuggestion("Or pass --workspace to point at an existing workspace")
	case errors.As(err, &installErr):
		b.WithOperation("install environment").
			WithIssue(issue.InstallFailedId).
			WithSuggestion(fmt.Sprintf("Run '%s' to see the full output", pixiCommand("install", installErr.Environment)))
	case errors.As(err, &hookErr):
		b.WithOperation("activate environment").
			WithIssue(issue.ShellHookFailedId).
			WithSuggestion(fmt.Sprintf("Run '%s' to inspect the activation script", pixiCommand("shell-hook", hookErr.Environment)))
	case errors.As(err, &packErr):
		b.WithOperation("pack environment").
			WithIssue(issue.PackFailedId).
			WithSuggestion("Check that pixi-pack can be added to the workspace").
			WithSuggestion("Re-run with --verbose to see the failing step")
	case errors.As(err, &unpackErr):
		b.WithOperation("unpack environment").
			WithResource(unpackErr.Archive).
			WithIssue(issue.UnpackFailedId).
			WithSuggestion("Check that the archive was produced by 'pixienv offline pack'").
			WithSuggestion("The archive must target this machine's platform")
	case errors.Is(err, errTaskNotFound):
		b.WithOperation("run task").
			WithIssue(issue.TaskNotFoundId).
			WithSuggestion("Run 'pixienv tasks list' to see the discovered tasks")
	default:
		b.WithOperation("run pixienv")
	}
	return b.Build()
}

func pixiCommand(sub, env string) string {
	parts := []string{"pixi", sub}
	if env != "" {
		parts = append(parts, "-e", env)
	}
	return strings.Join(parts, " ")
}
