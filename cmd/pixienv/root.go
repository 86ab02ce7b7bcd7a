// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "pixienv",
		Short: "Activate pixi environments and run their tasks",
		Long: TitleStyle.Render("pixienv") + SubtitleStyle.Render(" - pixi environment activation for your shell") + `

pixienv selects an environment of a pixi workspace, installs it, captures
the variables its activation script exports and keeps them per workspace.
It also lists and runs the workspace's pixi tasks and packs environments
for machines without network access.

` + SubtitleStyle.Render("Examples:") + `
  pixienv activate          Pick, install and activate an environment
  eval "$(pixienv env)"     Load the activated variables into this shell
  pixienv tasks list        Show the tasks of every environment
  pixienv tasks run test    Run the 'test' task
  pixienv offline pack      Build an archive for offline use`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output")
	flags.StringVar(&opts.configFile, "config", "", "config file (default is $XDG_CONFIG_HOME/pixienv/config.cue)")
	flags.StringVarP(&opts.workspace, "workspace", "w", "", "pixi workspace directory (default is the current directory)")
	flags.BoolVar(&opts.accessible, "accessible", false, "use line-based prompts")

	root.AddCommand(
		newActivateCommand(app, opts),
		newAutoActivateCommand(app, opts),
		newDeactivateCommand(app, opts),
		newCreateCommand(app, opts),
		newStatusCommand(app, opts),
		newEnvCommand(app, opts),
		newTasksCommand(app, opts),
		newOfflineCommand(app, opts),
		newConfigCommand(app, opts),
		newWatchCommand(app, opts),
	)
	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the failing command's code.
func Execute() {
	root := NewRootCommand(NewApp(Dependencies{}))
	// fang overrides rootCmd.Version, so the version is passed here.
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}
