// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	goruntime "runtime"
	"strings"

	"github.com/pixienv/pixienv/internal/config"
	"github.com/pixienv/pixienv/internal/pixi"
	"github.com/pixienv/pixienv/pkg/platform"
	"github.com/pixienv/pixienv/pkg/shellexport"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/syntax"
)

const (
	shellPOSIX      = "posix"
	shellPowerShell = "powershell"
)

func newStatusCommand(app *App, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the activation state of the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(cmd, opts, func(ctx context.Context, s *session) error {
				return printStatus(ctx, s, opts)
			})
		},
	}
}

func printStatus(ctx context.Context, s *session, opts *globalOptions) error {
	w := s.stdout
	label := func(name string) string { return TitleStyle.Render(fmt.Sprintf("%-12s", name)) }

	fmt.Fprintln(w, label("Workspace:"), s.workspace)
	if !pixi.HasManifest(s.workspace) {
		fmt.Fprintln(w, label("Manifest:"), SubtitleStyle.Render("(none)"))
	}

	if path, err := s.client.Path(); err != nil {
		fmt.Fprintln(w, label("Pixi:"), WarningStyle.Render("not found"))
	} else {
		fmt.Fprintln(w, label("Pixi:"), path)
	}

	selected, ok, err := s.manager.Selection(ctx)
	if err != nil {
		return err
	}
	switch {
	case !ok:
		fmt.Fprintln(w, label("Environment:"), SubtitleStyle.Render("(not activated)"))
	case selected == "":
		fmt.Fprintln(w, label("Environment:"), CmdStyle.Render("default")+SubtitleStyle.Render(" (manifest default)"))
	default:
		fmt.Fprintln(w, label("Environment:"), CmdStyle.Render(selected))
	}

	sources, err := config.Sources(config.LoadOptions{ConfigFilePath: opts.configFile, WorkspaceDir: s.workspace})
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Fprintln(w, label("Config:"), SubtitleStyle.Render("(defaults)"))
	} else {
		fmt.Fprintln(w, label("Config:"), strings.Join(sources, ", "))
	}

	vars, err := s.manager.Variables(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, label("Variables:"), len(vars))
	if opts.verbose {
		for _, v := range vars {
			fmt.Fprintf(w, "  %s=%s\n", CmdStyle.Render(v.Key), v.Value)
		}
	}
	return nil
}

func newEnvCommand(app *App, opts *globalOptions) *cobra.Command {
	var shell string
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print the activated variables as shell assignments",
		Long: `Print the variables injected by the last activation as assignments for
the given shell, in the order they were applied:

  eval "$(pixienv env)"
  pixienv env --shell powershell | Invoke-Expression`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if shell == "" {
				shell = defaultShell(app.deps.GOOS)
			}
			if shell != shellPOSIX && shell != shellPowerShell {
				return fmt.Errorf("unsupported shell %q (want %s or %s)", shell, shellPOSIX, shellPowerShell)
			}
			return app.run(cmd, opts, func(ctx context.Context, s *session) error {
				vars, err := s.manager.Variables(ctx)
				if err != nil {
					return err
				}
				return writeExports(s.stdout, vars, shell, s.logger)
			})
		},
	}
	cmd.Flags().StringVar(&shell, "shell", "", "output syntax: posix or powershell (default depends on the platform)")
	return cmd
}

func defaultShell(goos string) string {
	if goos == "" {
		goos = goruntime.GOOS
	}
	if platform.IsWindows(goos) {
		return shellPowerShell
	}
	return shellPOSIX
}

// writeExports prints one assignment per variable. Keys that are not valid
// shell names are skipped; the output is evaluated by the user's shell.
func writeExports(w io.Writer, vars []shellexport.VariableUpdate, shell string, logger *log.Logger) error {
	for _, v := range vars {
		if !syntax.ValidName(v.Key) {
			logger.Debug("skipping variable with invalid name", "key", v.Key)
			continue
		}
		var line string
		switch shell {
		case shellPowerShell:
			line = fmt.Sprintf("$env:%s = '%s'", v.Key, strings.ReplaceAll(v.Value, "'", "''"))
		default:
			quoted, err := syntax.Quote(v.Value, syntax.LangPOSIX)
			if err != nil {
				return fmt.Errorf("quote %s: %w", v.Key, err)
			}
			line = fmt.Sprintf("export %s=%s", v.Key, quoted)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
