// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"

	"github.com/pixienv/pixienv/internal/environment"
	"github.com/pixienv/pixienv/internal/pixi"
	"github.com/pixienv/pixienv/internal/runtime"

	"github.com/spf13/cobra"
)

func newActivateCommand(app *App, opts *globalOptions) *cobra.Command {
	var silent bool
	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Select, install and activate an environment",
		Long: `Select an environment of the workspace, install it in the terminal and
capture the variables its activation script exports.

With --silent nothing is prompted and the install is skipped: the
'default' environment (or the first one) is activated and failures are
only logged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(cmd, opts, func(ctx context.Context, s *session) error {
				if err := s.requireWorkspace(); err != nil {
					return err
				}
				return reported(s.manager.Activate(ctx, silent))
			})
		},
	}
	cmd.Flags().BoolVar(&silent, "silent", false, "activate without prompts or install")
	return cmd
}

func newAutoActivateCommand(app *App, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "auto-activate",
		Short: "Re-activate the environment saved for this workspace",
		Long: `Re-activate the environment saved by the last activation, silently.
A workspace that was never activated uses default_environment from the
configuration. Nothing happens outside a pixi workspace or when pixi is
not installed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(cmd, opts, func(ctx context.Context, s *session) error {
				if !pixi.HasManifest(s.workspace) {
					s.logger.Debug("not a pixi workspace, nothing to activate", "dir", s.workspace)
					return nil
				}
				return reported(s.manager.AutoActivate(ctx))
			})
		},
	}
}

func newDeactivateCommand(app *App, opts *globalOptions) *cobra.Command {
	var silent bool
	cmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Forget the saved environment and its variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(cmd, opts, func(ctx context.Context, s *session) error {
				return reported(s.manager.Deactivate(ctx, silent))
			})
		},
	}
	cmd.Flags().BoolVar(&silent, "silent", false, "skip the reload prompt")
	return cmd
}

func newCreateCommand(app *App, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Initialize or install the workspace, then activate it",
		Long: `Create the pixi environment of this directory. Without a pixi.toml the
workspace is initialized with 'pixi init'; otherwise it is installed in
the terminal. The environment is then activated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(cmd, opts, create)
		},
	}
}

func create(ctx context.Context, s *session) error {
	if _, err := s.client.Path(); err != nil {
		return err
	}

	if pixi.HasManifest(s.workspace) {
		task, err := s.client.InstallTask(s.workspace, "")
		if err != nil {
			return err
		}
		status, err := runtime.RunAndWait(ctx, s.terminal, task)
		if err != nil {
			return &environment.InstallError{Status: status, Cause: err}
		}
		if !status.Success() {
			return &environment.InstallError{Status: status}
		}
	} else {
		if err := s.client.Init(ctx, s.workspace); err != nil {
			return err
		}
		s.logger.Info("initialized pixi workspace", "dir", s.workspace)
	}

	return reported(s.manager.Activate(ctx, false))
}
