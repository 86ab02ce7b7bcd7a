// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newOfflineCommand(app *App, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offline",
		Short: "Pack environments for machines without network access",
		Long: `Pack an environment of this workspace into a self-contained archive with
pixi-pack, or unpack such an archive and activate it.

Archives are named "<label>-<environment>-<platform>.tar", where the label
is offline_environment_name from the configuration.`,
	}
	cmd.AddCommand(newOfflinePackCommand(app, opts), newOfflineUnpackCommand(app, opts))
	return cmd
}

func newOfflinePackCommand(app *App, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pack",
		Short: "Pack an environment into an archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(cmd, opts, func(ctx context.Context, s *session) error {
				if err := s.requireWorkspace(); err != nil {
					return err
				}
				archive, err := s.offline.Pack(ctx)
				if err != nil {
					return reported(err)
				}
				fmt.Fprintln(s.stdout, archive)
				return nil
			})
		},
	}
}

func newOfflineUnpackCommand(app *App, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unpack [archive]",
		Short: "Unpack an archive and activate it",
		Long: `Unpack an archive produced by 'pixienv offline pack' into .pixi/offline
and activate the environment it contains. Without an argument the archive
path is asked for.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var archive string
			if len(args) == 1 {
				archive = args[0]
			}
			return app.run(cmd, opts, func(ctx context.Context, s *session) error {
				return reported(s.offline.Unpack(ctx, archive))
			})
		},
	}
}
