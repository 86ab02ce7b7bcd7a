// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/pixienv/pixienv/internal/watch"

	"github.com/spf13/cobra"
)

func newWatchCommand(app *App, opts *globalOptions) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-activate when pixi.toml or pixi.lock changes",
		Long: `Watch the workspace for edits to pixi.toml and pixi.lock, including nested
workspaces, until interrupted. Each change asks whether to re-activate the
saved environment; with disable_config_change_prompt set, changes are only
logged.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(cmd, opts, func(ctx context.Context, s *session) error {
				if err := s.requireWorkspace(); err != nil {
					return err
				}
				return watchWorkspace(ctx, s, debounce)
			})
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before reacting to changes")
	return cmd
}

func watchWorkspace(ctx context.Context, s *session, debounce time.Duration) error {
	prompt := !s.cfg.DisableConfigChangePrompt
	w, err := watch.New(s.workspace, func(ctx context.Context, changed []string) error {
		return s.manager.ManifestChanged(ctx, changed, prompt)
	}, watch.WithDebounce(debounce), watch.WithLogger(s.logger))
	if err != nil {
		return err
	}

	fmt.Fprintf(s.stderr, "%s %s %s\n", SubtitleStyle.Render("Watching"), s.workspace, SubtitleStyle.Render("(Ctrl+C to stop)"))
	return w.Run(ctx)
}
