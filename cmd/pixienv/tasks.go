// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/pixienv/pixienv/internal/runtime"
	"github.com/pixienv/pixienv/internal/tasks"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

func newTasksCommand(app *App, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List and run the workspace's pixi tasks",
		Long: `List and run the tasks declared in the pixi manifest.

A task declared identically in several environments is listed once and
runs in the manifest default. A task that differs between environments
is listed once per environment as "name (environment)". Environments
matching ignored_environments are left out.`,
	}
	cmd.AddCommand(newTasksListCommand(app, opts), newTasksRunCommand(app, opts))
	return cmd
}

func newTasksListCommand(app *App, opts *globalOptions) *cobra.Command {
	var showCommands bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the discovered tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.run(cmd, opts, func(ctx context.Context, s *session) error {
				if err := s.requireWorkspace(); err != nil {
					return err
				}
				renderTasks(s.stdout, s.tasks.Provide(ctx, s.workspace), showCommands)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&showCommands, "commands", false, "show the command line each task runs")
	return cmd
}

func newTasksRunCommand(app *App, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <task>",
		Short: "Run a discovered task",
		Long: `Run a task by the name shown in 'pixienv tasks list'. The command exits
with the task's exit code.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd, opts, func(ctx context.Context, s *session) error {
				return runTask(ctx, s, args[0])
			})
		},
	}
}

func runTask(ctx context.Context, s *session, name string) error {
	if err := s.requireWorkspace(); err != nil {
		return err
	}
	task, ok := s.tasks.Find(ctx, s.workspace, name)
	if !ok {
		return fmt.Errorf("%w: %q", errTaskNotFound, name)
	}

	s.logger.Debug("running task", "task", task.DisplayName, "cmd", task.CommandLine)
	status, err := runtime.RunAndWait(ctx, s.runner, task.Task(s.workspace))
	if err != nil {
		return err
	}
	if status.Success() {
		return nil
	}
	code := status.HostExitCode()
	if status.Known && code != status.Code {
		s.logger.Debug("task exit code does not fit the host exit code", "task", task.DisplayName, "code", status, "exit", code)
	}
	return &ExitError{Code: code, Err: fmt.Errorf("task %q exited with code %s", task.DisplayName, status)}
}

func renderTasks(w io.Writer, resolved []tasks.Resolved, showCommands bool) {
	if len(resolved) == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("No tasks found."))
		return
	}

	headers := []string{"TASK", "ENVIRONMENT"}
	if showCommands {
		headers = append(headers, "COMMAND")
	}
	rows := make([][]string, 0, len(resolved))
	for _, r := range resolved {
		env := r.Environment
		if env == "" {
			env = tasks.DefaultEnvironment
		}
		row := []string{r.DisplayName, env}
		if showCommands {
			row = append(row, r.CommandLine)
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(SubtitleStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
	fmt.Fprintln(w, t.String())
}
