// SPDX-License-Identifier: MPL-2.0

package pixi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	goruntime "runtime"
	"slices"

	"github.com/pixienv/pixienv/internal/runtime"
	"github.com/pixienv/pixienv/pkg/cmdline"

	"github.com/charmbracelet/log"
)

type (
	// Client issues pixi commands for one host.
	Client struct {
		locator  Locator
		executor runtime.Executor
		capture  cmdline.Builder
		terminal cmdline.Builder
		logger   *log.Logger
	}

	// Option configures a Client.
	Option func(*Client)

	// EnvironmentTasks is one entry of the `task list --json` document.
	EnvironmentTasks struct {
		Environment string    `json:"environment"`
		Features    []Feature `json:"features"`
	}

	// Feature groups tasks within an environment.
	Feature struct {
		Name  string     `json:"name"`
		Tasks []TaskSpec `json:"tasks"`
	}

	// TaskSpec is a declared task.
	TaskSpec struct {
		Name string `json:"name"`
		Cmd  string `json:"cmd"`
	}

	infoDocument struct {
		EnvironmentsInfo []struct {
			Name string `json:"name"`
		} `json:"environments_info"`
	}

	listedPackage struct {
		Name string `json:"name"`
	}
)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTerminalDialect overrides the dialect of terminal command lines.
func WithTerminalDialect(d cmdline.Dialect) Option {
	return func(c *Client) { c.terminal = cmdline.New(d) }
}

// NewClient returns a Client that finds pixi with locator and runs capture
// queries through executor.
func NewClient(locator Locator, executor runtime.Executor, opts ...Option) *Client {
	c := &Client{
		locator:  locator,
		executor: executor,
		capture:  cmdline.New(cmdline.POSIX),
		terminal: cmdline.New(cmdline.DialectFor(goruntime.GOOS)),
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the pixi binary path, or ErrCliUnavailable.
func (c *Client) Path() (string, error) {
	return c.locator.Locate()
}

// BinDir returns the directory holding the pixi binary, or "" when pixi is
// unavailable.
func (c *Client) BinDir() string {
	path, err := c.Path()
	if err != nil {
		return ""
	}
	return filepath.Dir(path)
}

// Terminal returns the builder for lines run in the user's terminal.
func (c *Client) Terminal() cmdline.Builder {
	return c.terminal
}

// Environments lists the environment names from `info --json`. Any failure
// degrades to an empty list.
func (c *Client) Environments(ctx context.Context, dir string) []string {
	out, err := c.query(ctx, dir, "info --json", "")
	if err != nil {
		c.logger.Warn("listing environments failed", "err", err)
		return nil
	}

	var doc infoDocument
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		c.logger.Warn("unreadable pixi info output", "err", err)
		return nil
	}
	names := make([]string, 0, len(doc.EnvironmentsInfo))
	for _, env := range doc.EnvironmentsInfo {
		names = append(names, env.Name)
	}
	return names
}

// ShellHook returns the raw `shell-hook --shell bash` output for env; env
// "" selects the manifest default.
func (c *Client) ShellHook(ctx context.Context, dir, env string) (string, error) {
	return c.query(ctx, dir, "shell-hook --shell bash", env)
}

// TaskGraph returns the decoded `task list --json` document.
func (c *Client) TaskGraph(ctx context.Context, dir string) ([]EnvironmentTasks, error) {
	out, err := c.query(ctx, dir, "task list --json", "")
	if err != nil {
		return nil, err
	}
	var graph []EnvironmentTasks
	if err := json.Unmarshal([]byte(out), &graph); err != nil {
		return nil, fmt.Errorf("decode task list: %w", err)
	}
	return graph, nil
}

// HasPackage reports whether `list --json` contains name.
func (c *Client) HasPackage(ctx context.Context, dir, name string) (bool, error) {
	out, err := c.query(ctx, dir, "list --json", "")
	if err != nil {
		return false, err
	}
	var pkgs []listedPackage
	if err := json.Unmarshal([]byte(out), &pkgs); err != nil {
		return false, fmt.Errorf("decode package list: %w", err)
	}
	return slices.ContainsFunc(pkgs, func(p listedPackage) bool { return p.Name == name }), nil
}

// AddPackage runs `add <name>`.
func (c *Client) AddPackage(ctx context.Context, dir, name string) error {
	_, err := c.query(ctx, dir, "add "+c.capture.QuoteIfNeeded(name), "")
	return err
}

// Init runs `init` in dir.
func (c *Client) Init(ctx context.Context, dir string) error {
	_, err := c.query(ctx, dir, "init", "")
	return err
}

// InstallTask returns the visible `install --color always` task for env.
func (c *Client) InstallTask(dir, env string) (runtime.Task, error) {
	return c.TerminalTask(installTaskName(env), dir, "install --color always", env)
}

// TerminalTask returns a task running subcommand in the user's terminal.
func (c *Client) TerminalTask(name, dir, subcommand, env string) (runtime.Task, error) {
	path, err := c.Path()
	if err != nil {
		return runtime.Task{}, err
	}
	return runtime.Task{
		Name: name,
		Line: c.terminal.Build(path, subcommand, env),
		Dir:  dir,
	}, nil
}

func (c *Client) query(ctx context.Context, dir, subcommand, env string) (string, error) {
	path, err := c.Path()
	if err != nil {
		return "", err
	}
	line := c.capture.Build(path, subcommand, env)
	c.logger.Debug("running pixi", "cmd", line, "dir", dir)

	out, err := c.executor.Exec(ctx, line, dir)
	if err != nil {
		return "", err
	}
	return out.Stdout, nil
}

func installTaskName(env string) string {
	if env == "" {
		return "Pixi Install"
	}
	return "Pixi Install (" + env + ")"
}
