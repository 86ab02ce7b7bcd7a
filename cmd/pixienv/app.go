// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	goruntime "runtime"

	"github.com/pixienv/pixienv/internal/config"
	"github.com/pixienv/pixienv/internal/environment"
	"github.com/pixienv/pixienv/internal/envvars"
	"github.com/pixienv/pixienv/internal/offline"
	"github.com/pixienv/pixienv/internal/pixi"
	"github.com/pixienv/pixienv/internal/runtime"
	"github.com/pixienv/pixienv/internal/state"
	"github.com/pixienv/pixienv/internal/tasks"
	"github.com/pixienv/pixienv/internal/tui"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type (
	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every Cobra handler receives an App and opens a
	// session from it.
	App struct {
		deps Dependencies
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults when a session opens.
	Dependencies struct {
		Config ConfigProvider
		// Executor captures pixi output.
		Executor runtime.Executor
		// Terminal runs installs, pack and unpack where the user sees them.
		Terminal runtime.Runner
		// Tasks runs workspace tasks.
		Tasks    runtime.Runner
		Prompter tui.Prompter
		Progress tui.Progress
		// Locator overrides how the pixi binary is found.
		Locator *pixi.Locator
		// StatePath overrides the state database location.
		StatePath string
		// Setenv replaces os.Setenv when mirroring injected variables.
		Setenv func(key, value string) error
		// GOOS overrides the host platform for variable merging and capture.
		GOOS string
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// globalOptions are the persistent root flags.
	globalOptions struct {
		verbose    bool
		configFile string
		workspace  string
		accessible bool
	}

	// session is the per-invocation wiring of one workspace.
	session struct {
		workspace string
		cfg       *config.Config
		logger    *log.Logger
		stdout    io.Writer
		stderr    io.Writer
		store     *state.Store
		state     *state.Workspace
		client    *pixi.Client
		terminal  runtime.Runner
		runner    runtime.Runner
		prompter  tui.Prompter
		manager   *environment.Manager
		tasks     *tasks.Engine
		offline   *offline.Flow
	}
)

// NewApp creates an App from deps.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	return &App{deps: deps}
}

// open loads configuration for the workspace named by opts and wires the
// engine around it. The caller must Close the session.
func (a *App) open(cmd *cobra.Command, opts *globalOptions) (*session, error) {
	ctx := cmd.Context()
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	workspace, err := resolveWorkspace(opts.workspace)
	if err != nil {
		return nil, err
	}

	cfg, err := a.deps.Config.Load(ctx, config.LoadOptions{
		ConfigFilePath: opts.configFile,
		WorkspaceDir:   workspace,
	})
	if err != nil {
		return nil, err
	}
	if cfg.UI.Verbose {
		opts.verbose = true
	}

	s := &session{
		workspace: workspace,
		cfg:       cfg,
		logger:    newLogger(stderr, opts.verbose),
		stdout:    stdout,
		stderr:    stderr,
	}

	statePath := a.deps.StatePath
	if statePath == "" {
		if statePath, err = config.StateFilePath(""); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(statePath), 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}
	if s.store, err = state.Open(ctx, statePath); err != nil {
		return nil, err
	}
	if s.state, err = s.store.Workspace(workspace); err != nil {
		s.Close()
		return nil, err
	}

	if err := a.wire(s, opts); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (a *App) wire(s *session, opts *globalOptions) error {
	goos := a.deps.GOOS
	if goos == "" {
		goos = goruntime.GOOS
	}

	executor := a.deps.Executor
	if executor == nil {
		executor = runtime.NewShellExecutor()
	}
	locator := pixi.DefaultLocator(s.cfg.PixiPath)
	if a.deps.Locator != nil {
		locator = *a.deps.Locator
	}
	s.client = pixi.NewClient(locator, executor, pixi.WithLogger(s.logger))

	uiCfg := tui.Config{
		Theme:      tui.Theme(s.cfg.UI.Theme),
		Accessible: opts.accessible || s.cfg.UI.Accessible || tui.DefaultConfig().Accessible,
	}
	s.prompter = a.deps.Prompter
	if s.prompter == nil {
		s.prompter = tui.NewFormPrompter(uiCfg)
	}
	progress := a.deps.Progress
	if progress == nil {
		progress = tui.NewSpinnerProgress(uiCfg)
	}

	var err error
	s.runner = a.deps.Tasks
	if s.runner == nil {
		if s.runner, err = runtime.NewTaskRunner(s.stdout, s.stderr); err != nil {
			return err
		}
	}
	s.terminal = a.deps.Terminal
	if s.terminal == nil {
		if s.terminal, err = runtime.NewTerminalRunner(s.stdout); err != nil {
			s.logger.Debug("no pseudo-terminal, installs run as plain tasks", "err", err)
			s.terminal = s.runner
		}
	}

	applierOpts := []envvars.Option{envvars.WithGOOS(goos)}
	if a.deps.Setenv != nil {
		applierOpts = append(applierOpts, envvars.WithSetenv(a.deps.Setenv))
	}

	notifier := &cliNotifier{w: s.stderr}
	reloader := &shellReloader{w: s.stderr, goos: goos}

	s.manager, err = environment.New(environment.Deps{
		Workspace:          s.workspace,
		CLI:                s.client,
		Memento:            s.state,
		Variables:          s.state.Variables(),
		Runner:             s.terminal,
		Prompter:           s.prompter,
		Progress:           progress,
		Reloader:           reloader,
		Notifier:           notifier,
		Logger:             s.logger,
		DefaultEnvironment: s.cfg.DefaultEnvironment,
		ApplierOptions:     applierOpts,
	})
	if err != nil {
		return err
	}

	s.tasks = tasks.NewEngine(s.client,
		tasks.WithIgnorePatterns(s.cfg.IgnoredEnvironments),
		tasks.WithLogger(s.logger),
	)

	s.offline, err = offline.New(offline.Deps{
		Workspace:  s.workspace,
		CLI:        s.client,
		Executor:   executor,
		Runner:     s.terminal,
		Injector:   s.manager,
		Prompter:   s.prompter,
		Reloader:   reloader,
		Notifier:   notifier,
		Logger:     s.logger,
		Label:      s.cfg.OfflineEnvironmentName,
		AutoReload: s.cfg.AutoReload,
		GOOS:       goos,
	})
	return err
}

// Close releases the state database.
func (s *session) Close() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("close state database", "err", err)
	}
}

// requireWorkspace fails with pixi.ErrNoWorkspace outside a pixi workspace.
func (s *session) requireWorkspace() error {
	return pixi.RequireManifest(s.workspace)
}

// run opens a session, runs fn and reports its failure.
func (a *App) run(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, s *session) error) error {
	s, err := a.open(cmd, opts)
	if err != nil {
		return report(cmd, opts, err)
	}
	defer s.Close()
	return report(cmd, opts, fn(cmd.Context(), s))
}

func resolveWorkspace(flag string) (string, error) {
	if flag == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(flag)
	if err != nil {
		return "", fmt.Errorf("resolve workspace %q: %w", flag, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("resolve workspace: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("resolve workspace: %s is not a directory", abs)
	}
	return abs, nil
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{Prefix: "pixienv", Level: level})
}
