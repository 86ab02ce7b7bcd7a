// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/pixienv/pixienv/internal/envvars"
	"github.com/pixienv/pixienv/internal/runtime"
	"github.com/pixienv/pixienv/internal/state"
	"github.com/pixienv/pixienv/internal/tui"
	"github.com/pixienv/pixienv/pkg/shellexport"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

const (
	// SelectionKey is the Memento key holding the selected environment.
	SelectionKey = "pixi.selectedEnvironment"
	// DefaultEnvironment is picked by silent selection when present.
	DefaultEnvironment = "default"

	syncTitle = "Activating Pixi Environment (syncing)..."
)

type (
	// CLI is the part of the pixi client activation needs.
	CLI interface {
		Path() (string, error)
		BinDir() string
		Environments(ctx context.Context, dir string) []string
		ShellHook(ctx context.Context, dir, env string) (string, error)
		InstallTask(dir, env string) (runtime.Task, error)
	}

	// Reloader performs the host's reload action.
	Reloader interface {
		Reload(ctx context.Context) error
	}

	// Notifier shows user-visible messages.
	Notifier interface {
		Info(msg string)
		Error(msg string)
	}

	// Deps are the collaborators of a Manager. Workspace, CLI, Memento,
	// Variables and Runner are required.
	Deps struct {
		Workspace string
		CLI       CLI
		Memento   state.Memento
		Variables envvars.Collection
		// Runner shows the install to the user.
		Runner   runtime.Runner
		Prompter tui.Prompter
		Progress tui.Progress
		Reloader Reloader
		Notifier Notifier
		Logger   *log.Logger
		// DefaultEnvironment is used by AutoActivate when nothing was ever
		// persisted.
		DefaultEnvironment string
		// ApplierOptions tune the variable applier.
		ApplierOptions []envvars.Option
		// OnTransition observes every state change.
		OnTransition func(State)
	}

	// Manager runs activation for one workspace.
	Manager struct {
		deps  Deps
		group singleflight.Group

		mu    sync.Mutex
		state State
	}
)

// New returns a Manager for deps.
func New(deps Deps) (*Manager, error) {
	switch {
	case deps.Workspace == "":
		return nil, errors.New("environment: workspace is required")
	case deps.CLI == nil, deps.Memento == nil, deps.Variables == nil, deps.Runner == nil:
		return nil, errors.New("environment: CLI, Memento, Variables and Runner are required")
	}
	if deps.Prompter == nil {
		deps.Prompter = tui.NewFormPrompter(tui.DefaultConfig())
	}
	if deps.Progress == nil {
		deps.Progress = tui.PlainProgress{}
	}
	if deps.Notifier == nil {
		deps.Notifier = logNotifier{}
	}
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard)
	}
	return &Manager{deps: deps}, nil
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) transition(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()

	m.deps.Logger.Debug("activation state", "state", s)
	if m.deps.OnTransition != nil {
		m.deps.OnTransition(s)
	}
}

// Selection returns the persisted environment and whether one exists.
func (m *Manager) Selection(ctx context.Context) (string, bool, error) {
	return m.deps.Memento.Get(ctx, SelectionKey)
}

// Variables returns the injected variables in application order.
func (m *Manager) Variables(ctx context.Context) ([]shellexport.VariableUpdate, error) {
	return m.deps.Variables.Entries(ctx)
}

// Environments lists the workspace's environments.
func (m *Manager) Environments(ctx context.Context) []string {
	return m.deps.CLI.Environments(ctx, m.deps.Workspace)
}

// Activate selects an environment and activates it. When silent, nothing is
// prompted, the install step is skipped and failures are only logged.
func (m *Manager) Activate(ctx context.Context, silent bool) error {
	return m.guarded(ctx, silent, func(ctx context.Context) error {
		return m.activate(ctx, silent)
	})
}

// AutoActivate replays the persisted selection silently. A workspace that
// was never activated falls back to Deps.DefaultEnvironment; an empty
// persisted selection does nothing.
func (m *Manager) AutoActivate(ctx context.Context) error {
	return m.guarded(ctx, true, m.autoActivate)
}

// Deactivate removes the persisted selection and every injected variable.
func (m *Manager) Deactivate(ctx context.Context, silent bool) error {
	if err := m.deps.Memento.Delete(ctx, SelectionKey); err != nil {
		return m.fail("deactivate", err, silent)
	}
	if err := m.deps.Variables.Clear(ctx); err != nil {
		return m.fail("deactivate", err, silent)
	}
	m.transition(StateIdle)

	if !silent {
		m.OfferReload(ctx, "Environment deactivated. Reload to apply changes?")
	}
	return nil
}

// Inject persists selection and applies updates as if they had been
// captured from the shell-hook. The offline flow uses it for unpacked
// environments.
func (m *Manager) Inject(ctx context.Context, selection string, updates []shellexport.VariableUpdate) error {
	if err := m.deps.Memento.Set(ctx, SelectionKey, selection); err != nil {
		return err
	}
	m.transition(StateApplyingVariables)
	if err := m.applier().Apply(ctx, updates); err != nil {
		m.transition(StateFailed)
		return err
	}
	m.transition(StatePersisted)
	m.transition(StateIdle)
	return nil
}

// OfferReload asks whether to reload and runs the Reloader on yes.
func (m *Manager) OfferReload(ctx context.Context, question string) {
	if m.deps.Reloader == nil {
		return
	}
	ok, err := m.deps.Prompter.Confirm(ctx, question, "Reload", "Later")
	if err != nil || !ok {
		m.deps.Logger.Debug("reload deferred", "err", err)
		return
	}
	if err := m.deps.Reloader.Reload(ctx); err != nil {
		m.deps.Notifier.Error(fmt.Sprintf("Reload failed: %v", err))
	}
}

// ManifestChanged reacts to edits of pixi.toml or pixi.lock. With prompt
// set, the user is asked whether to re-activate; a yes replays the persisted
// selection silently. Without prompt the change is only logged.
func (m *Manager) ManifestChanged(ctx context.Context, changed []string, prompt bool) error {
	m.deps.Logger.Info("pixi manifest changed", "files", changed)
	if !prompt {
		return nil
	}
	ok, err := m.deps.Prompter.Confirm(ctx, "The pixi manifest changed. Re-activate the environment?", "Re-activate", "Ignore")
	if err != nil || !ok {
		m.deps.Logger.Debug("re-activation declined", "err", err)
		return nil
	}
	return m.AutoActivate(ctx)
}

// guarded runs fn unless a run of the same mode is already in flight for
// this workspace, in which case the caller waits for and shares that run's
// result. Silent runs (Activate(true) and AutoActivate) share one flight;
// an interactive Activate never joins a silent run.
func (m *Manager) guarded(ctx context.Context, silent bool, fn func(context.Context) error) error {
	key := m.deps.Workspace + "\x00interactive"
	if silent {
		key = m.deps.Workspace + "\x00silent"
	}
	_, err, shared := m.group.Do(key, func() (any, error) {
		return nil, fn(ctx)
	})
	if shared {
		m.deps.Logger.Debug("joined in-flight activation", "workspace", m.deps.Workspace, "silent", silent)
	}
	return err
}

func (m *Manager) activate(ctx context.Context, silent bool) error {
	m.transition(StateCheckingCli)
	if _, err := m.deps.CLI.Path(); err != nil {
		return m.fail("activate", err, silent)
	}

	m.transition(StateSelectingEnvironment)
	envs := m.deps.CLI.Environments(ctx, m.deps.Workspace)
	selected, err := m.selectEnvironment(ctx, envs, silent)
	if err != nil {
		return m.fail("activate", err, silent)
	}

	// Persisted before the shell-hook so a later silent run reuses it even
	// when this one fails.
	if err := m.deps.Memento.Set(ctx, SelectionKey, selected); err != nil {
		return m.fail("activate", err, silent)
	}

	if !silent {
		m.transition(StateInstalling)
		if err := m.install(ctx, selected); err != nil {
			return m.fail("activate", err, silent)
		}
	}

	if err := m.load(ctx, selected, silent); err != nil {
		return m.fail("activate", err, silent)
	}

	if !silent {
		m.deps.Notifier.Info(fmt.Sprintf("Pixi environment '%s' activated.", displayName(selected)))
		m.OfferReload(ctx, "Environment activated. Reload to ensure every tool picks up the changes?")
	}
	m.transition(StateIdle)
	return nil
}

func (m *Manager) autoActivate(ctx context.Context) error {
	selected, ok, err := m.deps.Memento.Get(ctx, SelectionKey)
	if err != nil {
		return m.fail("activate", err, true)
	}
	if !ok {
		if m.deps.DefaultEnvironment == "" {
			return nil
		}
		selected = m.deps.DefaultEnvironment
	}
	if selected == "" {
		return nil
	}

	m.transition(StateCheckingCli)
	if _, err := m.deps.CLI.Path(); err != nil {
		m.deps.Logger.Debug("auto-activation skipped", "err", err)
		m.transition(StateIdle)
		return nil
	}

	m.deps.Logger.Info("auto-activating saved environment", "environment", selected)
	if err := m.load(ctx, selected, true); err != nil {
		return m.fail("activate", err, true)
	}
	m.transition(StateIdle)
	return nil
}

// selectEnvironment picks the environment to activate; "" means the
// manifest default (no -e flag).
func (m *Manager) selectEnvironment(ctx context.Context, envs []string, silent bool) (string, error) {
	switch {
	case len(envs) == 0:
		return "", nil
	case len(envs) == 1:
		return envs[0], nil
	case silent:
		if slices.Contains(envs, DefaultEnvironment) {
			return DefaultEnvironment, nil
		}
		return envs[0], nil
	}

	pick, err := m.deps.Prompter.Select(ctx, "Select Pixi Environment to Activate", envs)
	if err != nil {
		if errors.Is(err, tui.ErrCancelled) {
			return "", ErrSelectionCancelled
		}
		return "", err
	}
	return pick, nil
}

func (m *Manager) install(ctx context.Context, env string) error {
	task, err := m.deps.CLI.InstallTask(m.deps.Workspace, env)
	if err != nil {
		return &InstallError{Environment: env, Cause: err}
	}
	status, err := runtime.RunAndWait(ctx, m.deps.Runner, task)
	if err != nil {
		return &InstallError{Environment: env, Status: status, Cause: err}
	}
	if !status.Success() {
		return &InstallError{Environment: env, Status: status}
	}
	return nil
}

// load captures the shell-hook output for env and applies it.
func (m *Manager) load(ctx context.Context, env string, silent bool) error {
	m.transition(StateRunningShellHook)

	progress := m.deps.Progress
	if silent {
		progress = tui.PlainProgress{}
	}
	var out string
	err := progress.Run(ctx, syncTitle, func(ctx context.Context) error {
		var err error
		out, err = m.deps.CLI.ShellHook(ctx, m.deps.Workspace, env)
		return err
	})
	if err != nil {
		return &ShellHookError{Environment: env, Cause: err}
	}
	m.deps.Logger.Debug("shell-hook output", "environment", displayName(env), "output", out)

	m.transition(StateApplyingVariables)
	vars := shellexport.Parse(out)
	if err := m.applier().Apply(ctx, vars.Updates()); err != nil {
		return err
	}
	m.transition(StatePersisted)
	return nil
}

func (m *Manager) applier() *envvars.Applier {
	return envvars.NewApplier(m.deps.Variables, m.deps.CLI.BinDir(), m.deps.ApplierOptions...)
}

// fail records the failure and reports it: logged when silent, shown to the
// user otherwise.
func (m *Manager) fail(action string, err error, silent bool) error {
	m.transition(StateFailed)
	if silent {
		m.deps.Logger.Warn("failed to "+action+" environment", "err", err)
	} else if !errors.Is(err, ErrSelectionCancelled) {
		m.deps.Notifier.Error(fmt.Sprintf("Failed to %s environment: %v", action, err))
	}
	return err
}

type logNotifier struct{}

func (logNotifier) Info(msg string)  { log.Info(msg) }
func (logNotifier) Error(msg string) { log.Error(msg) }
