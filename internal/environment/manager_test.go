// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pixienv/pixienv/internal/envvars"
	"github.com/pixienv/pixienv/internal/pixi"
	"github.com/pixienv/pixienv/internal/runtime"
	"github.com/pixienv/pixienv/internal/state"
	"github.com/pixienv/pixienv/internal/testutil"
	"github.com/pixienv/pixienv/pkg/shellexport"

	"github.com/google/go-cmp/cmp"
)

const (
	testWorkspace = "/work/project"
	testBinDir    = "/opt/cli/bin"
	hookOutput    = "echo activating\nexport PATH=\"/env/bin:/usr/bin\"\nexport CONDA_PREFIX='/env'\nexport PIXI_ENVIRONMENT_NAME=%s\n"
)

type (
	fakeCLI struct {
		unavailable bool
		envs        []string
		hookErr     error
		// beforeHook runs at the start of ShellHook.
		beforeHook func(env string)

		mu    sync.Mutex
		hooks []string
	}

	memMemento struct {
		mu     sync.Mutex
		values map[string]string
	}

	recordingNotifier struct {
		mu     sync.Mutex
		infos  []string
		errors []string
	}

	countingReloader struct {
		mu    sync.Mutex
		count int
	}
)

func (f *fakeCLI) Path() (string, error) {
	if f.unavailable {
		return "", pixi.ErrCliUnavailable
	}
	return testBinDir + "/pixi", nil
}

func (f *fakeCLI) BinDir() string { return testBinDir }

func (f *fakeCLI) Environments(context.Context, string) []string { return f.envs }

func (f *fakeCLI) ShellHook(_ context.Context, _, env string) (string, error) {
	if f.beforeHook != nil {
		f.beforeHook(env)
	}
	f.mu.Lock()
	f.hooks = append(f.hooks, env)
	f.mu.Unlock()
	if f.hookErr != nil {
		return "", f.hookErr
	}
	return fmt.Sprintf(hookOutput, env), nil
}

func (f *fakeCLI) InstallTask(dir, env string) (runtime.Task, error) {
	line := `"` + testBinDir + `/pixi" install --color always`
	if env != "" {
		line += " -e " + env
	}
	return runtime.Task{Name: "Pixi Install", Line: line, Dir: dir}, nil
}

func (f *fakeCLI) Hooks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.hooks...)
}

func (m *memMemento) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memMemento) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

func (m *memMemento) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (n *recordingNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (r *countingReloader) Reload(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return nil
}

type harness struct {
	cli      *fakeCLI
	memento  *memMemento
	vars     *envvars.MemoryCollection
	runner   *testutil.FakeRunner
	prompter *testutil.FakePrompter
	progress *testutil.CountingProgress
	notifier *recordingNotifier
	reloader *countingReloader
	env      map[string]string
	states   []State
	manager  *Manager
}

func newHarness(t *testing.T, cli *fakeCLI, configure func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		cli:      cli,
		memento:  &memMemento{},
		vars:     &envvars.MemoryCollection{},
		runner:   testutil.NewFakeRunner(),
		prompter: &testutil.FakePrompter{},
		progress: &testutil.CountingProgress{},
		notifier: &recordingNotifier{},
		reloader: &countingReloader{},
		env:      map[string]string{},
	}
	var statesMu sync.Mutex
	deps := Deps{
		Workspace: testWorkspace,
		CLI:       cli,
		Memento:   h.memento,
		Variables: h.vars,
		Runner:    h.runner,
		Prompter:  h.prompter,
		Progress:  h.progress,
		Reloader:  h.reloader,
		Notifier:  h.notifier,
		ApplierOptions: []envvars.Option{
			envvars.WithGOOS("linux"),
			envvars.WithSetenv(func(k, v string) error {
				statesMu.Lock()
				defer statesMu.Unlock()
				h.env[k] = v
				return nil
			}),
		},
		OnTransition: func(s State) {
			statesMu.Lock()
			defer statesMu.Unlock()
			h.states = append(h.states, s)
		},
	}
	if configure != nil {
		configure(&deps)
	}
	m, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.manager = m
	return h
}

func (h *harness) selection(t *testing.T) (string, bool) {
	t.Helper()
	v, ok, err := h.memento.Get(t.Context(), SelectionKey)
	if err != nil {
		t.Fatal(err)
	}
	return v, ok
}

func (h *harness) entries(t *testing.T) []shellexport.VariableUpdate {
	t.Helper()
	got, err := h.vars.Entries(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func TestActivate_SingleEnvironmentInteractive(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeCLI{envs: []string{"cuda"}}, nil)
	h.prompter.Confirms = []bool{true}

	if err := h.manager.Activate(t.Context(), false); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	if sel, ok := h.selection(t); !ok || sel != "cuda" {
		t.Errorf("selection = %q (present %v), want cuda", sel, ok)
	}
	tasks := h.runner.Tasks()
	if len(tasks) != 1 || !strings.HasSuffix(tasks[0].Line, "install --color always -e cuda") {
		t.Errorf("install tasks = %+v", tasks)
	}
	if diff := cmp.Diff([]string{"cuda"}, h.cli.Hooks()); diff != "" {
		t.Errorf("shell-hook calls mismatch (-want +got):\n%s", diff)
	}

	want := []shellexport.VariableUpdate{
		{Key: "PATH", Value: testBinDir + ":/env/bin:/usr/bin"},
		{Key: "CONDA_PREFIX", Value: "/env"},
		{Key: "PIXI_ENVIRONMENT_NAME", Value: "cuda"},
	}
	if diff := cmp.Diff(want, h.entries(t)); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}
	if h.env["PATH"] != want[0].Value {
		t.Errorf("process PATH = %q", h.env["PATH"])
	}

	wantStates := []State{
		StateCheckingCli, StateSelectingEnvironment, StateInstalling,
		StateRunningShellHook, StateApplyingVariables, StatePersisted, StateIdle,
	}
	if diff := cmp.Diff(wantStates, h.states); diff != "" {
		t.Errorf("transitions mismatch (-want +got):\n%s", diff)
	}
	if len(h.progress.Titles()) != 1 {
		t.Errorf("progress shown %d times, want 1", len(h.progress.Titles()))
	}
	if h.reloader.count != 1 {
		t.Errorf("reload count = %d, want 1", h.reloader.count)
	}
	if len(h.notifier.infos) != 1 || !strings.Contains(h.notifier.infos[0], "'cuda' activated") {
		t.Errorf("infos = %v", h.notifier.infos)
	}
}

func TestActivate_SelectionPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		envs       []string
		silent     bool
		picks      []string
		want       string
		wantPrompt bool
	}{
		{name: "none uses manifest default", envs: nil, want: ""},
		{name: "single picked automatically", envs: []string{"only"}, want: "only"},
		{name: "several prompts when interactive", envs: []string{"default", "cuda"}, picks: []string{"cuda"}, want: "cuda", wantPrompt: true},
		{name: "silent prefers default", envs: []string{"cuda", "default"}, silent: true, want: "default"},
		{name: "silent falls back to first", envs: []string{"cuda", "cpu"}, silent: true, want: "cuda"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, &fakeCLI{envs: tt.envs}, nil)
			h.prompter.Selections = tt.picks
			h.prompter.Confirms = []bool{false}

			if err := h.manager.Activate(t.Context(), tt.silent); err != nil {
				t.Fatalf("Activate() error = %v", err)
			}
			sel, ok := h.selection(t)
			if !ok || sel != tt.want {
				t.Errorf("selection = %q (present %v), want %q", sel, ok, tt.want)
			}
			if hooks := h.cli.Hooks(); len(hooks) != 1 || hooks[0] != tt.want {
				t.Errorf("shell-hook envs = %q, want [%q]", hooks, tt.want)
			}

			prompted := false
			for _, title := range h.prompter.Titles() {
				if strings.HasPrefix(title, "Select") {
					prompted = true
				}
			}
			if prompted != tt.wantPrompt {
				t.Errorf("prompted = %v, want %v", prompted, tt.wantPrompt)
			}
		})
	}
}

func TestActivate_SilentSkipsInstallAndPrompts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeCLI{envs: []string{"a", "b"}}, nil)
	if err := h.manager.Activate(t.Context(), true); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if n := len(h.runner.Tasks()); n != 0 {
		t.Errorf("install ran %d times in silent mode", n)
	}
	if titles := h.prompter.Titles(); len(titles) != 0 {
		t.Errorf("prompts shown in silent mode: %v", titles)
	}
	if len(h.progress.Titles()) != 0 {
		t.Error("progress shown in silent mode")
	}
	if h.reloader.count != 0 {
		t.Error("reloaded in silent mode")
	}
}

func TestActivate_PersistsBeforeShellHook(t *testing.T) {
	t.Parallel()

	cli := &fakeCLI{envs: []string{"cuda"}, hookErr: errors.New("solve failed")}
	var h *harness
	cli.beforeHook = func(string) {
		if sel, ok := h.selection(t); !ok || sel != "cuda" {
			t.Errorf("selection at shell-hook time = %q (present %v)", sel, ok)
		}
	}
	h = newHarness(t, cli, nil)

	err := h.manager.Activate(t.Context(), true)
	if !errors.Is(err, ErrShellHookFailed) {
		t.Fatalf("Activate() error = %v, want ErrShellHookFailed", err)
	}
	if sel, ok := h.selection(t); !ok || sel != "cuda" {
		t.Errorf("selection after failure = %q (present %v)", sel, ok)
	}
	if len(h.entries(t)) != 0 {
		t.Error("variables applied after a failed shell-hook")
	}
	if len(h.notifier.errors) != 0 {
		t.Errorf("silent failure shown to the user: %v", h.notifier.errors)
	}
	if h.manager.State() != StateFailed {
		t.Errorf("State() = %v, want failed", h.manager.State())
	}
}

func TestActivate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		cli          *fakeCLI
		install      runtime.ExitStatus
		picks        []string
		wantErr      error
		wantPersist  bool
		wantHook     bool
		wantNotified bool
		wantMessage  string
	}{
		{
			name:         "cli unavailable",
			cli:          &fakeCLI{unavailable: true},
			install:      runtime.Exited(0),
			wantErr:      ErrCliUnavailable,
			wantNotified: true,
		},
		{
			name:         "install non-zero",
			cli:          &fakeCLI{envs: []string{"cuda"}},
			install:      runtime.Exited(1),
			wantErr:      ErrInstallFailed,
			wantPersist:  true,
			wantNotified: true,
			wantMessage:  "closed with code 1",
		},
		{
			name:         "install closed without exit code",
			cli:          &fakeCLI{envs: []string{"cuda"}},
			install:      runtime.UnknownExit,
			wantErr:      ErrInstallFailed,
			wantPersist:  true,
			wantNotified: true,
			wantMessage:  "closed with code unknown",
		},
		{
			name:         "shell-hook failure",
			cli:          &fakeCLI{envs: []string{"cuda"}, hookErr: errors.New("exit status 1")},
			install:      runtime.Exited(0),
			wantErr:      ErrShellHookFailed,
			wantPersist:  true,
			wantHook:     true,
			wantNotified: true,
		},
		{
			name:    "selection cancelled",
			cli:     &fakeCLI{envs: []string{"a", "b"}},
			install: runtime.Exited(0),
			wantErr: ErrSelectionCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, tt.cli, nil)
			h.runner.Default = tt.install
			h.prompter.Selections = tt.picks

			err := h.manager.Activate(t.Context(), false)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Activate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMessage != "" && !strings.Contains(err.Error(), tt.wantMessage) {
				t.Errorf("error %q does not mention %q", err, tt.wantMessage)
			}
			if _, ok := h.selection(t); ok != tt.wantPersist {
				t.Errorf("selection persisted = %v, want %v", ok, tt.wantPersist)
			}
			if hooked := len(h.cli.Hooks()) > 0; hooked != tt.wantHook {
				t.Errorf("shell-hook ran = %v, want %v", hooked, tt.wantHook)
			}
			if notified := len(h.notifier.errors) > 0; notified != tt.wantNotified {
				t.Errorf("user notified = %v (%v), want %v", notified, h.notifier.errors, tt.wantNotified)
			}
			if len(h.entries(t)) != 0 {
				t.Error("variables applied despite failure")
			}
			if h.manager.State() != StateFailed {
				t.Errorf("State() = %v, want failed", h.manager.State())
			}
		})
	}
}

func TestAutoActivate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		persisted  *string
		defaultEnv string
		cli        *fakeCLI
		wantHooks  []string
	}{
		{name: "never activated", wantHooks: nil},
		{name: "empty persisted selection", persisted: ptr(""), defaultEnv: "dev", wantHooks: nil},
		{name: "persisted selection replayed", persisted: ptr("cuda"), wantHooks: []string{"cuda"}},
		{name: "configured default when never activated", defaultEnv: "dev", wantHooks: []string{"dev"}},
		{name: "cli unavailable", persisted: ptr("cuda"), cli: &fakeCLI{unavailable: true}, wantHooks: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cli := tt.cli
			if cli == nil {
				cli = &fakeCLI{envs: []string{"cuda", "dev"}}
			}
			h := newHarness(t, cli, func(d *Deps) { d.DefaultEnvironment = tt.defaultEnv })
			if tt.persisted != nil {
				_ = h.memento.Set(t.Context(), SelectionKey, *tt.persisted)
			}

			if err := h.manager.AutoActivate(t.Context()); err != nil {
				t.Fatalf("AutoActivate() error = %v", err)
			}
			if diff := cmp.Diff(tt.wantHooks, h.cli.Hooks()); diff != "" {
				t.Errorf("shell-hook calls mismatch (-want +got):\n%s", diff)
			}
			if tt.wantHooks == nil && len(h.entries(t)) != 0 {
				t.Error("variables changed without a shell-hook")
			}
			if len(h.runner.Tasks()) != 0 || len(h.prompter.Titles()) != 0 {
				t.Error("auto-activation installed or prompted")
			}
		})
	}
}

func TestManifestChanged(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		prompt    bool
		confirms  []bool
		wantHooks []string
		wantAsked int
	}{
		{name: "prompt disabled only logs", prompt: false, wantHooks: nil, wantAsked: 0},
		{name: "confirmed replays selection", prompt: true, confirms: []bool{true}, wantHooks: []string{"cuda"}, wantAsked: 1},
		{name: "declined", prompt: true, confirms: []bool{false}, wantHooks: nil, wantAsked: 1},
		{name: "dismissed", prompt: true, wantHooks: nil, wantAsked: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, &fakeCLI{envs: []string{"cuda", "dev"}}, nil)
			_ = h.memento.Set(t.Context(), SelectionKey, "cuda")
			h.prompter.Confirms = tt.confirms

			if err := h.manager.ManifestChanged(t.Context(), []string{"pixi.toml"}, tt.prompt); err != nil {
				t.Fatalf("ManifestChanged() error = %v", err)
			}
			if diff := cmp.Diff(tt.wantHooks, h.cli.Hooks()); diff != "" {
				t.Errorf("shell-hook calls mismatch (-want +got):\n%s", diff)
			}
			if got := len(h.prompter.Titles()); got != tt.wantAsked {
				t.Errorf("prompts = %d, want %d", got, tt.wantAsked)
			}
			if len(h.runner.Tasks()) != 0 {
				t.Error("re-activation ran an install")
			}
		})
	}
}

func TestDeactivate(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeCLI{envs: []string{"cuda"}}, nil)
	ctx := t.Context()
	if err := h.manager.Activate(ctx, true); err != nil {
		t.Fatal(err)
	}
	h.prompter.Confirms = []bool{false}

	if err := h.manager.Deactivate(ctx, false); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	if _, ok := h.selection(t); ok {
		t.Error("selection still present after Deactivate()")
	}
	if got := h.entries(t); len(got) != 0 {
		t.Errorf("variables after Deactivate() = %v", got)
	}
	if titles := h.prompter.Titles(); len(titles) != 1 {
		t.Errorf("reload prompts = %v, want one", titles)
	}
	if h.reloader.count != 0 {
		t.Error("reloaded after the user chose Later")
	}
}

func TestDeactivate_WithSQLiteState(t *testing.T) {
	t.Parallel()
	ctx := t.Context()

	store, err := state.Open(ctx, state.MemoryPath)
	if err != nil {
		t.Fatal(err)
	}
	defer testutil.MustClose(t, store)
	ws, err := store.Workspace(testWorkspace)
	if err != nil {
		t.Fatal(err)
	}

	h := newHarness(t, &fakeCLI{envs: []string{"cuda"}}, func(d *Deps) {
		d.Memento = ws
		d.Variables = ws.Variables()
	})
	if err := h.manager.Activate(ctx, true); err != nil {
		t.Fatal(err)
	}
	if vars, _ := ws.Variables().Entries(ctx); len(vars) != 3 {
		t.Fatalf("persisted variables = %v", vars)
	}

	if err := h.manager.Deactivate(ctx, true); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	if _, ok, _ := ws.Get(ctx, SelectionKey); ok {
		t.Error("selection present after Deactivate()")
	}
	if vars, _ := ws.Variables().Entries(ctx); len(vars) != 0 {
		t.Errorf("variables after Deactivate() = %v", vars)
	}
}

func TestActivate_SingleFlight(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	cli := &fakeCLI{envs: []string{"cuda"}}
	cli.beforeHook = func(string) {
		once.Do(func() { close(entered) })
		<-release
	}
	h := newHarness(t, cli, nil)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	errs := make(chan error, 2)
	go func() { errs <- h.manager.Activate(ctx, true) }()
	<-entered
	go func() { errs <- h.manager.AutoActivate(ctx) }()
	// Give the second caller time to join the in-flight run.
	time.Sleep(100 * time.Millisecond)
	close(release)

	for range 2 {
		if err := <-errs; err != nil {
			t.Errorf("concurrent activation error = %v", err)
		}
	}
	if hooks := cli.Hooks(); len(hooks) != 1 {
		t.Errorf("shell-hook ran %d times, want 1", len(hooks))
	}
}

func TestActivate_InteractiveDoesNotJoinSilentRun(t *testing.T) {
	t.Parallel()

	started := make(chan string, 2)
	release := make(chan struct{})
	cli := &fakeCLI{envs: []string{"cuda"}}
	cli.beforeHook = func(env string) {
		started <- env
		<-release
	}
	h := newHarness(t, cli, nil)
	h.prompter.Confirms = []bool{false}
	if err := h.memento.Set(t.Context(), SelectionKey, "cuda"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	errs := make(chan error, 2)
	go func() { errs <- h.manager.AutoActivate(ctx) }()
	<-started
	go func() { errs <- h.manager.Activate(ctx, false) }()

	select {
	case <-started:
	case <-ctx.Done():
		close(release)
		t.Fatal("interactive Activate joined the silent run instead of running its own")
	}
	close(release)

	for range 2 {
		if err := <-errs; err != nil {
			t.Errorf("activation error = %v", err)
		}
	}
	if hooks := cli.Hooks(); len(hooks) != 2 {
		t.Errorf("shell-hook ran %d times, want 2", len(hooks))
	}
	if tasks := h.runner.Tasks(); len(tasks) != 1 {
		t.Errorf("install ran %d times, want 1 for the interactive run", len(tasks))
	}
}

func TestInject(t *testing.T) {
	t.Parallel()

	h := newHarness(t, &fakeCLI{}, nil)
	updates := []shellexport.VariableUpdate{{Key: "PATH", Value: "/offline/bin"}, {Key: "X", Value: "1"}}
	if err := h.manager.Inject(t.Context(), "env", updates); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if sel, ok := h.selection(t); !ok || sel != "env" {
		t.Errorf("selection = %q, %v", sel, ok)
	}
	want := []shellexport.VariableUpdate{{Key: "PATH", Value: testBinDir + ":/offline/bin"}, {Key: "X", Value: "1"}}
	if diff := cmp.Diff(want, h.entries(t)); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	if got := StateRunningShellHook.String(); got != "running-shell-hook" {
		t.Errorf("String() = %q", got)
	}
	if got := State(42).String(); got != "unknown" {
		t.Errorf("String() = %q", got)
	}
}

func TestNew_RequiresPorts(t *testing.T) {
	t.Parallel()

	if _, err := New(Deps{Workspace: testWorkspace}); err == nil {
		t.Error("New() without ports returned nil error")
	}
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without workspace returned nil error")
	}
}

func ptr(s string) *string { return &s }
