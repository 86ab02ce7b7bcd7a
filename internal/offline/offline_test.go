// SPDX-License-Identifier: MPL-2.0

package offline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pixienv/pixienv/internal/pixi"
	"github.com/pixienv/pixienv/internal/runtime"
	"github.com/pixienv/pixienv/internal/testutil"
	"github.com/pixienv/pixienv/pkg/cmdline"
	"github.com/pixienv/pixienv/pkg/shellexport"

	"github.com/google/go-cmp/cmp"
	"mvdan.cc/sh/v3/syntax"
)

type (
	recordingInjector struct {
		mu        sync.Mutex
		selection string
		updates   []shellexport.VariableUpdate
		calls     int
	}

	countingReloader struct{ count int }

	offlineHarness struct {
		workspace string
		exec      *testutil.FakeExecutor
		runner    *testutil.FakeRunner
		prompter  *testutil.FakePrompter
		injector  *recordingInjector
		reloader  *countingReloader
		phases    []Phase
		flow      *Flow
	}
)

func (r *recordingInjector) Inject(_ context.Context, selection string, updates []shellexport.VariableUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.selection = selection
	r.updates = updates
	return nil
}

func (r *countingReloader) Reload(context.Context) error {
	r.count++
	return nil
}

func newOfflineHarness(t *testing.T, exec *testutil.FakeExecutor, configure func(*Deps)) *offlineHarness {
	t.Helper()

	h := &offlineHarness{
		workspace: t.TempDir(),
		exec:      exec,
		runner:    testutil.NewFakeRunner(),
		prompter:  &testutil.FakePrompter{},
		injector:  &recordingInjector{},
		reloader:  &countingReloader{},
	}
	bin := testutil.FakePixi(t, t.TempDir())
	client := pixi.NewClient(pixi.Locator{Configured: bin}, exec, pixi.WithTerminalDialect(cmdline.POSIX))

	deps := Deps{
		Workspace: h.workspace,
		CLI:       client,
		Executor:  exec,
		Runner:    h.runner,
		Injector:  h.injector,
		Prompter:  h.prompter,
		Reloader:  h.reloader,
		Label:     "env",
		GOOS:      "linux",
		GOARCH:    "amd64",
		OnPhase:   func(p Phase) { h.phases = append(h.phases, p) },
	}
	if configure != nil {
		configure(&deps)
	}
	flow, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.flow = flow
	return h
}

func TestPack_InstallsToolAndRunsTask(t *testing.T) {
	t.Parallel()

	exec := new(testutil.FakeExecutor).
		Respond("info --json", `{"environments_info":[{"name":"default"},{"name":"prod"}]}`).
		Respond("list --json", `[{"name":"python"}]`)
	h := newOfflineHarness(t, exec, nil)
	testutil.MustWriteFile(t, filepath.Join(h.workspace, pixi.ManifestFile), "platforms = [\"linux-64\", \"win-64\"]\n")
	h.prompter.Selections = []string{"prod", "linux-64"}

	archive, err := h.flow.Pack(t.Context())
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	if want := filepath.Join(h.workspace, "env-prod-linux-64.tar"); archive != want {
		t.Errorf("Pack() = %q, want %q", archive, want)
	}
	if exec.CountContaining("add pixi-pack") != 1 {
		t.Errorf("pixi-pack not added, lines = %q", exec.Lines())
	}

	tasks := h.runner.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("tasks = %+v", tasks)
	}
	pack := tasks[0]
	for _, part := range []string{"run pixi-pack", "--environment prod", "--platform linux-64", "--output-file env-prod-linux-64.tar"} {
		if !strings.Contains(pack.Line, part) {
			t.Errorf("pack line %q missing %q", pack.Line, part)
		}
	}
	if !strings.Contains(pack.Name, "Pack") || pack.Dir != h.workspace {
		t.Errorf("pack task = %+v", pack)
	}

	want := []Phase{PhaseInstallingTool, PhasePacking, PhaseCompleted}
	if diff := cmp.Diff(want, h.phases); diff != "" {
		t.Errorf("phases mismatch (-want +got):\n%s", diff)
	}
}

func TestPack_DefaultsWithoutPrompts(t *testing.T) {
	t.Parallel()

	exec := new(testutil.FakeExecutor).
		Respond("info --json", `{"environments_info":[{"name":"default"}]}`).
		Respond("list --json", `[{"name":"pixi-pack"}]`)
	h := newOfflineHarness(t, exec, func(d *Deps) { d.GOOS, d.GOARCH = "darwin", "arm64" })

	archive, err := h.flow.Pack(t.Context())
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	if filepath.Base(archive) != "env-default-osx-arm64.tar" {
		t.Errorf("archive = %q", archive)
	}
	if exec.CountContaining("add pixi-pack") != 0 {
		t.Error("pixi-pack added although already present")
	}
	if titles := h.prompter.Titles(); len(titles) != 0 {
		t.Errorf("prompted: %v", titles)
	}
}

func TestPack_Failures(t *testing.T) {
	t.Parallel()

	t.Run("pack task exits non-zero", func(t *testing.T) {
		t.Parallel()
		exec := new(testutil.FakeExecutor).Respond("list --json", `[{"name":"pixi-pack"}]`)
		h := newOfflineHarness(t, exec, nil)
		h.runner.Finish("pixi-pack", runtime.Exited(2))

		_, err := h.flow.Pack(t.Context())
		var packErr *PackError
		if !errors.Is(err, ErrPackFailed) || !errors.As(err, &packErr) {
			t.Fatalf("Pack() error = %v, want PackError", err)
		}
		if packErr.Phase != PhasePacking || packErr.Status != runtime.Exited(2) {
			t.Errorf("PackError = %+v", packErr)
		}
		if last := h.phases[len(h.phases)-1]; last != PhaseFailed {
			t.Errorf("last phase = %v", last)
		}
	})

	t.Run("tool install fails", func(t *testing.T) {
		t.Parallel()
		exec := new(testutil.FakeExecutor).
			Respond("list --json", `[]`).
			Fail("add pixi-pack", 1, "solve error")
		h := newOfflineHarness(t, exec, nil)

		_, err := h.flow.Pack(t.Context())
		var packErr *PackError
		if !errors.As(err, &packErr) || packErr.Phase != PhaseInstallingTool {
			t.Fatalf("Pack() error = %v, want install-phase PackError", err)
		}
		if len(h.runner.Tasks()) != 0 {
			t.Error("pack task started after tool install failure")
		}
	})
}

func TestUnpack_SelfExtractingScript(t *testing.T) {
	t.Parallel()

	exec := new(testutil.FakeExecutor).Respond("printenv", "FOO=BAR\nPATH=/offline/bin:/usr/bin\n\n")
	h := newOfflineHarness(t, exec, nil)
	archive := filepath.Join(t.TempDir(), "env-installer.sh")
	testutil.MustWriteFile(t, archive, "#!/bin/sh\n")
	h.prompter.Confirms = []bool{true}

	if err := h.flow.Unpack(t.Context(), archive); err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}

	tasks := h.runner.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("tasks = %+v", tasks)
	}
	if !strings.HasPrefix(tasks[0].Line, `"`+archive+`"`) || !strings.Contains(tasks[0].Line, "--output-directory") {
		t.Errorf("unpack line = %q", tasks[0].Line)
	}
	if !strings.Contains(tasks[0].Name, "Unpack") {
		t.Errorf("unpack task name = %q", tasks[0].Name)
	}

	if exec.CountContaining("activate.sh") != 1 {
		t.Errorf("activation not captured, lines = %q", exec.Lines())
	}
	want := []shellexport.VariableUpdate{{Key: "FOO", Value: "BAR"}, {Key: "PATH", Value: "/offline/bin:/usr/bin"}}
	if diff := cmp.Diff(want, h.injector.updates); diff != "" {
		t.Errorf("injected variables mismatch (-want +got):\n%s", diff)
	}
	if h.injector.selection != "env" {
		t.Errorf("selection = %q, want env", h.injector.selection)
	}
	if h.reloader.count != 1 {
		t.Errorf("reload count = %d, want 1", h.reloader.count)
	}
}

func TestUnpack_AutoReloadSkipsPrompt(t *testing.T) {
	t.Parallel()

	exec := new(testutil.FakeExecutor).Respond("printenv", "FOO=BAR\n")
	h := newOfflineHarness(t, exec, func(d *Deps) { d.AutoReload = true })
	archive := filepath.Join(t.TempDir(), "env.sh")
	testutil.MustWriteFile(t, archive, "")

	if err := h.flow.Unpack(t.Context(), archive); err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	if titles := h.prompter.Titles(); len(titles) != 0 {
		t.Errorf("prompted despite auto reload: %v", titles)
	}
	if h.reloader.count != 1 {
		t.Errorf("reload count = %d, want 1", h.reloader.count)
	}
}

func TestUnpack_TarUsesUnpackTool(t *testing.T) {
	t.Parallel()

	exec := new(testutil.FakeExecutor)
	h := newOfflineHarness(t, exec, nil)
	archive := filepath.Join(t.TempDir(), "env-prod-linux-64.tar")
	testutil.MustWriteFile(t, archive, "")
	h.prompter.Inputs = []string{archive}

	if err := h.flow.Unpack(t.Context(), ""); err != nil {
		t.Fatalf("Unpack() error = %v", err)
	}
	line := h.runner.Tasks()[0].Line
	if !strings.Contains(line, `exec pixi-unpack "`+archive+`" --output-directory "`+h.flow.OutputDir()+`"`) {
		t.Errorf("unpack line = %q", line)
	}
}

func TestUnpack_Failures(t *testing.T) {
	t.Parallel()

	t.Run("unpack exits non-zero", func(t *testing.T) {
		t.Parallel()
		exec := new(testutil.FakeExecutor)
		h := newOfflineHarness(t, exec, nil)
		archive := filepath.Join(t.TempDir(), "env.sh")
		testutil.MustWriteFile(t, archive, "")
		h.runner.Finish("env.sh", runtime.UnknownExit)

		err := h.flow.Unpack(t.Context(), archive)
		if !errors.Is(err, ErrUnpackFailed) {
			t.Fatalf("Unpack() error = %v, want ErrUnpackFailed", err)
		}
		if !strings.Contains(err.Error(), "unknown") {
			t.Errorf("error %q does not report the unknown code", err)
		}
		if h.injector.calls != 0 || len(exec.Calls()) != 0 {
			t.Error("activation captured after failed unpack")
		}
	})

	t.Run("missing archive", func(t *testing.T) {
		t.Parallel()
		h := newOfflineHarness(t, new(testutil.FakeExecutor), nil)
		err := h.flow.Unpack(t.Context(), filepath.Join(t.TempDir(), "nope.tar"))
		if !errors.Is(err, ErrUnpackFailed) {
			t.Fatalf("Unpack() error = %v, want ErrUnpackFailed", err)
		}
		if len(h.runner.Tasks()) != 0 {
			t.Error("unpack task started for a missing archive")
		}
	})

	t.Run("capture fails", func(t *testing.T) {
		t.Parallel()
		exec := new(testutil.FakeExecutor).Fail("printenv", 1, "no such file")
		h := newOfflineHarness(t, exec, nil)
		archive := filepath.Join(t.TempDir(), "env.sh")
		testutil.MustWriteFile(t, archive, "")

		if err := h.flow.Unpack(t.Context(), archive); !errors.Is(err, ErrUnpackFailed) {
			t.Fatalf("Unpack() error = %v, want ErrUnpackFailed", err)
		}
		if h.injector.calls != 0 {
			t.Error("variables injected after failed capture")
		}
	})
}

func TestCaptureLine(t *testing.T) {
	t.Parallel()

	h := newOfflineHarness(t, new(testutil.FakeExecutor), nil)
	dir := "/ws/my dir/.pixi/offline"

	posix := h.flow.CaptureLine(dir)
	if posix != ". '/ws/my dir/.pixi/offline/activate.sh' && printenv" {
		t.Errorf("CaptureLine(posix) = %q", posix)
	}
	if _, err := syntax.NewParser().Parse(strings.NewReader(posix), ""); err != nil {
		t.Errorf("posix capture line does not parse: %v", err)
	}

	win := newOfflineHarness(t, new(testutil.FakeExecutor), func(d *Deps) { d.GOOS = "windows" })
	line := win.flow.CaptureLine(`C:\ws\.pixi\offline`)
	if !strings.HasPrefix(line, `call "`) || !strings.HasSuffix(line, `activate.bat" && set`) {
		t.Errorf("CaptureLine(windows) = %q", line)
	}
}

func TestPhaseString(t *testing.T) {
	t.Parallel()

	if PhaseInstallingTool.String() != "installing-tool" || Phase(99).String() != "unknown" {
		t.Error("unexpected Phase names")
	}
}
