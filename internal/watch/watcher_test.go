// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/pixienv/pixienv/internal/testutil"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

const testDebounce = 100 * time.Millisecond

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder collects callback invocations.
type recorder struct {
	mu    sync.Mutex
	calls [][]string
	fired chan struct{}
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan struct{}, 16)}
}

func (r *recorder) onChange(_ context.Context, changed []string) error {
	r.mu.Lock()
	r.calls = append(r.calls, changed)
	r.mu.Unlock()
	r.fired <- struct{}{}
	return nil
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// start runs w until the test ends and reports Run's result.
func start(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error: %v", err)
		}
	})
}

func TestWatcher_CoalescesManifestAndLock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := newRecorder()
	w, err := New(dir, rec.onChange, WithDebounce(testDebounce))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	start(t, w)

	testutil.MustWriteFile(t, filepath.Join(dir, "pixi.toml"), "[workspace]\n")
	time.Sleep(10 * time.Millisecond)
	testutil.MustWriteFile(t, filepath.Join(dir, "pixi.lock"), "version: 6\n")

	rec.wait(t)
	time.Sleep(3 * testDebounce)

	want := [][]string{{"pixi.lock", "pixi.toml"}}
	if diff := cmp.Diff(want, rec.snapshot()); diff != "" {
		t.Errorf("callbacks mismatch (-want +got):\n%s", diff)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	envDir := filepath.Join(dir, ".pixi", "envs", "default")
	testutil.MustMkdirAll(t, envDir)

	rec := newRecorder()
	w, err := New(dir, rec.onChange, WithDebounce(testDebounce), WithIgnore("**/scratch/**"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	start(t, w)

	testutil.MustWriteFile(t, filepath.Join(dir, "README.md"), "docs")
	testutil.MustWriteFile(t, filepath.Join(envDir, "pixi.toml"), "copied")
	testutil.MustWriteFile(t, filepath.Join(dir, "pixi.toml"), "[workspace]\n")

	rec.wait(t)
	want := [][]string{{"pixi.toml"}}
	if diff := cmp.Diff(want, rec.snapshot()); diff != "" {
		t.Errorf("callbacks mismatch (-want +got):\n%s", diff)
	}
}

func TestWatcher_NestedWorkspaceCreatedLater(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := newRecorder()
	w, err := New(dir, rec.onChange, WithDebounce(testDebounce))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	start(t, w)

	sub := filepath.Join(dir, "sub")
	testutil.MustMkdirAll(t, sub)
	// Let the event loop register the new directory.
	time.Sleep(200 * time.Millisecond)
	testutil.MustWriteFile(t, filepath.Join(sub, "pixi.toml"), "[workspace]\n")

	rec.wait(t)
	want := [][]string{{"sub/pixi.toml"}}
	if diff := cmp.Diff(want, rec.snapshot()); diff != "" {
		t.Errorf("callbacks mismatch (-want +got):\n%s", diff)
	}
}

func TestWatcher_RunOnce(t *testing.T) {
	t.Parallel()

	w, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run() on cancelled context = %v, want nil", err)
	}
	if err := w.Run(t.Context()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v, want ErrAlreadyRunning", err)
	}
}

func TestNew_InvalidPatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opt  Option
	}{
		{name: "watch pattern", opt: WithPatterns("[pixi.toml")},
		{name: "ignore pattern", opt: WithIgnore("{unclosed")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(t.TempDir(), nil, tt.opt); err == nil {
				t.Error("New() should reject the pattern")
			}
		})
	}
}

func TestMatchAny(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rel      string
		manifest bool
		ignored  bool
	}{
		{rel: "pixi.toml", manifest: true},
		{rel: "pixi.lock", manifest: true},
		{rel: "services/api/pixi.toml", manifest: true},
		{rel: "pyproject.toml"},
		{rel: ".pixi/envs/default/conda-meta/history", ignored: true},
		{rel: ".git/HEAD", ignored: true},
		{rel: ".pixienv/config.cue", ignored: true},
		{rel: "src/__pycache__/mod.pyc", ignored: true},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			t.Parallel()
			if got := matchAny(ManifestPatterns, tt.rel); got != tt.manifest {
				t.Errorf("manifest match = %v, want %v", got, tt.manifest)
			}
			if got := matchAny(DefaultIgnores(), tt.rel); got != tt.ignored {
				t.Errorf("ignore match = %v, want %v", got, tt.ignored)
			}
		})
	}
}

func TestDefaultIgnores_ReturnsCopy(t *testing.T) {
	t.Parallel()

	got := DefaultIgnores()
	got[0] = "modified"
	if DefaultIgnores()[0] == "modified" {
		t.Error("DefaultIgnores() should return a copy")
	}
}
