// SPDX-License-Identifier: MPL-2.0

package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"

	"github.com/pixienv/pixienv/internal/environment"
	"github.com/pixienv/pixienv/internal/pixi"
	"github.com/pixienv/pixienv/internal/runtime"
	"github.com/pixienv/pixienv/internal/tui"
	"github.com/pixienv/pixienv/pkg/cmdline"
	"github.com/pixienv/pixienv/pkg/platform"
	"github.com/pixienv/pixienv/pkg/shellexport"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/syntax"
)

const (
	// PackTool is the pixi package that builds archives.
	PackTool = "pixi-pack"
	// UnpackTool is the pixi package that extracts archives.
	UnpackTool = "pixi-unpack"
	// DefaultLabel prefixes archive names when none is configured.
	DefaultLabel = "env"
)

var (
	// ErrPackFailed is the sentinel error wrapped by PackError.
	ErrPackFailed = errors.New("offline pack failed")
	// ErrUnpackFailed is the sentinel error wrapped by UnpackError.
	ErrUnpackFailed = errors.New("offline unpack failed")
)

type (
	// Phase is a step of a pack or unpack run.
	Phase int

	// CLI is the part of the pixi client the offline flow needs.
	CLI interface {
		Path() (string, error)
		Environments(ctx context.Context, dir string) []string
		HasPackage(ctx context.Context, dir, name string) (bool, error)
		AddPackage(ctx context.Context, dir, name string) error
		Terminal() cmdline.Builder
	}

	// Injector persists a selection and applies captured variables.
	Injector interface {
		Inject(ctx context.Context, selection string, updates []shellexport.VariableUpdate) error
	}

	// Deps are the collaborators of a Flow.
	Deps struct {
		Workspace string
		CLI       CLI
		// Executor captures the activation listing.
		Executor runtime.Executor
		// Runner executes the tracked pack and unpack tasks.
		Runner   runtime.Runner
		Injector Injector
		Prompter tui.Prompter
		Reloader environment.Reloader
		Notifier environment.Notifier
		Logger   *log.Logger
		// Label names the archive and the selection of an unpacked
		// environment.
		Label string
		// AutoReload reloads after unpack without asking.
		AutoReload bool
		// GOOS selects the capture command; defaults to the host.
		GOOS string
		// GOARCH selects the fallback platform; defaults to the host.
		GOARCH  string
		OnPhase func(Phase)
	}

	// Flow runs offline pack and unpack for one workspace.
	Flow struct {
		deps Deps
	}

	// PackError reports a failed pack step.
	PackError struct {
		Phase  Phase
		Status runtime.ExitStatus
		Cause  error
	}

	// UnpackError reports a failed unpack step.
	UnpackError struct {
		Archive string
		Phase   Phase
		Status  runtime.ExitStatus
		Cause   error
	}
)

// Phases of a run, in order; PhaseFailed may follow any of them.
const (
	PhaseIdle Phase = iota
	PhaseInstallingTool
	PhasePacking
	PhaseUnpacking
	PhaseCompleted
	PhaseFailed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInstallingTool:
		return "installing-tool"
	case PhasePacking:
		return "packing"
	case PhaseUnpacking:
		return "unpacking"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// New returns a Flow for deps.
func New(deps Deps) (*Flow, error) {
	if deps.Workspace == "" || deps.CLI == nil || deps.Executor == nil || deps.Runner == nil || deps.Injector == nil {
		return nil, errors.New("offline: workspace, CLI, Executor, Runner and Injector are required")
	}
	if deps.Prompter == nil {
		deps.Prompter = tui.NewFormPrompter(tui.DefaultConfig())
	}
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard)
	}
	if deps.Label == "" {
		deps.Label = DefaultLabel
	}
	if deps.GOOS == "" {
		deps.GOOS = goruntime.GOOS
	}
	if deps.GOARCH == "" {
		deps.GOARCH = goruntime.GOARCH
	}
	return &Flow{deps: deps}, nil
}

// OutputDir is where archives are unpacked.
func (f *Flow) OutputDir() string {
	return filepath.Join(f.deps.Workspace, ".pixi", "offline")
}

// ArchiveName returns the archive file name for env and plat.
func (f *Flow) ArchiveName(env, plat string) string {
	return fmt.Sprintf("%s-%s-%s.tar", f.deps.Label, env, plat)
}

// Pack builds an archive of a workspace environment and returns its path.
func (f *Flow) Pack(ctx context.Context) (string, error) {
	binary, err := f.deps.CLI.Path()
	if err != nil {
		return "", f.fail(err)
	}

	env, err := f.choose(ctx, "Select environment to pack", f.deps.CLI.Environments(ctx, f.deps.Workspace), environment.DefaultEnvironment)
	if err != nil {
		return "", f.fail(err)
	}
	plat, err := f.choose(ctx, "Select target platform", f.platforms(), platform.PixiPlatform(f.deps.GOOS, f.deps.GOARCH))
	if err != nil {
		return "", f.fail(err)
	}

	f.phase(PhaseInstallingTool)
	if err := f.ensurePackTool(ctx); err != nil {
		return "", f.fail(&PackError{Phase: PhaseInstallingTool, Cause: err})
	}

	f.phase(PhasePacking)
	archive := f.ArchiveName(env, plat)
	b := f.deps.CLI.Terminal()
	sub := fmt.Sprintf("run %s --environment %s --platform %s --output-file %s",
		PackTool, b.QuoteIfNeeded(env), plat, b.QuoteIfNeeded(archive))
	task := runtime.Task{
		Name: "Pixi Pack (" + env + ")",
		Line: b.Build(binary, sub, ""),
		Dir:  f.deps.Workspace,
	}
	status, err := runtime.RunAndWait(ctx, f.deps.Runner, task)
	if err != nil || !status.Success() {
		return "", f.fail(&PackError{Phase: PhasePacking, Status: status, Cause: err})
	}

	f.phase(PhaseCompleted)
	out := filepath.Join(f.deps.Workspace, archive)
	f.info(fmt.Sprintf("Offline environment packed: %s", out))
	return out, nil
}

// Unpack extracts archive into the workspace and activates it. An empty
// archive path is asked for.
func (f *Flow) Unpack(ctx context.Context, archive string) error {
	if archive == "" {
		answer, err := f.deps.Prompter.Input(ctx, "Path to the offline environment archive", "environment.sh")
		if err != nil {
			return f.fail(err)
		}
		archive = answer
	}
	archive, err := filepath.Abs(archive)
	if err != nil {
		return f.fail(&UnpackError{Archive: archive, Cause: err})
	}
	if _, err := os.Stat(archive); err != nil {
		return f.fail(&UnpackError{Archive: archive, Cause: err})
	}

	dir := f.OutputDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return f.fail(&UnpackError{Archive: archive, Cause: err})
	}

	f.phase(PhaseUnpacking)
	task, err := f.unpackTask(archive, dir)
	if err != nil {
		return f.fail(&UnpackError{Archive: archive, Phase: PhaseUnpacking, Cause: err})
	}
	status, err := runtime.RunAndWait(ctx, f.deps.Runner, task)
	if err != nil || !status.Success() {
		return f.fail(&UnpackError{Archive: archive, Phase: PhaseUnpacking, Status: status, Cause: err})
	}

	listing, err := f.deps.Executor.Exec(ctx, f.CaptureLine(dir), f.deps.Workspace)
	if err != nil {
		return f.fail(&UnpackError{Archive: archive, Phase: PhaseUnpacking, Status: status, Cause: err})
	}
	vars := shellexport.ParseListing(listing.Stdout)
	if err := f.deps.Injector.Inject(ctx, f.deps.Label, vars.Updates()); err != nil {
		return f.fail(err)
	}

	f.phase(PhaseCompleted)
	f.info(fmt.Sprintf("Offline environment loaded from %s", filepath.Base(archive)))
	f.reload(ctx)
	return nil
}

// CaptureLine sources the activation script in dir and prints the
// resulting environment.
func (f *Flow) CaptureLine(dir string) string {
	if platform.IsWindows(f.deps.GOOS) {
		return `call "` + filepath.Join(dir, "activate.bat") + `" && set`
	}
	script := dir + "/activate.sh"
	quoted, err := syntax.Quote(script, syntax.LangPOSIX)
	if err != nil {
		// Only invalid UTF-8 fails to quote; fall back to single quotes.
		quoted = "'" + strings.ReplaceAll(script, "'", `'\''`) + "'"
	}
	return ". " + quoted + " && printenv"
}

func (f *Flow) unpackTask(archive, dir string) (runtime.Task, error) {
	b := f.deps.CLI.Terminal()
	name := "Pixi Unpack (" + filepath.Base(archive) + ")"

	// Self-extracting installers unpack themselves.
	if strings.HasSuffix(archive, ".sh") {
		line := b.Build(archive, "--output-directory "+b.Quote(dir), "")
		return runtime.Task{Name: name, Line: line, Dir: f.deps.Workspace}, nil
	}

	binary, err := f.deps.CLI.Path()
	if err != nil {
		return runtime.Task{}, err
	}
	sub := fmt.Sprintf("exec %s %s --output-directory %s", UnpackTool, b.Quote(archive), b.Quote(dir))
	return runtime.Task{Name: name, Line: b.Build(binary, sub, ""), Dir: f.deps.Workspace}, nil
}

func (f *Flow) ensurePackTool(ctx context.Context) error {
	has, err := f.deps.CLI.HasPackage(ctx, f.deps.Workspace, PackTool)
	if err != nil {
		f.deps.Logger.Warn("could not list workspace packages", "err", err)
	}
	if has {
		return nil
	}
	f.deps.Logger.Info("adding pack tool to the workspace", "package", PackTool)
	return f.deps.CLI.AddPackage(ctx, f.deps.Workspace, PackTool)
}

func (f *Flow) platforms() []string {
	m, err := pixi.ReadManifest(f.deps.Workspace)
	if err != nil {
		f.deps.Logger.Warn("could not read manifest platforms", "err", err)
		return nil
	}
	return m.Platforms()
}

// choose returns the single option, asks when there are several, and uses
// fallback when there are none.
func (f *Flow) choose(ctx context.Context, title string, options []string, fallback string) (string, error) {
	switch len(options) {
	case 0:
		return fallback, nil
	case 1:
		return options[0], nil
	default:
		return f.deps.Prompter.Select(ctx, title, options)
	}
}

func (f *Flow) reload(ctx context.Context) {
	if f.deps.Reloader == nil {
		return
	}
	if !f.deps.AutoReload {
		ok, err := f.deps.Prompter.Confirm(ctx, "Offline environment loaded. Reload to apply the changes?", "Reload", "Later")
		if err != nil || !ok {
			return
		}
	}
	if err := f.deps.Reloader.Reload(ctx); err != nil {
		f.deps.Logger.Warn("reload failed", "err", err)
	}
}

func (f *Flow) phase(p Phase) {
	f.deps.Logger.Debug("offline phase", "phase", p)
	if f.deps.OnPhase != nil {
		f.deps.OnPhase(p)
	}
}

func (f *Flow) info(msg string) {
	if f.deps.Notifier != nil {
		f.deps.Notifier.Info(msg)
	}
}

func (f *Flow) fail(err error) error {
	f.phase(PhaseFailed)
	if f.deps.Notifier != nil && !errors.Is(err, tui.ErrCancelled) {
		f.deps.Notifier.Error(err.Error())
	}
	return err
}

// Error implements the error interface.
func (e *PackError) Error() string {
	if e.Phase == PhaseInstallingTool {
		return fmt.Sprintf("install %s: %v", PackTool, e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", PackTool, e.Cause)
	}
	return fmt.Sprintf("%s exited with code %s", PackTool, e.Status)
}

// Unwrap returns ErrPackFailed and the cause, if any.
func (e *PackError) Unwrap() []error {
	return withCause(ErrPackFailed, e.Cause)
}

// Error implements the error interface.
func (e *UnpackError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unpack %s: %v", e.Archive, e.Cause)
	}
	return fmt.Sprintf("unpack %s: exited with code %s", e.Archive, e.Status)
}

// Unwrap returns ErrUnpackFailed and the cause, if any.
func (e *UnpackError) Unwrap() []error {
	return withCause(ErrUnpackFailed, e.Cause)
}

func withCause(sentinel, cause error) []error {
	if cause == nil {
		return []error{sentinel}
	}
	return []error{sentinel, cause}
}
