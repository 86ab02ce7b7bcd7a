// SPDX-License-Identifier: MPL-2.0

package tasks

import (
	"context"
	"io"
	"regexp"
	goruntime "runtime"
	"slices"
	"strings"

	"github.com/pixienv/pixienv/internal/pixi"
	"github.com/pixienv/pixienv/internal/runtime"
	"github.com/pixienv/pixienv/pkg/cmdline"

	"github.com/charmbracelet/log"
)

const (
	// DefaultEnvironment is the manifest's default environment name.
	DefaultEnvironment = "default"
	// hiddenPrefix marks helper tasks that are never listed.
	hiddenPrefix = "_"
)

type (
	// Definition is one task declaration from the task graph.
	Definition struct {
		Name        string
		Command     string
		Environment string
		Feature     string
	}

	// Resolved is a task after deduplication.
	Resolved struct {
		DisplayName string
		// Environment is passed with -e; empty runs the manifest default.
		Environment string
		CommandLine string
		Definition  Definition
	}

	// Source provides the task graph and the pixi binary path.
	Source interface {
		Path() (string, error)
		TaskGraph(ctx context.Context, dir string) ([]pixi.EnvironmentTasks, error)
	}

	// Engine lists and resolves the tasks of a workspace.
	Engine struct {
		source  Source
		builder cmdline.Builder
		ignore  []*regexp.Regexp
		logger  *log.Logger

		patterns []string
	}

	// Option configures an Engine.
	Option func(*Engine)
)

// WithIgnorePatterns excludes environments whose name matches any of
// patterns. Invalid patterns are logged and skipped.
func WithIgnorePatterns(patterns []string) Option {
	return func(e *Engine) { e.patterns = patterns }
}

// WithBuilder sets the command-line builder for task lines.
func WithBuilder(b cmdline.Builder) Option {
	return func(e *Engine) { e.builder = b }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine returns an Engine reading tasks from source.
func NewEngine(source Source, opts ...Option) *Engine {
	e := &Engine{
		source:  source,
		builder: cmdline.New(cmdline.DialectFor(goruntime.GOOS)),
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ignore = CompileIgnore(e.patterns, e.logger)
	return e
}

// Provide returns the resolved tasks of the workspace at dir. Discovery is
// advisory: any failure is logged and yields an empty list.
func (e *Engine) Provide(ctx context.Context, dir string) []Resolved {
	binary, err := e.source.Path()
	if err != nil {
		e.logger.Warn("task discovery skipped", "err", err)
		return nil
	}
	graph, err := e.source.TaskGraph(ctx, dir)
	if err != nil {
		e.logger.Warn("task discovery failed", "err", err)
		return nil
	}
	return Resolve(Flatten(graph), binary, e.builder, e.ignore)
}

// Find returns the task whose display name is name.
func (e *Engine) Find(ctx context.Context, dir, name string) (Resolved, bool) {
	for _, task := range e.Provide(ctx, dir) {
		if task.DisplayName == name {
			return task, true
		}
	}
	return Resolved{}, false
}

// Task returns the runtime task executing r in dir.
func (r Resolved) Task(dir string) runtime.Task {
	return runtime.Task{Name: r.DisplayName, Line: r.CommandLine, Dir: dir}
}

// Flatten lists every declaration in graph order.
func Flatten(graph []pixi.EnvironmentTasks) []Definition {
	var defs []Definition
	for _, env := range graph {
		for _, feature := range env.Features {
			for _, task := range feature.Tasks {
				defs = append(defs, Definition{
					Name:        task.Name,
					Command:     task.Cmd,
					Environment: env.Environment,
					Feature:     feature.Name,
				})
			}
		}
	}
	return defs
}

// Resolve applies the hidden-name rule, the ignore patterns and the
// per-name priority policy. Output follows the first appearance of each
// name, then of each environment within a name.
func Resolve(defs []Definition, binary string, builder cmdline.Builder, ignore []*regexp.Regexp) []Resolved {
	var (
		order  []string
		byName = make(map[string][]Definition)
	)
	for _, def := range defs {
		if strings.HasPrefix(def.Name, hiddenPrefix) || ignored(def.Environment, ignore) {
			continue
		}
		if _, seen := byName[def.Name]; !seen {
			order = append(order, def.Name)
		}
		// Several features of one environment may declare the same name;
		// the environment only counts once.
		if slices.ContainsFunc(byName[def.Name], func(d Definition) bool { return d.Environment == def.Environment }) {
			continue
		}
		byName[def.Name] = append(byName[def.Name], def)
	}

	var out []Resolved
	for _, name := range order {
		candidates := byName[name]

		if i := slices.IndexFunc(candidates, isDefault); i >= 0 {
			out = append(out, resolved(name, candidates[i], "", binary, builder))
			continue
		}
		if len(candidates) == 1 {
			out = append(out, resolved(name, candidates[0], candidates[0].Environment, binary, builder))
			continue
		}
		for _, def := range candidates {
			display := name + " (" + def.Environment + ")"
			out = append(out, resolved(display, def, def.Environment, binary, builder))
		}
	}
	return out
}

func resolved(display string, def Definition, env, binary string, builder cmdline.Builder) Resolved {
	return Resolved{
		DisplayName: display,
		Environment: env,
		CommandLine: builder.Build(binary, "run "+builder.QuoteIfNeeded(def.Name), env),
		Definition:  def,
	}
}

func isDefault(def Definition) bool {
	return def.Environment == DefaultEnvironment
}

func ignored(env string, patterns []*regexp.Regexp) bool {
	return slices.ContainsFunc(patterns, func(re *regexp.Regexp) bool { return re.MatchString(env) })
}

// CompileIgnore compiles the ignore patterns, logging and skipping invalid
// ones.
func CompileIgnore(patterns []string, logger *log.Logger) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			if logger != nil {
				logger.Warn("invalid ignored environment pattern", "pattern", p, "err", err)
			}
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}
