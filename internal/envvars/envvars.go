// SPDX-License-Identifier: MPL-2.0

package envvars

import (
	"context"
	"fmt"
	"os"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/pixienv/pixienv/pkg/platform"
	"github.com/pixienv/pixienv/pkg/shellexport"
)

// PathKey is the variable that receives the CLI binary directory.
const PathKey = "PATH"

type (
	// Collection is the persistent variable-injection surface. The engine is
	// its only writer for CLI-derived variables.
	Collection interface {
		Replace(ctx context.Context, key, value string) error
		Clear(ctx context.Context) error
		Entries(ctx context.Context) ([]shellexport.VariableUpdate, error)
	}

	// Applier merges captured variables into a Collection and mirrors them into
	// the current process.
	Applier struct {
		collection Collection
		binDir     string
		goos       string
		setenv     func(key, value string) error
	}

	// Option configures an Applier.
	Option func(*Applier)

	// MemoryCollection is a Collection held in memory. The zero value is ready
	// to use.
	MemoryCollection struct {
		mu   sync.Mutex
		vars shellexport.Variables
	}
)

// WithGOOS selects the platform whose path-list delimiter is used.
func WithGOOS(goos string) Option {
	return func(a *Applier) { a.goos = goos }
}

// WithSetenv replaces os.Setenv as the process mirror.
func WithSetenv(fn func(key, value string) error) Option {
	return func(a *Applier) { a.setenv = fn }
}

// NewApplier returns an Applier writing to collection. binDir is the
// directory holding the CLI binary; it may be empty when unknown.
func NewApplier(collection Collection, binDir string, opts ...Option) *Applier {
	a := &Applier{
		collection: collection,
		binDir:     binDir,
		goos:       goruntime.GOOS,
		setenv:     os.Setenv,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply replaces every key of updates in the collection and in the process
// environment. The PATH value gets the CLI binary directory prepended unless
// it already contains it. Only storage errors are returned.
func (a *Applier) Apply(ctx context.Context, updates []shellexport.VariableUpdate) error {
	for _, u := range updates {
		value := u.Value
		if a.isPathKey(u.Key) {
			value = PrependDir(value, a.binDir, platform.ListDelimiter(a.goos))
		}
		if err := a.collection.Replace(ctx, u.Key, value); err != nil {
			return err
		}
		if err := a.setenv(u.Key, value); err != nil {
			return fmt.Errorf("set %s in process environment: %w", u.Key, err)
		}
	}
	return nil
}

// Clear removes every injected variable from the collection.
func (a *Applier) Clear(ctx context.Context) error {
	return a.collection.Clear(ctx)
}

func (a *Applier) isPathKey(key string) bool {
	if platform.IsWindows(a.goos) {
		return strings.EqualFold(key, PathKey)
	}
	return key == PathKey
}

// PrependDir prepends dir to the path list value unless dir is empty or
// already a substring of value.
func PrependDir(value, dir, delimiter string) string {
	if dir == "" || strings.Contains(value, dir) {
		return value
	}
	if value == "" {
		return dir
	}
	return dir + delimiter + value
}

// Replace implements Collection.
func (c *MemoryCollection) Replace(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vars.Set(key, value)
	return nil
}

// Clear implements Collection.
func (c *MemoryCollection) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vars = shellexport.Variables{}
	return nil
}

// Entries implements Collection.
func (c *MemoryCollection) Entries(context.Context) ([]shellexport.VariableUpdate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vars.Updates(), nil
}
