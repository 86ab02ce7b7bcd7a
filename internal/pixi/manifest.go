// SPDX-License-Identifier: MPL-2.0

package pixi

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	// ManifestFile is the workspace manifest.
	ManifestFile = "pixi.toml"
	// LockFile is the solved lock file next to the manifest.
	LockFile = "pixi.lock"
)

// ErrNoWorkspace is returned when a directory has no pixi.toml.
var ErrNoWorkspace = errors.New("no pixi workspace")

type (
	// Manifest is the subset of pixi.toml the engine reads. Platforms may be
	// declared under [workspace], the older [project] table, or at the top
	// level.
	Manifest struct {
		TopPlatforms []string      `toml:"platforms"`
		Workspace    manifestTable `toml:"workspace"`
		Project      manifestTable `toml:"project"`
	}

	manifestTable struct {
		Name      string   `toml:"name"`
		Platforms []string `toml:"platforms"`
	}
)

// HasManifest reports whether dir contains pixi.toml.
func HasManifest(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ManifestFile))
	return err == nil
}

// RequireManifest returns ErrNoWorkspace unless dir contains pixi.toml.
func RequireManifest(dir string) error {
	if !HasManifest(dir) {
		return fmt.Errorf("%w: %s has no %s", ErrNoWorkspace, dir, ManifestFile)
	}
	return nil
}

// ReadManifest decodes dir/pixi.toml. A missing manifest yields an empty
// Manifest and no error.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return m, fmt.Errorf("read %s: %w", ManifestFile, err)
	}
	if err := toml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parse %s: %w", ManifestFile, err)
	}
	return m, nil
}

// Platforms returns the declared target platforms.
func (m Manifest) Platforms() []string {
	switch {
	case len(m.Workspace.Platforms) > 0:
		return m.Workspace.Platforms
	case len(m.Project.Platforms) > 0:
		return m.Project.Platforms
	default:
		return m.TopPlatforms
	}
}

// Name returns the workspace name, if declared.
func (m Manifest) Name() string {
	if m.Workspace.Name != "" {
		return m.Workspace.Name
	}
	return m.Project.Name
}
