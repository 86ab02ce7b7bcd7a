// SPDX-License-Identifier: MPL-2.0

package pixi

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/pixienv/pixienv/internal/testutil"

	"github.com/google/go-cmp/cmp"
)

func TestReadManifest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		content       string
		wantPlatforms []string
		wantName      string
	}{
		{
			name:          "workspace table",
			content:       "[workspace]\nname = \"demo\"\nchannels = [\"conda-forge\"]\nplatforms = [\"linux-64\", \"osx-arm64\"]\n\n[tasks]\ntest = \"pytest\"\n",
			wantPlatforms: []string{"linux-64", "osx-arm64"},
			wantName:      "demo",
		},
		{
			name:          "legacy project table",
			content:       "[project]\nname = \"legacy\"\nplatforms = [\"win-64\"]\n",
			wantPlatforms: []string{"win-64"},
			wantName:      "legacy",
		},
		{
			name:          "top level",
			content:       "platforms = [\"linux-64\", \"win-64\"]\n",
			wantPlatforms: []string{"linux-64", "win-64"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			testutil.MustWriteFile(t, filepath.Join(dir, ManifestFile), tt.content)

			if !HasManifest(dir) {
				t.Fatal("HasManifest() = false")
			}
			m, err := ReadManifest(dir)
			if err != nil {
				t.Fatalf("ReadManifest() error = %v", err)
			}
			if diff := cmp.Diff(tt.wantPlatforms, m.Platforms()); diff != "" {
				t.Errorf("Platforms() mismatch (-want +got):\n%s", diff)
			}
			if m.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", m.Name(), tt.wantName)
			}
		})
	}
}

func TestReadManifest_MissingAndInvalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m, err := ReadManifest(dir)
	if err != nil || len(m.Platforms()) != 0 {
		t.Errorf("ReadManifest(missing) = %+v, %v", m, err)
	}
	if HasManifest(dir) {
		t.Error("HasManifest() = true for empty dir")
	}
	if err := RequireManifest(dir); !errors.Is(err, ErrNoWorkspace) {
		t.Errorf("RequireManifest(empty) = %v, want ErrNoWorkspace", err)
	}

	testutil.MustWriteFile(t, filepath.Join(dir, ManifestFile), "platforms = [")
	if _, err := ReadManifest(dir); err == nil {
		t.Error("ReadManifest(invalid) returned nil error")
	}
	if err := RequireManifest(dir); err != nil {
		t.Errorf("RequireManifest() = %v, want nil", err)
	}
}
