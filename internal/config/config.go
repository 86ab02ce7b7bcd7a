// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pixienv/pixienv/internal/issue"
	"github.com/pixienv/pixienv/pkg/platform"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "pixienv"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// LocalDirName is the workspace directory holding a workspace-local config.
	LocalDirName = ".pixienv"
	// StateFileName is the workspace state database kept next to the config.
	StateFileName = "state.db"
	// EnvPrefix prefixes environment variable overrides (PIXIENV_AUTO_RELOAD, PIXIENV_UI_VERBOSE).
	EnvPrefix = "PIXIENV"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the pixienv configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// ConfigFilePath returns the user config file path inside dir, or inside
// ConfigDir when dir is empty.
//
//nolint:revive // mirrors ConfigDir
func ConfigFilePath(dir string) (string, error) {
	cfgDir, err := configDirWithOverride(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}

// LocalConfigFilePath returns the workspace-local config file path.
func LocalConfigFilePath(workspace string) string {
	return filepath.Join(workspace, LocalDirName, ConfigFileName+"."+ConfigFileExt)
}

// StateFilePath returns the workspace state database path inside dir, or
// inside ConfigDir when dir is empty.
func StateFilePath(dir string) (string, error) {
	cfgDir, err := configDirWithOverride(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, StateFileName), nil
}

// Sources lists the config files Load would read, lowest precedence first.
// An explicit ConfigFilePath is the only source when set.
func Sources(opts LoadOptions) ([]string, error) {
	if opts.ConfigFilePath != "" {
		return []string{opts.ConfigFilePath}, nil
	}

	var sources []string
	userPath, err := ConfigFilePath(opts.ConfigDirPath)
	if err != nil {
		return nil, err
	}
	if fileExists(userPath) {
		sources = append(sources, userPath)
	}
	if opts.WorkspaceDir != "" {
		localPath := LocalConfigFilePath(opts.WorkspaceDir)
		if fileExists(localPath) {
			sources = append(sources, localPath)
		}
	}
	return sources, nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, []string, error) {
	select {
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()

	if opts.ConfigFilePath != "" && !fileExists(opts.ConfigFilePath) {
		return nil, nil, issue.NewErrorContext().
			WithOperation("load configuration").
			WithIssue(issue.ConfigLoadFailedId).
			WithResource(opts.ConfigFilePath).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Use 'pixienv config show' to see the default configuration").
			Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
			BuildError()
	}

	sources, err := Sources(opts)
	if err != nil {
		return nil, nil, err
	}
	for _, path := range sources {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithIssue(issue.ConfigLoadFailedId).
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'pixienv config init' to write a documented default file").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Each ignored_environments entry must be a valid regular expression").
			WithSuggestion("offline_environment_name may only contain letters, digits, '.', '_' and '-'").
			Wrap(errors.Join(errs...)).
			BuildError()
	}

	return &cfg, sources, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig()
	v.SetDefault("auto_reload", defaults.AutoReload)
	v.SetDefault("ignored_environments", defaults.IgnoredEnvironments)
	v.SetDefault("offline_environment_name", defaults.OfflineEnvironmentName)
	v.SetDefault("default_environment", defaults.DefaultEnvironment)
	v.SetDefault("disable_config_change_prompt", defaults.DisableConfigChangePrompt)
	v.SetDefault("pixi_path", defaults.PixiPath)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
	v.SetDefault("ui.accessible", defaults.UI.Accessible)
	v.SetDefault("ui.theme", defaults.UI.Theme)
	return v
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper over whatever is already there.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	configMap, err := decodeCUE(data, path)
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a default config file into dir (ConfigDir when
// empty) unless one already exists, and returns its path.
func CreateDefaultConfig(dir string) (string, error) {
	cfgPath, err := ConfigFilePath(dir)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, nil
	}

	if err := Save(cfgPath, DefaultConfig()); err != nil {
		return "", err
	}
	return cfgPath, nil
}

// Save writes cfg to path as CUE.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateCUE generates a CUE representation of the configuration
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// pixienv configuration file\n\n")

	fmt.Fprintf(&sb, "auto_reload: %v\n", cfg.AutoReload)

	sb.WriteString("ignored_environments: [")
	for i, pattern := range cfg.IgnoredEnvironments {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", pattern)
	}
	sb.WriteString("]\n")

	fmt.Fprintf(&sb, "offline_environment_name: %q\n", cfg.OfflineEnvironmentName)
	if cfg.DefaultEnvironment != "" {
		fmt.Fprintf(&sb, "default_environment: %q\n", cfg.DefaultEnvironment)
	}
	fmt.Fprintf(&sb, "disable_config_change_prompt: %v\n", cfg.DisableConfigChangePrompt)
	if cfg.PixiPath != "" {
		fmt.Fprintf(&sb, "pixi_path: %q\n", cfg.PixiPath)
	}

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	fmt.Fprintf(&sb, "\taccessible: %v\n", cfg.UI.Accessible)
	if cfg.UI.Theme != "" {
		fmt.Fprintf(&sb, "\ttheme: %q\n", cfg.UI.Theme)
	}
	sb.WriteString("}\n")

	return sb.String()
}
