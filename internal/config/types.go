// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

const (
	// DefaultOfflineEnvironmentName labels offline archives when nothing is configured.
	DefaultOfflineEnvironmentName = "env"

	// ThemeDefault is the base prompt theme.
	ThemeDefault Theme = "default"
	// ThemeCharm is the Charm prompt theme.
	ThemeCharm Theme = "charm"
	// ThemeDracula is the Dracula prompt theme.
	ThemeDracula Theme = "dracula"
	// ThemeCatppuccin is the Catppuccin prompt theme.
	ThemeCatppuccin Theme = "catppuccin"
	// ThemeBase16 is the Base16 prompt theme.
	ThemeBase16 Theme = "base16"
)

var (
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidUIConfig is the sentinel error wrapped by InvalidUIConfigError.
	ErrInvalidUIConfig = errors.New("invalid UI config")
	// ErrInvalidTheme is the sentinel error wrapped by InvalidThemeError.
	ErrInvalidTheme = errors.New("invalid theme")
	// ErrInvalidIgnorePattern is the sentinel error wrapped by InvalidIgnorePatternError.
	ErrInvalidIgnorePattern = errors.New("invalid ignored environment pattern")
	// ErrInvalidOfflineName is returned when the offline label cannot be used in a file name.
	ErrInvalidOfflineName = errors.New("invalid offline environment name")

	validThemes = []Theme{ThemeDefault, ThemeCharm, ThemeDracula, ThemeCatppuccin, ThemeBase16}

	offlineNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

type (
	// Theme names a prompt theme.
	Theme string

	// Config holds the pixienv configuration.
	Config struct {
		// AutoReload skips the reload question after an offline unpack.
		AutoReload bool `json:"auto_reload" mapstructure:"auto_reload"`
		// IgnoredEnvironments are regular expressions; matching environments
		// never contribute tasks.
		IgnoredEnvironments []string `json:"ignored_environments" mapstructure:"ignored_environments"`
		// OfflineEnvironmentName labels offline archives and the injected environment.
		OfflineEnvironmentName string `json:"offline_environment_name" mapstructure:"offline_environment_name"`
		// DefaultEnvironment is replayed by auto-activate when no selection is persisted.
		DefaultEnvironment string `json:"default_environment" mapstructure:"default_environment"`
		// DisableConfigChangePrompt silences the re-activate question on manifest changes.
		DisableConfigChangePrompt bool `json:"disable_config_change_prompt" mapstructure:"disable_config_change_prompt"`
		// PixiPath overrides the pixi executable lookup.
		PixiPath string `json:"pixi_path" mapstructure:"pixi_path"`
		// UI configures prompts and output.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// Verbose enables debug logging and issue pages.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
		// Accessible forces line-based prompts.
		Accessible bool `json:"accessible" mapstructure:"accessible"`
		// Theme selects the prompt theme.
		Theme Theme `json:"theme" mapstructure:"theme"`
	}

	// InvalidThemeError is returned when a Theme value is not recognized.
	InvalidThemeError struct {
		Value Theme
	}

	// InvalidIgnorePatternError is returned when an ignored_environments entry
	// does not compile.
	InvalidIgnorePatternError struct {
		Index   int
		Pattern string
		Cause   error
	}

	// InvalidUIConfigError is returned when a UIConfig has invalid fields.
	InvalidUIConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		IgnoredEnvironments:    []string{},
		OfflineEnvironmentName: DefaultOfflineEnvironmentName,
		UI: UIConfig{
			Theme: ThemeDefault,
		},
	}
}

// String returns the theme name.
func (t Theme) String() string { return string(t) }

// IsValid returns whether the Theme is a known theme. The empty value is
// accepted and means ThemeDefault.
func (t Theme) IsValid() (bool, []error) {
	if t == "" || slices.Contains(validThemes, t) {
		return true, nil
	}
	return false, []error{&InvalidThemeError{Value: t}}
}

// Error implements the error interface for InvalidThemeError.
func (e *InvalidThemeError) Error() string {
	names := make([]string, len(validThemes))
	for i, t := range validThemes {
		names[i] = string(t)
	}
	return fmt.Sprintf("invalid theme %q (valid: %s)", e.Value, strings.Join(names, ", "))
}

// Unwrap returns ErrInvalidTheme for errors.Is() compatibility.
func (e *InvalidThemeError) Unwrap() error { return ErrInvalidTheme }

// Error implements the error interface for InvalidIgnorePatternError.
func (e *InvalidIgnorePatternError) Error() string {
	return fmt.Sprintf("ignored_environments[%d]: %q: %v", e.Index, e.Pattern, e.Cause)
}

// Unwrap returns ErrInvalidIgnorePattern and the regexp error.
func (e *InvalidIgnorePatternError) Unwrap() []error {
	return []error{ErrInvalidIgnorePattern, e.Cause}
}

// IsValid returns whether the UIConfig has valid fields.
func (c UIConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Theme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidUIConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidUIConfigError.
func (e *InvalidUIConfigError) Error() string {
	return fmt.Sprintf("invalid UI config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidUIConfig for errors.Is() compatibility.
func (e *InvalidUIConfigError) Unwrap() error { return ErrInvalidUIConfig }

// IsValid returns whether the Config has valid fields. Ignore patterns must
// compile and the offline label must be usable in a file name.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	for i, pattern := range c.IgnoredEnvironments {
		if _, err := regexp.Compile(pattern); err != nil {
			errs = append(errs, &InvalidIgnorePatternError{Index: i, Pattern: pattern, Cause: err})
		}
	}
	if !offlineNamePattern.MatchString(c.OfflineEnvironmentName) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidOfflineName, c.OfflineEnvironmentName))
	}
	if valid, fieldErrs := c.UI.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return "invalid config: " + e.FieldErrors[0].Error()
	}
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig followed by the field errors so errors.Is
// reaches both the sentinel and the individual failures.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
