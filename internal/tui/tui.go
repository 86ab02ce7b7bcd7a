// SPDX-License-Identifier: MPL-2.0

// Package tui provides the interactive surfaces the engine talks to through
// ports: a Prompter for environment selection, confirmations and archive
// paths, and a Progress wrapper shown while pixi works.
//
// The production implementations wrap charmbracelet/huh forms and the huh
// spinner. Both fall back to accessible (line-based) mode when stdin is not
// a terminal or ACCESSIBLE is set, writing to stderr so prompts are not
// swallowed by command substitution.
package tui

import (
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// Theme selects the huh theme for prompts.
type Theme string

const (
	// ThemeDefault uses the base huh theme.
	ThemeDefault Theme = "default"
	// ThemeCharm uses the Charm theme.
	ThemeCharm Theme = "charm"
	// ThemeDracula uses the Dracula theme.
	ThemeDracula Theme = "dracula"
	// ThemeCatppuccin uses the Catppuccin theme.
	ThemeCatppuccin Theme = "catppuccin"
	// ThemeBase16 uses the Base16 theme.
	ThemeBase16 Theme = "base16"
)

// Config holds common configuration for prompts and progress.
type Config struct {
	Theme Theme
	// Accessible forces line-based prompts.
	Accessible bool
	// Output is where prompts render. Nil picks stdout, or stderr in
	// accessible mode.
	Output io.Writer
}

// DefaultConfig returns the configuration for the current process.
func DefaultConfig() Config {
	return Config{Theme: ThemeDefault, Accessible: os.Getenv("ACCESSIBLE") != ""}
}

// Interactive reports whether stdin is a terminal.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func shouldUseAccessible(cfg Config) bool {
	return cfg.Accessible || !Interactive()
}

func outputWriter(cfg Config) io.Writer {
	if cfg.Output != nil {
		return cfg.Output
	}
	if shouldUseAccessible(cfg) {
		return os.Stderr
	}
	return os.Stdout
}

func huhTheme(t Theme) *huh.Theme {
	switch t {
	case ThemeCharm:
		return huh.ThemeCharm()
	case ThemeDracula:
		return huh.ThemeDracula()
	case ThemeCatppuccin:
		return huh.ThemeCatppuccin()
	case ThemeBase16:
		return huh.ThemeBase16()
	default:
		return huh.ThemeBase()
	}
}
