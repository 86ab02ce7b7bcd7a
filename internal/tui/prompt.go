// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
)

// ErrCancelled is returned when the user dismisses a prompt.
var ErrCancelled = errors.New("prompt cancelled")

type (
	// Prompter asks the user questions.
	Prompter interface {
		// Select returns one of options.
		Select(ctx context.Context, title string, options []string) (string, error)
		// Confirm returns true when the user picks affirmative.
		Confirm(ctx context.Context, title, affirmative, negative string) (bool, error)
		// Input returns a non-empty line of text.
		Input(ctx context.Context, title, placeholder string) (string, error)
	}

	// FormPrompter is the huh-backed Prompter.
	FormPrompter struct {
		cfg Config
	}
)

// NewFormPrompter returns a Prompter rendering huh forms.
func NewFormPrompter(cfg Config) *FormPrompter {
	return &FormPrompter{cfg: cfg}
}

// Select implements Prompter.
func (p *FormPrompter) Select(ctx context.Context, title string, options []string) (string, error) {
	var result string
	field := huh.NewSelect[string]().
		Title(title).
		Options(huh.NewOptions(options...)...).
		Value(&result)
	if err := p.run(ctx, field); err != nil {
		return "", err
	}
	return result, nil
}

// Confirm implements Prompter.
func (p *FormPrompter) Confirm(ctx context.Context, title, affirmative, negative string) (bool, error) {
	var result bool
	field := huh.NewConfirm().
		Title(title).
		Affirmative(affirmative).
		Negative(negative).
		Value(&result)
	if err := p.run(ctx, field); err != nil {
		return false, err
	}
	return result, nil
}

// Input implements Prompter.
func (p *FormPrompter) Input(ctx context.Context, title, placeholder string) (string, error) {
	var result string
	field := huh.NewInput().
		Title(title).
		Placeholder(placeholder).
		Validate(nonEmpty).
		Value(&result)
	if err := p.run(ctx, field); err != nil {
		return "", err
	}
	return strings.TrimSpace(result), nil
}

func (p *FormPrompter) run(ctx context.Context, field huh.Field) error {
	form := huh.NewForm(huh.NewGroup(field)).
		WithTheme(huhTheme(p.cfg.Theme)).
		WithAccessible(shouldUseAccessible(p.cfg)).
		WithOutput(outputWriter(p.cfg))

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrCancelled
		}
		return err
	}
	return nil
}

func nonEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("a value is required")
	}
	return nil
}
