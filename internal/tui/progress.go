// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"context"

	"github.com/charmbracelet/huh/spinner"
)

type (
	// Progress runs fn while telling the user that work is in progress.
	Progress interface {
		Run(ctx context.Context, title string, fn func(ctx context.Context) error) error
	}

	// SpinnerProgress shows a huh spinner next to the title.
	SpinnerProgress struct {
		cfg Config
	}

	// PlainProgress runs fn without any indicator. Silent operations use it.
	PlainProgress struct{}
)

// NewSpinnerProgress returns a spinner-backed Progress.
func NewSpinnerProgress(cfg Config) *SpinnerProgress {
	return &SpinnerProgress{cfg: cfg}
}

// Run implements Progress.
func (p *SpinnerProgress) Run(ctx context.Context, title string, fn func(ctx context.Context) error) error {
	errc := make(chan error, 1)
	err := spinner.New().
		Title(title).
		Context(ctx).
		Accessible(shouldUseAccessible(p.cfg)).
		Action(func() { errc <- fn(ctx) }).
		Run()

	select {
	case fnErr := <-errc:
		return fnErr
	default:
		// The spinner stopped before fn returned (context cancelled).
		return err
	}
}

// Run implements Progress.
func (PlainProgress) Run(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
