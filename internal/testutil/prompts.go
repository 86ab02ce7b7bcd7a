// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"sync"

	"github.com/pixienv/pixienv/internal/tui"
)

type (
	// FakePrompter answers prompts from queues. An empty queue answers with
	// tui.ErrCancelled.
	FakePrompter struct {
		Selections []string
		Confirms   []bool
		Inputs     []string

		mu     sync.Mutex
		titles []string
	}

	// CountingProgress runs fn directly and records each title.
	CountingProgress struct {
		mu     sync.Mutex
		titles []string
	}
)

// Select implements tui.Prompter.
func (p *FakePrompter) Select(_ context.Context, title string, _ []string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.titles = append(p.titles, title)
	if len(p.Selections) == 0 {
		return "", tui.ErrCancelled
	}
	answer := p.Selections[0]
	p.Selections = p.Selections[1:]
	return answer, nil
}

// Confirm implements tui.Prompter.
func (p *FakePrompter) Confirm(_ context.Context, title, _, _ string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.titles = append(p.titles, title)
	if len(p.Confirms) == 0 {
		return false, tui.ErrCancelled
	}
	answer := p.Confirms[0]
	p.Confirms = p.Confirms[1:]
	return answer, nil
}

// Input implements tui.Prompter.
func (p *FakePrompter) Input(_ context.Context, title, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.titles = append(p.titles, title)
	if len(p.Inputs) == 0 {
		return "", tui.ErrCancelled
	}
	answer := p.Inputs[0]
	p.Inputs = p.Inputs[1:]
	return answer, nil
}

// Titles returns the titles of every prompt shown, in order.
func (p *FakePrompter) Titles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.titles...)
}

// Run implements tui.Progress.
func (p *CountingProgress) Run(ctx context.Context, title string, fn func(context.Context) error) error {
	p.mu.Lock()
	p.titles = append(p.titles, title)
	p.mu.Unlock()
	return fn(ctx)
}

// Titles returns the titles passed to Run.
func (p *CountingProgress) Titles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.titles...)
}
