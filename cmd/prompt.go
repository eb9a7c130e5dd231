package cmd

import (
	"github.com/charmbracelet/huh"
)

// SelectOption is a labeled value for select prompts.
type SelectOption[T comparable] struct {
	Label string
	Value T
}

// filterThreshold: enable type-to-filter only when there are more than this many options.
const filterThreshold = 5

// promptSelect shows a single-select list using huh TUI.
func promptSelect[T comparable](title string, options []SelectOption[T]) (T, error) {
	var value T

	huhOpts := make([]huh.Option[T], len(options))
	for i, opt := range options {
		huhOpts[i] = huh.NewOption(opt.Label, opt.Value)
	}

	sel := huh.NewSelect[T]().
		Title(title).
		Options(huhOpts...).
		Value(&value)

	if len(options) > filterThreshold {
		sel = sel.Filtering(true)
	}

	if err := huh.NewForm(huh.NewGroup(sel)).WithShowHelp(true).Run(); err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}
