package main

import "github.com/charmbracelet/bubbles/key"

// watchKeyMap defines the watch view shortcuts
type watchKeyMap struct {
	Pause  key.Binding
	Verify key.Binding
	Up     key.Binding
	Down   key.Binding
	Quit   key.Binding
}

func defaultWatchKeys() watchKeyMap {
	return watchKeyMap{
		Pause: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p/space", "pause workload"),
		),
		Verify: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "verify heap"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// helpLine renders the short help for the status bar.
func (k watchKeyMap) helpLine() string {
	var s string
	for i, b := range []key.Binding{k.Pause, k.Verify, k.Up, k.Down, k.Quit} {
		if i > 0 {
			s += "  "
		}
		h := b.Help()
		s += h.Key + " " + h.Desc
	}
	return s
}
