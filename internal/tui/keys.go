package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Match       key.Binding
	Start       key.Binding
	Home        key.Binding
	NextMode    key.Binding
	Visual      key.Binding
	Audio       key.Binding
	AudioVisual key.Binding
	Quit        key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Match: key.NewBinding(
			key.WithKeys(" ", "m"),
			key.WithHelp("space/m", "match"),
		),
		Start: key.NewBinding(
			key.WithKeys("enter", "s"),
			key.WithHelp("enter", "start"),
		),
		Home: key.NewBinding(
			key.WithKeys("b", "esc"),
			key.WithHelp("b/esc", "home"),
		),
		NextMode: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab/1-3", "mode"),
		),
		Visual:      key.NewBinding(key.WithKeys("1")),
		Audio:       key.NewBinding(key.WithKeys("2")),
		AudioVisual: key.NewBinding(key.WithKeys("3")),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
