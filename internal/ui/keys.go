package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Toggle     key.Binding
	Speak      key.Binding
	Swap       key.Binding
	SourcePrev key.Binding
	SourceNext key.Binding
	TargetPrev key.Binding
	TargetNext key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Toggle:     key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "talk / stop")),
		Speak:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "listen")),
		Swap:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "swap")),
		SourcePrev: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/→", "source")),
		SourceNext: key.NewBinding(key.WithKeys("right", "l")),
		TargetPrev: key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/↓", "target")),
		TargetNext: key.NewBinding(key.WithKeys("down", "j")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Speak, k.Swap, k.SourcePrev, k.TargetPrev, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
