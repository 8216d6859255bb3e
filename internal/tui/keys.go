package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up          key.Binding
	Down        key.Binding
	Slot        key.Binding
	Toggle      key.Binding
	Record      key.Binding
	Close       key.Binding
	Overdub     key.Binding
	StopOverdub key.Binding
	Mute        key.Binding
	Evict       key.Binding
	Undo        key.Binding
	Reset       key.Binding
	Export      key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "prev slot")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next slot")),
		Slot:        key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "footswitch slot")),
		Toggle:      key.NewBinding(key.WithKeys(" ", "space", "enter"), key.WithHelp("space", "footswitch")),
		Record:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "record")),
		Close:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "close")),
		Overdub:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "overdub")),
		StopOverdub: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop overdub")),
		Mute:        key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		Evict:       key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "evict oldest")),
		Undo:        key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo last layer")),
		Reset:       key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reset all")),
		Export:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "export wav")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Slot, k.Mute, k.Evict, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Slot, k.Toggle},
		{k.Record, k.Close, k.Overdub, k.StopOverdub},
		{k.Mute, k.Evict, k.Undo, k.Reset, k.Export},
		{k.Help, k.Quit},
	}
}
