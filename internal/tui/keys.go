package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the key bindings for the inspector.
type KeyMap struct {
	// Navigation
	Up   key.Binding
	Down key.Binding

	// Producer actions
	Register   key.Binding
	Update     key.Binding
	Hide       key.Binding
	Release    key.Binding
	Unregister key.Binding
	Fault      key.Binding

	// Global
	Quit key.Binding
	Help key.Binding
}

// ShortHelp returns a short help message.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Register, k.Update, k.Release, k.Unregister, k.Help, k.Quit}
}

// FullHelp returns a full help message.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Register, k.Update, k.Hide, k.Release},
		{k.Unregister, k.Fault, k.Help, k.Quit},
	}
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Register: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "register"),
		),
		Update: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "update (show)"),
		),
		Hide: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "update (hide)"),
		),
		Release: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "release"),
		),
		Unregister: key.NewBinding(
			key.WithKeys("x", "d"),
			key.WithHelp("x", "unregister"),
		),
		Fault: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "cycle disconnect fault"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}
