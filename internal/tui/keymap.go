package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the editor keybindings.
type KeyMap struct {
	Quit     key.Binding
	Help     key.Binding
	PrevPage key.Binding
	NextPage key.Binding
	Up       key.Binding
	Down     key.Binding

	// Toggle selects the stamp under the cursor, or clears the selection if
	// it is already selected.
	Toggle key.Binding
	Place  key.Binding

	// Cycle makes the next placed stamp on the page active.
	Cycle key.Binding

	MoveLeft  key.Binding
	MoveRight key.Binding
	MoveUp    key.Binding
	MoveDown  key.Binding
	Grow      key.Binding
	Shrink    key.Binding
	Delete    key.Binding
	Export    key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("left", "pgup", "["),
			key.WithHelp("←/[", "prev page"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("right", "pgdown", "]"),
			key.WithHelp("→/]", "next page"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "select stamp"),
		),
		Place: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "place"),
		),
		Cycle: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next placed"),
		),
		MoveLeft: key.NewBinding(
			key.WithKeys("H"),
			key.WithHelp("H", "move left"),
		),
		MoveRight: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "move right"),
		),
		MoveUp: key.NewBinding(
			key.WithKeys("K"),
			key.WithHelp("K", "move up"),
		),
		MoveDown: key.NewBinding(
			key.WithKeys("J"),
			key.WithHelp("J", "move down"),
		),
		Grow: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "grow"),
		),
		Shrink: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "shrink"),
		),
		Delete: key.NewBinding(
			key.WithKeys("delete", "backspace"),
			key.WithHelp("del", "delete stamp"),
		),
		Export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "export"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PrevPage, k.NextPage, k.Toggle, k.Place, k.Export, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PrevPage, k.NextPage, k.Up, k.Down},
		{k.Toggle, k.Place, k.Cycle, k.Delete},
		{k.MoveLeft, k.MoveRight, k.MoveUp, k.MoveDown, k.Grow, k.Shrink},
		{k.Export, k.Help, k.Quit},
	}
}
