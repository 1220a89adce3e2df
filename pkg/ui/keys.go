package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keybindings for the TUI.
type KeyMap struct {
	Quit    key.Binding
	Connect key.Binding
	Ping    key.Binding
	Message key.Binding
	Read    key.Binding
	Refresh key.Binding
	Balance key.Binding
	Clear   key.Binding
	Events  key.Binding
	Up      key.Binding
	Down    key.Binding
	Help    key.Binding

	// While editing the message
	Submit key.Binding
	Cancel key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Connect: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "connect"),
		),
		Ping: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "ping"),
		),
		Message: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "set message"),
		),
		Read: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "read message"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "refresh feed"),
		),
		Balance: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "balance"),
		),
		Clear: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "clear errors"),
		),
		Events: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "clear events"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

// ShortHelp returns keybindings to be shown in the mini help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Connect, k.Ping, k.Message, k.Read, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Connect, k.Ping, k.Message, k.Read},
		{k.Refresh, k.Balance, k.Clear, k.Events},
		{k.Up, k.Down, k.Help, k.Quit},
	}
}

// editingKeys is the help shown while the message input is focused.
type editingKeys struct{ k KeyMap }

func (e editingKeys) ShortHelp() []key.Binding  { return []key.Binding{e.k.Submit, e.k.Cancel} }
func (e editingKeys) FullHelp() [][]key.Binding { return [][]key.Binding{e.ShortHelp()} }
