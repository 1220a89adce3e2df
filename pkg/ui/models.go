package ui

import tea "github.com/charmbracelet/bubbletea"

// Actions are the dashboard commands. Each runs off the update loop and
// reports back through its returned message; nil entries are disabled.
type Actions struct {
	Connect     tea.Cmd
	Ping        tea.Cmd
	SetMessage  func(msg string) tea.Cmd
	ReadMessage tea.Cmd
	Refresh     tea.Cmd
	Balance     tea.Cmd
}
