// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ConnectionStatus is one row of the status panel.
type ConnectionStatus struct {
	Name   string
	State  string // "connected", "connecting", "failed", anything else is disconnected
	Detail string
}

// StatusComponent renders connection status.
type StatusComponent struct {
	connections []ConnectionStatus
}

// NewStatusComponent creates a status component with rows in the given order.
func NewStatusComponent(names ...string) *StatusComponent {
	s := &StatusComponent{connections: make([]ConnectionStatus, 0, len(names))}
	for _, n := range names {
		s.connections = append(s.connections, ConnectionStatus{Name: n, State: "disconnected"})
	}
	return s
}

// Update replaces a row, appending it if the name is new.
func (s *StatusComponent) Update(status ConnectionStatus) {
	for i, conn := range s.connections {
		if conn.Name == status.Name {
			s.connections[i] = status
			return
		}
	}
	s.connections = append(s.connections, status)
}

// Get returns the row for name.
func (s *StatusComponent) Get(name string) (ConnectionStatus, bool) {
	for _, conn := range s.connections {
		if conn.Name == name {
			return conn, true
		}
	}
	return ConnectionStatus{}, false
}

// View renders the status bar.
func (s *StatusComponent) View() string {
	if len(s.connections) == 0 {
		return "No connections"
	}

	parts := make([]string, 0, len(s.connections))
	for _, conn := range s.connections {
		icon, style := "○", lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
		switch conn.State {
		case "connected", "subscribed":
			icon, style = "●", lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
		case "connecting", "fetching_history":
			icon, style = "◐", lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
		}

		line := fmt.Sprintf("%s %s: %s", icon, conn.Name, conn.State)
		if conn.Detail != "" {
			line += fmt.Sprintf(" (%s)", conn.Detail)
		}
		parts = append(parts, style.Render(line))
	}

	return strings.Join(parts, "  │  ")
}
