package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds session counters for display.
type Stats struct {
	Events    int64
	Submitted int64
	Confirmed int64
	Failed    int64
	TimedOut  int64
	Errors    int64
}

// StatsComponent renders statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update replaces the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// Stats returns the current statistics.
func (s *StatsComponent) Stats() Stats {
	return s.stats
}

// View renders the stats line.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	errorsDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	if s.stats.Errors > 0 {
		errorsDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	}

	return style.Render("Events: ") + valueStyle.Render(fmt.Sprintf("%d", s.stats.Events)) +
		style.Render("  │  Txs: ") + valueStyle.Render(fmt.Sprintf("%d", s.stats.Submitted)) +
		style.Render(fmt.Sprintf(" (%d ok, %d failed, %d unresolved)", s.stats.Confirmed, s.stats.Failed, s.stats.TimedOut)) +
		style.Render("  │  Errors: ") + errorsDisplay
}
