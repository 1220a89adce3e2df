package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// FeedRow is one ActionLogged event.
type FeedRow struct {
	Time     time.Time
	Block    uint64
	LogIndex uint
	User     string
	Message  string
}

// FeedComponent renders the event feed, newest first.
type FeedComponent struct {
	rows    []FeedRow
	maxRows int
	offset  int
}

// NewFeedComponent creates a feed holding at most maxRows events.
func NewFeedComponent(maxRows int) *FeedComponent {
	return &FeedComponent{
		rows:    make([]FeedRow, 0),
		maxRows: maxRows,
	}
}

// Add prepends an event.
func (f *FeedComponent) Add(row FeedRow) {
	f.rows = append([]FeedRow{row}, f.rows...)
	if len(f.rows) > f.maxRows {
		f.rows = f.rows[:f.maxRows]
	}
	if f.offset > 0 {
		f.offset++
	}
}

// Clear drops all events.
func (f *FeedComponent) Clear() {
	f.rows = make([]FeedRow, 0)
	f.offset = 0
}

// Len returns the number of events held.
func (f *FeedComponent) Len() int {
	return len(f.rows)
}

// Rows returns the events, newest first.
func (f *FeedComponent) Rows() []FeedRow {
	return append([]FeedRow(nil), f.rows...)
}

// ScrollUp moves toward newer events.
func (f *FeedComponent) ScrollUp() {
	if f.offset > 0 {
		f.offset--
	}
}

// ScrollDown moves toward older events.
func (f *FeedComponent) ScrollDown() {
	if f.offset < len(f.rows)-1 {
		f.offset++
	}
}

// View renders up to height rows.
func (f *FeedComponent) View(height int) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	blockStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("ACTION LOG (%d)", len(f.rows))))
	sb.WriteString("\n\n")

	if len(f.rows) == 0 {
		sb.WriteString(mutedStyle.Render("  Waiting for events..."))
		return sb.String()
	}
	if height < 1 {
		height = 10
	}

	end := min(f.offset+height, len(f.rows))
	for _, row := range f.rows[f.offset:end] {
		ts := "--:--:--"
		if !row.Time.IsZero() {
			ts = row.Time.Local().Format("15:04:05")
		}
		sb.WriteString(mutedStyle.Render(ts + " "))
		sb.WriteString(blockStyle.Render(fmt.Sprintf("#%d:%d ", row.Block, row.LogIndex)))
		sb.WriteString(fmt.Sprintf("%s %s\n", row.User, row.Message))
	}
	if f.offset > 0 || end < len(f.rows) {
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("  %d-%d of %d", f.offset+1, end, len(f.rows))))
	}

	return sb.String()
}
