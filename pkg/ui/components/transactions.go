package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// TxRow is one submitted transaction.
type TxRow struct {
	Hash   string
	Method string
	State  string
	Block  uint64
	Error  string
	At     time.Time
}

// TransactionsComponent renders submitted transactions, newest first.
type TransactionsComponent struct {
	rows    []TxRow
	maxRows int
}

// NewTransactionsComponent creates a list holding at most maxRows transactions.
func NewTransactionsComponent(maxRows int) *TransactionsComponent {
	return &TransactionsComponent{maxRows: maxRows}
}

// Upsert adds a transaction or updates it in place. Empty fields keep
// their previous value.
func (t *TransactionsComponent) Upsert(row TxRow) {
	for i, r := range t.rows {
		if r.Hash != row.Hash {
			continue
		}
		if row.Method == "" {
			row.Method = r.Method
		}
		if row.Block == 0 {
			row.Block = r.Block
		}
		if row.At.IsZero() {
			row.At = r.At
		}
		t.rows[i] = row
		return
	}

	t.rows = append([]TxRow{row}, t.rows...)
	if len(t.rows) > t.maxRows {
		t.rows = t.rows[:t.maxRows]
	}
}

// Get returns the row for hash.
func (t *TransactionsComponent) Get(hash string) (TxRow, bool) {
	for _, r := range t.rows {
		if r.Hash == hash {
			return r, true
		}
	}
	return TxRow{}, false
}

// Len returns the number of transactions held.
func (t *TransactionsComponent) Len() int {
	return len(t.rows)
}

// View renders the list.
func (t *TransactionsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("TRANSACTIONS"))
	sb.WriteString("\n\n")

	if len(t.rows) == 0 {
		sb.WriteString(mutedStyle.Render("  No transactions yet"))
		return sb.String()
	}

	for _, r := range t.rows {
		icon, style := stateIcon(r.State)
		line := fmt.Sprintf("%s %-10s %s %s", icon, r.Method, shortHash(r.Hash), r.State)
		if r.Block > 0 {
			line += fmt.Sprintf(" @%d", r.Block)
		}
		sb.WriteString(style.Render(line))
		sb.WriteString("\n")
		if r.Error != "" {
			sb.WriteString(mutedStyle.Render("    " + r.Error))
			sb.WriteString("\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

func stateIcon(state string) (string, lipgloss.Style) {
	switch state {
	case "confirmed":
		return "✓", lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	case "failed":
		return "✗", lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	case "timed_out":
		return "?", lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	default:
		return "…", lipgloss.NewStyle().Foreground(lipgloss.Color("#60A5FA"))
	}
}

func shortHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:8] + "…" + h[len(h)-4:]
}
