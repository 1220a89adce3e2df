package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// AccountComponent renders the connected account, its token balance and
// the last message read from the contract.
type AccountComponent struct {
	Contract string
	Account  string
	Balance  string
	Message  string
	hasRead  bool
}

// NewAccountComponent creates the panel for contract.
func NewAccountComponent(contract string) *AccountComponent {
	return &AccountComponent{Contract: contract}
}

// SetMessage records the stored message.
func (a *AccountComponent) SetMessage(msg string) {
	a.Message = msg
	a.hasRead = true
}

// View renders the panel.
func (a *AccountComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Width(10)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))

	row := func(label, value, empty string) string {
		if value == "" {
			value = empty
		}
		return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
	}

	msg := a.Message
	if a.hasRead && msg == "" {
		msg = `""`
	}

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("ACCOUNT"))
	sb.WriteString("\n\n")
	sb.WriteString(row("Contract", a.Contract, "not configured"))
	sb.WriteString(row("Account", a.Account, "not connected (c)"))
	sb.WriteString(row("Balance", a.Balance, "press b"))
	sb.WriteString(row("Message", msg, "press r"))
	return strings.TrimRight(sb.String(), "\n")
}
