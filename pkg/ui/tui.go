package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	contract "github.com/fd1az/dapp-bridge/business/contract/domain"
	wallet "github.com/fd1az/dapp-bridge/business/wallet/domain"
	"github.com/fd1az/dapp-bridge/internal/apperror"
	"github.com/fd1az/dapp-bridge/pkg/ui/components"
)

// Status panel rows.
const (
	rowWallet = "Wallet"
	rowNode   = "Node"
	rowFeed   = "Feed"
)

// StartupStep represents a step in the startup process.
type StartupStep struct {
	Name   string
	Status string // "pending", "connecting", "connected", "failed"
}

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseStartup   Phase = "startup"   // Loading/connecting
	PhaseDashboard Phase = "dashboard" // Main dashboard
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

var startupOrder = []string{"config", "ethereum", "wallet", "events"}

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	keys    KeyMap
	help    help.Model
	input   textinput.Model
	actions Actions

	// Components
	status  *components.StatusComponent
	feed    *components.FeedComponent
	txs     *components.TransactionsComponent
	account *components.AccountComponent
	stats   *components.StatsComponent

	// Phase state
	phase        Phase
	welcomeStart time.Time

	// Startup state
	startupSteps map[string]*StartupStep
	startupTime  time.Time

	// State
	ready    bool
	quitting bool
	editing  bool
	width    int
	height   int
	errors   []ErrorEntry // Persistent error panel (last 3)
	logs     []string     // Recent log messages
}

// New creates a dashboard for the EventDemo contract at contractAddr.
func New(contractAddr string, actions Actions) Model {
	now := time.Now()

	input := textinput.New()
	input.Placeholder = "new message"
	input.CharLimit = 280
	input.Prompt = "setMessage ▸ "

	return Model{
		keys:         DefaultKeyMap(),
		help:         help.New(),
		input:        input,
		actions:      actions,
		status:       components.NewStatusComponent(rowWallet, rowNode, rowFeed),
		feed:         components.NewFeedComponent(200),
		txs:          components.NewTransactionsComponent(8),
		account:      components.NewAccountComponent(contractAddr),
		stats:        components.NewStatsComponent(),
		phase:        PhaseWelcome,
		welcomeStart: now,
		startupSteps: map[string]*StartupStep{
			"config":   {Name: "Loading configuration", Status: "pending"},
			"ethereum": {Name: "Connecting to node", Status: "pending"},
			"wallet":   {Name: "Reaching wallet", Status: "pending"},
			"events":   {Name: "Loading ActionLogged history", Status: "pending"},
		},
		startupTime: now,
		logs:        make([]string, 0, 5),
		errors:      make([]ErrorEntry, 0, 3),
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for smooth animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.startModules()
		}
		return m, tickCmd()

	case StartupMsg:
		if step, ok := m.startupSteps[msg.Step]; ok {
			step.Status = msg.Status
		}
		if msg.Status == "failed" && msg.Message != "" {
			m.addError(fmt.Errorf("%s: %s", msg.Step, msg.Message))
		}
		if m.phase == PhaseStartup && m.startupDone() {
			m.phase = PhaseDashboard
		}

	case WalletMsg:
		m.applyWallet(msg.Status)

	case NodeMsg:
		if msg.Err != nil {
			m.status.Update(components.ConnectionStatus{Name: rowNode, State: "failed", Detail: msg.Err.Error()})
			break
		}
		detail := fmt.Sprintf("block %d", msg.Block)
		if msg.Latency > 0 {
			detail += fmt.Sprintf(", %dms", msg.Latency.Milliseconds())
		}
		m.status.Update(components.ConnectionStatus{Name: rowNode, State: "connected", Detail: detail})

	case FeedStateMsg:
		m.status.Update(components.ConnectionStatus{Name: rowFeed, State: msg.State})

	case ActionMsg:
		a := msg.Action
		m.feed.Add(components.FeedRow{
			Time:     a.Timestamp,
			Block:    a.Block,
			LogIndex: a.LogIndex,
			User:     shortAddress(a.User.Hex()),
			Message:  a.Message,
		})
		st := m.stats.Stats()
		st.Events++
		m.stats.Update(st)

	case TxMsg:
		m.applyTx(msg)

	case MessageMsg:
		m.account.SetMessage(msg.Message)
		m.logs = addLog(m.logs, "info", fmt.Sprintf("message() = %q", msg.Message))

	case BalanceMsg:
		m.account.Balance = msg.Info.String()

	case ErrorMsg:
		m.addError(msg.Error)

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}

	if m.editing {
		switch {
		case key.Matches(msg, m.keys.Submit):
			text := m.input.Value()
			m.stopEditing()
			if m.actions.SetMessage == nil {
				return m, nil
			}
			m.logs = addLog(m.logs, "info", "setMessage requested")
			return m, m.actions.SetMessage(text)
		case key.Matches(msg, m.keys.Cancel):
			m.stopEditing()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}

	// During welcome phase, any other key skips to startup
	if m.phase == PhaseWelcome {
		m.startModules()
		return m, tickCmd()
	}

	switch {
	case key.Matches(msg, m.keys.Connect):
		return m.run(m.actions.Connect, "wallet connection requested")
	case key.Matches(msg, m.keys.Ping):
		return m.run(m.actions.Ping, "ping requested")
	case key.Matches(msg, m.keys.Read):
		return m.run(m.actions.ReadMessage, "reading message")
	case key.Matches(msg, m.keys.Refresh):
		m.feed.Clear()
		return m.run(m.actions.Refresh, "refreshing event feed")
	case key.Matches(msg, m.keys.Balance):
		return m.run(m.actions.Balance, "reading balance")
	case key.Matches(msg, m.keys.Message):
		m.editing = true
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.Clear):
		m.errors = make([]ErrorEntry, 0, 3)
	case key.Matches(msg, m.keys.Events):
		m.feed.Clear()
	case key.Matches(msg, m.keys.Up):
		m.feed.ScrollUp()
	case key.Matches(msg, m.keys.Down):
		m.feed.ScrollDown()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m Model) run(cmd tea.Cmd, note string) (tea.Model, tea.Cmd) {
	if cmd == nil {
		return m, nil
	}
	m.logs = addLog(m.logs, "info", note)
	return m, cmd
}

func (m *Model) stopEditing() {
	m.editing = false
	m.input.Reset()
	m.input.Blur()
}

func (m *Model) startModules() {
	m.phase = PhaseStartup
	m.startupTime = time.Now()
	// Trigger callback directly (don't use Send() from within Update)
	if OnStartModules != nil {
		go OnStartModules()
	}
}

func (m Model) startupDone() bool {
	for _, step := range m.startupSteps {
		if step.Status == "pending" || step.Status == "connecting" {
			return false
		}
	}
	return true
}

func (m *Model) applyWallet(s wallet.Status) {
	row := components.ConnectionStatus{Name: rowWallet, State: string(s.State)}
	switch s.State {
	case wallet.StateConnected:
		row.Detail = s.Account.Short()
		m.account.Account = s.Account.String()
	case wallet.StateFailed:
		if s.Reason != nil {
			row.Detail = string(apperror.GetCode(s.Reason))
			m.addError(s.Reason)
		}
		m.account.Account = ""
		m.account.Balance = ""
	default:
		m.account.Account = ""
		m.account.Balance = ""
	}
	m.status.Update(row)
}

func (m *Model) applyTx(msg TxMsg) {
	hash := msg.Hash.Hex()
	_, known := m.txs.Get(hash)

	row := components.TxRow{Hash: hash, Method: msg.Method, State: string(msg.State), Block: msg.Block}
	if !known {
		row.At = time.Now()
	}
	if msg.Err != nil {
		row.Error = describe(msg.Err)
	}
	m.txs.Upsert(row)

	st := m.stats.Stats()
	if !known {
		st.Submitted++
	}
	switch msg.State {
	case contract.TxConfirmed:
		st.Confirmed++
		m.logs = addLog(m.logs, "info", fmt.Sprintf("%s confirmed in block %d", msg.Method, msg.Block))
	case contract.TxFailed:
		st.Failed++
	case contract.TxTimedOut:
		st.TimedOut++
	}
	m.stats.Update(st)

	if msg.Err != nil {
		m.addError(msg.Err)
	}
}

func (m *Model) addError(err error) {
	if err == nil {
		return
	}
	m.errors = append(m.errors, ErrorEntry{Message: describe(err), Timestamp: time.Now()})
	if len(m.errors) > 3 {
		m.errors = m.errors[len(m.errors)-3:]
	}
	m.logs = addLog(m.logs, "error", err.Error())

	st := m.stats.Stats()
	st.Errors++
	m.stats.Update(st)
}

// describe adds what an application failure means for the user's next step.
func describe(err error) string {
	if apperror.GetCode(err) == apperror.CodeUnknownError {
		return err.Error()
	}
	switch apperror.Classify(err) {
	case apperror.OutcomeUnresolved:
		return err.Error() + " (may still be mined)"
	case apperror.OutcomeFailed:
		return err.Error() + " (reverted or rejected by the network)"
	default:
		return err.Error()
	}
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	logLine := fmt.Sprintf("[%s] %s: %s", timestamp, level, message)
	logs = append(logs, logLine)
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

func shortAddress(hex string) string {
	if len(hex) <= 12 {
		return hex
	}
	return hex[:6] + "..." + hex[len(hex)-4:]
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	switch m.phase {
	case PhaseWelcome:
		return m.renderWelcomeScreen()
	case PhaseStartup:
		return m.renderStartupScreen()
	}

	if !m.ready {
		return "\n  Initializing..."
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" ⛓  EventDemo Dashboard "))
	b.WriteString("\n\n")
	b.WriteString(m.status.View())
	b.WriteString("\n")
	b.WriteString(m.stats.View())
	b.WriteString("\n\n")

	feedHeight := m.height - 22
	if feedHeight < 5 {
		feedHeight = 5
	}

	left := m.account.View() + "\n\n" + m.txs.View()
	right := m.feed.View(feedHeight)

	if m.width > 100 {
		l := BoxStyle.Width(m.width/2 - 2).Render(left)
		r := BoxStyle.Width(m.width/2 - 2).Render(right)
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, l, r))
	} else {
		width := max(m.width-4, 40)
		b.WriteString(BoxStyle.Width(width).Render(left))
		b.WriteString("\n")
		b.WriteString(BoxStyle.Width(width).Render(right))
	}
	b.WriteString("\n")

	if m.editing {
		b.WriteString(InputStyle.Render(m.input.View()))
		b.WriteString("\n")
	}

	if len(m.errors) > 0 {
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)
		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(MutedValue.Render(" (x: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(ErrorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(MutedValue.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
	}

	for _, line := range m.logs {
		b.WriteString(MutedValue.Render("  " + line))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.editing {
		b.WriteString(HelpStyle.Render(m.help.View(editingKeys{m.keys})))
	} else {
		b.WriteString(HelpStyle.Render(m.help.View(m.keys)))
	}

	return b.String()
}

// renderWelcomeScreen renders the animated welcome screen.
func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	mutedStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	greenStyle := lipgloss.NewStyle().Foreground(ColorSecondary)

	elapsed := time.Since(m.welcomeStart)
	dots := strings.Repeat(".", int(elapsed.Milliseconds()/300)%4)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")

	logo := `
   ██████╗  █████╗ ██████╗ ██████╗
   ██╔══██╗██╔══██╗██╔══██╗██╔══██╗
   ██║  ██║███████║██████╔╝██████╔╝
   ██║  ██║██╔══██║██╔═══╝ ██╔═══╝
   ██████╔╝██║  ██║██║     ██║
   ╚═════╝ ╚═╝  ╚═╝╚═╝     ╚═╝
`
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")
	sb.WriteString(mutedStyle.Render("          E V E N T D E M O   B R I D G E"))
	sb.WriteString("\n\n\n")
	sb.WriteString(greenStyle.Render(fmt.Sprintf("              Initializing%s", dots)))
	sb.WriteString("\n\n")
	sb.WriteString(mutedStyle.Render("        Press any key to skip, or wait..."))
	sb.WriteString("\n")

	return sb.String()
}

// renderStartupScreen renders the loading/startup screen.
func (m Model) renderStartupScreen() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginBottom(1)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF"))
	mutedStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	successStyle := lipgloss.NewStyle().Foreground(ColorSecondary)
	connectingStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	failedStyle := lipgloss.NewStyle().Foreground(ColorDanger)

	var sb strings.Builder

	sb.WriteString("\n\n")
	sb.WriteString(titleStyle.Render("  ⛓  EventDemo Dashboard"))
	sb.WriteString("\n\n")
	sb.WriteString(headerStyle.Render("  Starting up..."))
	sb.WriteString("\n\n")

	for _, k := range startupOrder {
		step, ok := m.startupSteps[k]
		if !ok {
			continue
		}

		var icon, statusText string
		var style lipgloss.Style

		switch step.Status {
		case "connected", "done":
			icon, statusText, style = "✓", "Ready", successStyle
		case "connecting":
			spinners := []string{"◐", "◓", "◑", "◒"}
			idx := int(time.Since(m.startupTime).Milliseconds()/200) % len(spinners)
			icon, statusText, style = spinners[idx], "Connecting...", connectingStyle
		case "failed":
			icon, statusText, style = "✗", "Failed", failedStyle
		default:
			icon, statusText, style = "○", "Pending", mutedStyle
		}

		sb.WriteString(fmt.Sprintf("  %s %s %s\n",
			style.Render(icon),
			mutedStyle.Render(step.Name),
			style.Render(statusText),
		))
	}

	sb.WriteString("\n")
	elapsed := time.Since(m.startupTime).Round(time.Second)
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("  Elapsed: %s", elapsed)))
	sb.WriteString("\n")

	return sb.String()
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules should start.
// This is set by main.go to signal when to begin loading modules.
var OnStartModules func()

// Run starts the Bubble Tea program.
func Run(m Model) error {
	Program = tea.NewProgram(m, tea.WithAltScreen())
	_, err := Program.Run()
	return err
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
}
