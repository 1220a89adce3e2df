package ui

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"

	contract "github.com/fd1az/dapp-bridge/business/contract/domain"
	eventdemo "github.com/fd1az/dapp-bridge/business/eventdemo/domain"
	wallet "github.com/fd1az/dapp-bridge/business/wallet/domain"
	"github.com/fd1az/dapp-bridge/internal/apperror"
)

type doneMsg struct{ name string }

func dashboard(actions Actions) Model {
	m := New("0xAB5801a7D398351b8bE11C439e05C5B3259aeC12", actions)
	m.phase = PhaseDashboard
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(Model)
}

func press(t *testing.T, m Model, keys string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch keys {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestKeys_DispatchActions(t *testing.T) {
	cmd := func(name string) tea.Cmd {
		return func() tea.Msg { return doneMsg{name} }
	}
	m := dashboard(Actions{
		Connect:     cmd("connect"),
		Ping:        cmd("ping"),
		ReadMessage: cmd("read"),
		Refresh:     cmd("refresh"),
		Balance:     cmd("balance"),
	})

	tests := []struct {
		key  string
		want string
	}{
		{"c", "connect"},
		{"p", "ping"},
		{"r", "read"},
		{"f", "refresh"},
		{"b", "balance"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			_, c := press(t, m, tt.key)
			if c == nil {
				t.Fatal("no command")
			}
			if got := c().(doneMsg).name; got != tt.want {
				t.Fatalf("dispatched %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeys_DisabledActionIsNoop(t *testing.T) {
	m := dashboard(Actions{})
	if _, c := press(t, m, "b"); c != nil {
		t.Fatal("expected no command for a disabled action")
	}
}

func TestSetMessage_EditAndSubmit(t *testing.T) {
	var got string
	m := dashboard(Actions{SetMessage: func(msg string) tea.Cmd {
		got = msg
		return func() tea.Msg { return doneMsg{"set"} }
	}})

	m, _ = press(t, m, "m")
	if !m.editing {
		t.Fatal("m did not open the message input")
	}
	// q is text while editing
	m, _ = press(t, m, "q")
	m, _ = press(t, m, "hi")
	m, c := press(t, m, "enter")

	if m.editing {
		t.Fatal("still editing after enter")
	}
	if c == nil {
		t.Fatal("no command")
	}
	c()
	if got != "qhi" {
		t.Fatalf("SetMessage(%q), want %q", got, "qhi")
	}
}

func TestSetMessage_Cancel(t *testing.T) {
	called := false
	m := dashboard(Actions{SetMessage: func(string) tea.Cmd {
		called = true
		return nil
	}})

	m, _ = press(t, m, "m")
	m, _ = press(t, m, "draft")
	m, _ = press(t, m, "esc")

	if m.editing || called {
		t.Fatalf("editing=%v called=%v after esc", m.editing, called)
	}
	if m.input.Value() != "" {
		t.Fatalf("input kept %q", m.input.Value())
	}
}

func TestActionMsg_AddsToFeed(t *testing.T) {
	m := dashboard(Actions{})
	m = update(m, ActionMsg{Action: eventdemo.Action{
		User:    common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"),
		Message: "gm",
		Block:   7,
	}})

	if m.feed.Len() != 1 || m.stats.Stats().Events != 1 {
		t.Fatalf("feed=%d events=%d", m.feed.Len(), m.stats.Stats().Events)
	}
	row := m.feed.Rows()[0]
	if row.User != "0xfB69...d359" || row.Message != "gm" {
		t.Fatalf("row = %+v", row)
	}
	if !strings.Contains(m.View(), "gm") {
		t.Fatal("feed not rendered")
	}
}

func TestRefresh_ClearsFeed(t *testing.T) {
	m := dashboard(Actions{Refresh: func() tea.Msg { return nil }})
	m = update(m, ActionMsg{Action: eventdemo.Action{Message: "old"}})

	m, _ = press(t, m, "f")
	if m.feed.Len() != 0 {
		t.Fatalf("feed = %d rows after refresh", m.feed.Len())
	}
}

func TestClearEvents_KeepsWatching(t *testing.T) {
	m := dashboard(Actions{Refresh: func() tea.Msg {
		t.Fatal("clearing events must not refetch history")
		return nil
	}})
	m = update(m, ActionMsg{Action: eventdemo.Action{Message: "old"}})

	m, cmd := press(t, m, "e")
	if cmd != nil {
		t.Fatal("clearing events returned a command")
	}
	if m.feed.Len() != 0 {
		t.Fatalf("feed = %d rows after clear", m.feed.Len())
	}

	m = update(m, ActionMsg{Action: eventdemo.Action{Message: "fresh"}})
	if rows := m.feed.Rows(); len(rows) != 1 || rows[0].Message != "fresh" {
		t.Fatalf("feed after a new event = %+v", rows)
	}
}

func TestTxMsg_Lifecycle(t *testing.T) {
	m := dashboard(Actions{})
	hash := common.BigToHash(big.NewInt(1))

	m = update(m, TxMsg{Hash: hash, Method: "ping", State: contract.TxSubmitted})
	m = update(m, TxMsg{Hash: hash, State: contract.TxConfirmed, Block: 42})

	row, ok := m.txs.Get(hash.Hex())
	if !ok {
		t.Fatal("transaction not listed")
	}
	if row.Method != "ping" || row.State != "confirmed" || row.Block != 42 {
		t.Fatalf("row = %+v", row)
	}
	st := m.stats.Stats()
	if st.Submitted != 1 || st.Confirmed != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestTxMsg_TimeoutIsUnresolved(t *testing.T) {
	m := dashboard(Actions{})
	hash := common.BigToHash(big.NewInt(2))

	m = update(m, TxMsg{Hash: hash, Method: "setMessage", State: contract.TxSubmitted})
	m = update(m, TxMsg{Hash: hash, State: contract.TxTimedOut,
		Err: apperror.New(apperror.CodeConfirmationTimeout)})

	if m.stats.Stats().TimedOut != 1 || len(m.errors) != 1 {
		t.Fatalf("stats=%+v errors=%d", m.stats.Stats(), len(m.errors))
	}
	if !strings.Contains(m.errors[0].Message, "may still be mined") {
		t.Fatalf("error = %q", m.errors[0].Message)
	}
}

func TestWalletMsg(t *testing.T) {
	m := dashboard(Actions{})

	m = update(m, WalletMsg{Status: wallet.Status{
		State:  wallet.StateFailed,
		Reason: apperror.New(apperror.CodeUserRejected),
	}})
	row, _ := m.status.Get(rowWallet)
	if row.State != "failed" || len(m.errors) != 1 {
		t.Fatalf("row=%+v errors=%d", row, len(m.errors))
	}

	m, _ = press(t, m, "x")
	if len(m.errors) != 0 {
		t.Fatal("x did not clear errors")
	}
}

func TestErrors_KeepLastThree(t *testing.T) {
	m := dashboard(Actions{})
	for i := range 5 {
		m = update(m, ErrorMsg{Error: errors.New(string(rune('a' + i)))})
	}
	if len(m.errors) != 3 || m.errors[0].Message != "c" {
		t.Fatalf("errors = %+v", m.errors)
	}
	if m.stats.Stats().Errors != 5 {
		t.Fatalf("error count = %d", m.stats.Stats().Errors)
	}
}

func TestStartup_AdvancesWhenStepsSettle(t *testing.T) {
	m := New("", Actions{})
	m.phase = PhaseStartup

	for _, step := range startupOrder[:3] {
		m = update(m, StartupMsg{Step: step, Status: "connected"})
	}
	if m.phase != PhaseStartup {
		t.Fatal("advanced before every step settled")
	}
	m = update(m, StartupMsg{Step: "events", Status: "failed", Message: "no address"})
	if m.phase != PhaseDashboard {
		t.Fatalf("phase = %s", m.phase)
	}
	if len(m.errors) != 1 {
		t.Fatalf("errors = %d", len(m.errors))
	}
}

func TestQuit(t *testing.T) {
	m := dashboard(Actions{})
	m, c := press(t, m, "q")
	if !m.quitting || c == nil {
		t.Fatal("q did not quit")
	}
}
