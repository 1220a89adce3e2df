package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	contractapp "github.com/fd1az/dapp-bridge/business/contract/app"
	contractDI "github.com/fd1az/dapp-bridge/business/contract/di"
	eventdemoapp "github.com/fd1az/dapp-bridge/business/eventdemo/app"
	eventdemoDI "github.com/fd1az/dapp-bridge/business/eventdemo/di"
	"github.com/fd1az/dapp-bridge/business/eventdemo/domain"
	eventsDI "github.com/fd1az/dapp-bridge/business/events/di"
	tokenapp "github.com/fd1az/dapp-bridge/business/token/app"
	tokenDI "github.com/fd1az/dapp-bridge/business/token/di"
	walletapp "github.com/fd1az/dapp-bridge/business/wallet/app"
	walletDI "github.com/fd1az/dapp-bridge/business/wallet/di"
	walletdomain "github.com/fd1az/dapp-bridge/business/wallet/domain"
	"github.com/fd1az/dapp-bridge/pkg/ui"
)

var cliMode bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow ActionLogged events and drive the EventDemo contract",
	Long: `Open the dashboard for the EventDemo contract: connect a wallet, send
ping() and setMessage(), read the stored message and follow ActionLogged
events as they are mined. With --cli the events are logged instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cliMode {
			return runCLI(cmd.Context())
		}
		return runTUI(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().BoolVar(&cliMode, "cli", false, "Log events instead of opening the dashboard")
}

func runCLI(ctx context.Context) error {
	r, err := open(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	demo := eventdemoDI.GetService(r.services())
	err = demo.WatchActions(ctx, func(a domain.Action) {
		r.log.Info(ctx, "ActionLogged",
			"block", a.Block,
			"log_index", a.LogIndex,
			"user", a.User.Hex(),
			"message", a.Message,
			"emitted_at", a.Timestamp.Format(time.RFC3339))
	})
	if err != nil {
		return err
	}

	r.log.Info(ctx, "watching ActionLogged events", "contract", demo.Address())
	<-ctx.Done()
	r.log.Info(ctx, "shutting down")
	return nil
}

// liveServices are the dependencies the dashboard actions use once modules start.
type liveServices struct {
	session  *walletapp.Session
	demo     *eventdemoapp.Service
	token    *tokenapp.Service
	pipeline *contractapp.Pipeline
}

func runTUI(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	r, err := setup(ctx, true)
	if err != nil {
		return err
	}
	defer r.Close()

	var live atomic.Pointer[liveServices]
	model := ui.New(r.cfg.Contract.EventDemoAddress, dashboardActions(ctx, &live))

	// Channel to receive the welcome-complete signal
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	errCh := make(chan error, 1)
	go func() {
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}
		errCh <- startDashboard(ctx, r, &live)
	}()

	if err := ui.Run(model); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	cancel()

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// startDashboard runs the startup steps, reporting each to the dashboard,
// then feeds it node and filter state until ctx is done.
func startDashboard(ctx context.Context, r *runtime, live *atomic.Pointer[liveServices]) error {
	steps := []string{"config", "ethereum", "wallet", "events"}
	fail := func(from int, err error) error {
		for _, s := range steps[from:] {
			ui.Send(ui.StartupMsg{Step: s, Status: "failed", Message: err.Error()})
		}
		return err
	}

	ui.Send(ui.StartupMsg{Step: "config", Status: "connected"})

	ui.Send(ui.StartupMsg{Step: "ethereum", Status: "connecting"})
	if err := r.connect(ctx); err != nil {
		return fail(1, err)
	}
	ui.Send(ui.StartupMsg{Step: "ethereum", Status: "connected"})

	ui.Send(ui.StartupMsg{Step: "wallet", Status: "connecting"})
	if err := r.start(ctx); err != nil {
		return fail(2, err)
	}
	sr := r.services()
	svc := &liveServices{
		session:  walletDI.GetSession(sr),
		demo:     eventdemoDI.GetService(sr),
		token:    tokenDI.GetService(sr),
		pipeline: contractDI.GetPipeline(sr),
	}
	svc.session.OnStatusChange(func(s walletdomain.Status) {
		ui.Send(ui.WalletMsg{Status: s})
	})
	svc.pipeline.OnResolved(func(tx *contractapp.PendingTransaction) {
		ui.Send(txMsg(tx))
	})
	live.Store(svc)
	ui.Send(ui.WalletMsg{Status: svc.session.Status()})
	ui.Send(ui.StartupMsg{Step: "wallet", Status: "connected"})

	ui.Send(ui.StartupMsg{Step: "events", Status: "connecting"})
	err := svc.demo.WatchActions(ctx, func(a domain.Action) {
		ui.Send(ui.ActionMsg{Action: a})
	})
	if err != nil {
		return fail(3, err)
	}
	ui.Send(ui.StartupMsg{Step: "events", Status: "connected"})

	pollNode(ctx, r, svc.demo.Address())
	return nil
}

// pollNode reports head block, latency and feed state every few seconds.
func pollNode(ctx context.Context, r *runtime, contractAddr string) {
	client := r.app.EthClient()
	reconciler := eventsDI.GetReconciler(r.services())

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		start := time.Now()
		block, err := client.BlockNumber(ctx)
		if ctx.Err() != nil {
			return
		}
		ui.Send(ui.NodeMsg{Block: block, Latency: time.Since(start), Err: err})
		ui.Send(ui.FeedStateMsg{State: string(reconciler.State(contractAddr, domain.EventAction))})

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// dashboardActions binds the dashboard keys to the services once they are live.
func dashboardActions(ctx context.Context, live *atomic.Pointer[liveServices]) ui.Actions {
	with := func(fn func(*liveServices) tea.Msg) tea.Cmd {
		return func() tea.Msg {
			svc := live.Load()
			if svc == nil {
				return ui.LogMsg{Level: "warn", Message: "still starting up"}
			}
			return fn(svc)
		}
	}
	submitted := func(tx *contractapp.PendingTransaction, err error) tea.Msg {
		if err != nil {
			return ui.ErrorMsg{Error: err}
		}
		return txMsg(tx)
	}

	return ui.Actions{
		Connect: with(func(s *liveServices) tea.Msg {
			if _, err := s.session.EnsureConnected(ctx); err != nil {
				return ui.ErrorMsg{Error: err}
			}
			return ui.WalletMsg{Status: s.session.Status()}
		}),
		Ping: with(func(s *liveServices) tea.Msg {
			return submitted(s.demo.Ping(ctx))
		}),
		SetMessage: func(msg string) tea.Cmd {
			return with(func(s *liveServices) tea.Msg {
				return submitted(s.demo.SetMessage(ctx, msg))
			})
		},
		ReadMessage: with(func(s *liveServices) tea.Msg {
			msg, err := s.demo.Message(ctx)
			if err != nil {
				return ui.ErrorMsg{Error: err}
			}
			return ui.MessageMsg{Message: msg}
		}),
		Refresh: with(func(s *liveServices) tea.Msg {
			if err := s.demo.Refresh(ctx); err != nil {
				return ui.ErrorMsg{Error: err}
			}
			return ui.LogMsg{Level: "info", Message: "event feed refreshed"}
		}),
		Balance: with(func(s *liveServices) tea.Msg {
			if !s.token.Configured() {
				return ui.LogMsg{Level: "warn", Message: "no SIM token configured"}
			}
			info, err := s.token.Balance(ctx)
			if err != nil {
				return ui.ErrorMsg{Error: err}
			}
			return ui.BalanceMsg{Info: info}
		}),
	}
}

func txMsg(tx *contractapp.PendingTransaction) ui.TxMsg {
	msg := ui.TxMsg{
		Hash:   tx.Hash(),
		Method: tx.Method(),
		State:  tx.State(),
		Err:    tx.Err(),
	}
	if receipt := tx.Receipt(); receipt != nil && receipt.BlockNumber != nil {
		msg.Block = receipt.BlockNumber.Uint64()
	}
	return msg
}
