package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	contractapp "github.com/fd1az/dapp-bridge/business/contract/app"
	"github.com/fd1az/dapp-bridge/business/contract/domain"
	eventdemoDI "github.com/fd1az/dapp-bridge/business/eventdemo/di"
	"github.com/fd1az/dapp-bridge/internal/apperror"
)

var noWait bool

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Submit ping() to the EventDemo contract",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := open(ctx)
		if err != nil {
			return err
		}
		defer r.Close()

		tx, err := eventdemoDI.GetService(r.services()).Ping(ctx)
		if err != nil {
			return err
		}
		return report(ctx, cmd.OutOrStdout(), tx, !noWait)
	},
}

var setMessageCmd = &cobra.Command{
	Use:   "set-message <message>",
	Short: "Submit setMessage(message) to the EventDemo contract",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := open(ctx)
		if err != nil {
			return err
		}
		defer r.Close()

		tx, err := eventdemoDI.GetService(r.services()).SetMessage(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return report(ctx, cmd.OutOrStdout(), tx, !noWait)
	},
}

var readMessageCmd = &cobra.Command{
	Use:   "read-message",
	Short: "Read the message stored in the EventDemo contract",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := open(ctx)
		if err != nil {
			return err
		}
		defer r.Close()

		msg, err := eventdemoDI.GetService(r.services()).Message(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{pingCmd, setMessageCmd, sendSIMCmd} {
		c.Flags().BoolVar(&noWait, "no-wait", false, "Return once the transaction is submitted")
	}
}

// report prints the submitted hash and, when wait is set, the outcome.
func report(ctx context.Context, out io.Writer, tx *contractapp.PendingTransaction, wait bool) error {
	fmt.Fprintf(out, "submitted %s %s\n", tx.Method(), tx.Hash().Hex())
	if !wait {
		return nil
	}

	state, err := tx.Wait(ctx)
	switch {
	case state == domain.TxConfirmed:
		fmt.Fprintf(out, "confirmed in block %s (%s)\n", tx.Receipt().BlockNumber, elapsed(tx))
		return nil
	case state == domain.TxTimedOut:
		fmt.Fprintf(out, "not mined yet; check later with: dappbridge tx-status %s\n", tx.Hash().Hex())
		return err
	case err != nil && apperror.Classify(err) == apperror.OutcomeUnresolved:
		fmt.Fprintf(out, "stopped waiting; check later with: dappbridge tx-status %s\n", tx.Hash().Hex())
		return err
	default:
		return err
	}
}

func elapsed(tx *contractapp.PendingTransaction) time.Duration {
	return tx.ResolvedAt().Sub(tx.SubmittedAt()).Round(time.Millisecond)
}
