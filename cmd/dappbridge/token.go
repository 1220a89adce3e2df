package main

import (
	"fmt"

	"github.com/spf13/cobra"

	tokenDI "github.com/fd1az/dapp-bridge/business/token/di"
	"github.com/fd1az/dapp-bridge/business/token/domain"
	"github.com/fd1az/dapp-bridge/internal/apperror"
)

var balanceCmd = &cobra.Command{
	Use:   "balance [address]",
	Short: "Show the SIM token balance of an address or the connected account",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := open(ctx)
		if err != nil {
			return err
		}
		defer r.Close()

		svc := tokenDI.GetService(r.services())
		if !svc.Configured() {
			return apperror.New(apperror.CodeRequiredField, apperror.WithContext("DAPP_SIM_TOKEN_ADDRESS"))
		}

		var info domain.TokenInfo
		if len(args) == 1 {
			info, err = svc.TokenInfo(ctx, args[0])
		} else {
			info, err = svc.Balance(ctx)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  %s\n", info.Holder.String(), info.String())
		fmt.Fprintf(out, "raw %s (decimals %d)\n", info.Raw, info.Decimals)
		return nil
	},
}

var sendSIMCmd = &cobra.Command{
	Use:   "send-sim <to> <amount>",
	Short: "Transfer SIM tokens from the connected account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		r, err := open(ctx)
		if err != nil {
			return err
		}
		defer r.Close()

		svc := tokenDI.GetService(r.services())
		if !svc.Configured() {
			return apperror.New(apperror.CodeRequiredField, apperror.WithContext("DAPP_SIM_TOKEN_ADDRESS"))
		}

		tx, err := svc.SendTokens(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return report(ctx, cmd.OutOrStdout(), tx, !noWait)
	},
}
