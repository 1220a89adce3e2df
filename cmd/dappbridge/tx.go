package main

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	contractDI "github.com/fd1az/dapp-bridge/business/contract/di"
	"github.com/fd1az/dapp-bridge/internal/apperror"
)

var txStatusCmd = &cobra.Command{
	Use:   "tx-status <hash>",
	Short: "Show a transaction's state, re-checking the node when unresolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := parseHash(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		r, err := open(ctx)
		if err != nil {
			return err
		}
		defer r.Close()

		s, err := contractDI.GetPipeline(r.services()).Lookup(ctx, hash)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "hash      %s\n", s.Hash.Hex())
		fmt.Fprintf(out, "state     %s\n", s.State)
		if s.Method != "" {
			fmt.Fprintf(out, "method    %s on %s\n", s.Method, s.Contract)
		}
		if !s.SubmittedAt.IsZero() {
			fmt.Fprintf(out, "submitted %s\n", s.SubmittedAt.Local().Format(time.RFC3339))
		}
		if s.BlockNumber > 0 {
			fmt.Fprintf(out, "block     %d\n", s.BlockNumber)
		}
		if s.Error != "" {
			fmt.Fprintf(out, "error     %s\n", s.Error)
		}
		return nil
	},
}

func parseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("hash must be 0x followed by 64 hex digits"))
	}
	return common.BytesToHash(b), nil
}
