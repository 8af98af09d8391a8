package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewFundCommand creates the fund command.
func NewFundCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fund <address> <lamports>",
		Short: "Credit lamports to an address through a faucet entry",
		Long: `Append an unsigned faucet entry crediting lamports to address,
creating a wallet account if none exists. Faucet entries are the only
source of lamports; principals need them to pay storage deposits.

Examples:
  ledgermsg fund <address> 1000000000`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			to, err := parseKey("address", args[0])
			if err != nil {
				return err
			}
			lamports, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid lamports", err)
			}

			h, err := openLedger(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer h.Close()

			out := rootOpts.formatter(cmd)
			receipt, err := h.engine.Fund(ctx, to, lamports)
			if err != nil {
				return reportReject(out, err)
			}
			return reportReceipt(out, receipt)
		},
	}
}
