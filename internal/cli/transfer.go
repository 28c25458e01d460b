package cli

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// TransferOptions holds flags for the transfer command.
type TransferOptions struct {
	*RootOptions
	Key string
}

// NewTransferCommand creates the transfer command.
func NewTransferCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransferOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "transfer <from-account> <to-account> <amount>",
		Short: "Execute a balance transfer between accounts",
		Long: `Execute a balance transfer.

Moves debt from the source to the destination as two linked events
sharing one causation id: a transfer-out reducing the source balance
and a transfer-in increasing the destination balance. Typically used
to act on an opportunity reported by 'debtwise optimize'.

The two legs commit separately, so --key is required: retrying a
transfer that failed between legs under the same key replays the
committed leg instead of debiting the source twice.

Example:
  debtwise transfer visa-gold heloc 8331.82 --key xfer-2026-08-30`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(opts, args[0], args[1], args[2], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Key, "key", "", "idempotency key (required)")
	cmd.MarkFlagRequired("key")

	return cmd
}

func runTransfer(opts *TransferOptions, fromID, toID, amountArg string, cmd *cobra.Command) error {
	amount, err := decimal.NewFromString(amountArg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid amount", err)
	}

	a, err := setup(opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close()

	out, in, err := a.service.ExecuteTransfer(cmd.Context(), fromID, toID, amount, opts.Key)
	if err != nil {
		return WrapExitError(ExitFailure, "execute transfer", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Emit(map[string]any{"out": out, "in": in}, func(w io.Writer) {
		fmt.Fprintf(w, "transferred %s: %s %s -> %s, %s %s -> %s\n",
			amount.StringFixed(2),
			out.AccountID, out.BalanceBefore.StringFixed(2), out.BalanceAfter.StringFixed(2),
			in.AccountID, in.BalanceBefore.StringFixed(2), in.BalanceAfter.StringFixed(2))
	})
}
