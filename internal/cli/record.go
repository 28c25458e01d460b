package cli

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/debtwise/debtwise/internal/ledger"
)

// RecordOptions holds flags for the record command.
type RecordOptions struct {
	*RootOptions
	Key string
}

// NewRecordCommand creates the record command.
func NewRecordCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "record <payment|charge> <account-id> <amount>",
		Short: "Record a payment or charge on an account",
		Long: `Record a balance-changing event.

A payment reduces the account balance; a charge increases it. With
--key the command is idempotent: retrying with the same key returns the
originally committed event instead of writing a second one.

Example:
  debtwise record payment visa-gold 250.00 --key pay-2026-08-30`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(opts, args[0], args[1], args[2], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Key, "key", "", "idempotency key")

	return cmd
}

func runRecord(opts *RecordOptions, kind, accountID, amountArg string, cmd *cobra.Command) error {
	amount, err := decimal.NewFromString(amountArg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid amount", err)
	}

	a, err := setup(opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close()

	var ev *ledger.Event
	switch kind {
	case "payment":
		ev, err = a.service.RecordPayment(cmd.Context(), accountID, amount, opts.Key)
	case "charge":
		ev, err = a.service.RecordCharge(cmd.Context(), accountID, amount, opts.Key)
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown record kind %q: must be payment or charge", kind))
	}
	if err != nil {
		return WrapExitError(ExitFailure, "record "+kind, err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Emit(ev, func(w io.Writer) {
		fmt.Fprintf(w, "%s recorded: %s balance %s -> %s (event %s, seq %d)\n",
			kind, ev.AccountID, ev.BalanceBefore.StringFixed(2), ev.BalanceAfter.StringFixed(2), ev.ID, ev.Seq)
	})
}
