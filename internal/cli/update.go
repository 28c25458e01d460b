package cli

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// UpdateBalanceOptions holds flags for the update-balance command.
type UpdateBalanceOptions struct {
	*RootOptions
	Key string
}

// NewUpdateBalanceCommand creates the update-balance command.
func NewUpdateBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateBalanceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update-balance <account-id> <target>",
		Short: "Converge an account to a target balance",
		Long: `Converge an account to a target balance.

The signed difference between the current projected balance and the
target is committed as a single adjustment event. When the account is
already at the target, nothing is written.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdateBalance(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Key, "key", "", "idempotency key")

	return cmd
}

func runUpdateBalance(opts *UpdateBalanceOptions, accountID, targetArg string, cmd *cobra.Command) error {
	target, err := decimal.NewFromString(targetArg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid target balance", err)
	}

	a, err := setup(opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close()

	ev, err := a.service.UpdateBalance(cmd.Context(), accountID, target, opts.Key)
	if err != nil {
		return WrapExitError(ExitFailure, "update balance", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if ev == nil {
		return f.Emit(map[string]string{"result": "no-op"}, func(w io.Writer) {
			fmt.Fprintf(w, "%s already at %s, nothing to do\n", accountID, target.StringFixed(2))
		})
	}
	return f.Emit(ev, func(w io.Writer) {
		fmt.Fprintf(w, "adjusted %s by %s: %s -> %s (event %s)\n",
			ev.AccountID, ev.Amount.StringFixed(2), ev.BalanceBefore.StringFixed(2), ev.BalanceAfter.StringFixed(2), ev.ID)
	})
}
