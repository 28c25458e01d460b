package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	From string
	To   string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "history <account-id>",
		Short:         "Show an account's event history",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "range end (YYYY-MM-DD, inclusive)")

	return cmd
}

func runHistory(opts *HistoryOptions, accountID string, cmd *cobra.Command) error {
	var from, to time.Time
	var err error
	if opts.From != "" {
		if from, err = time.Parse("2006-01-02", opts.From); err != nil {
			return WrapExitError(ExitCommandError, "invalid --from", err)
		}
	}
	if opts.To != "" {
		if to, err = time.Parse("2006-01-02", opts.To); err != nil {
			return WrapExitError(ExitCommandError, "invalid --to", err)
		}
		// Make the end bound inclusive of the whole day.
		to = to.Add(24*time.Hour - time.Nanosecond)
	}

	a, err := setup(opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close()

	events, err := a.service.QueryHistory(cmd.Context(), accountID, from, to)
	if err != nil {
		return WrapExitError(ExitFailure, "query history", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Emit(events, func(w io.Writer) {
		for _, ev := range events {
			fmt.Fprintf(w, "%4d  %s  %-12s  %10s  %s -> %s  %s\n",
				ev.Seq,
				ev.At.UTC().Format("2006-01-02 15:04:05"),
				ev.Kind,
				ev.Amount.StringFixed(2),
				ev.BalanceBefore.StringFixed(2),
				ev.BalanceAfter.StringFixed(2),
				ev.CausationID)
		}
	})
}
