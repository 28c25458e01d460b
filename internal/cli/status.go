package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show balances and the current financial phase",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			snap, err := a.service.Projection().Snapshot(ctx, nil)
			if err != nil {
				return WrapExitError(ExitFailure, "build snapshot", err)
			}
			accounts, err := a.service.Accounts(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "list accounts", err)
			}
			ph, err := a.service.Classify(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "classify phase", err)
			}

			type accountStatus struct {
				ID      string `json:"id"`
				Name    string `json:"name"`
				Balance string `json:"balance"`
			}
			statuses := make([]accountStatus, 0, len(accounts))
			for _, acct := range accounts {
				statuses = append(statuses, accountStatus{
					ID:      acct.ID,
					Name:    acct.Name,
					Balance: snap.Balance(acct.ID).StringFixed(2),
				})
			}
			data := map[string]any{
				"phase":      ph,
				"total_debt": snap.TotalDebt().StringFixed(2),
				"accounts":   statuses,
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(data, func(w io.Writer) {
				for _, st := range statuses {
					fmt.Fprintf(w, "%-16s %12s  %s\n", st.ID, st.Balance, st.Name)
				}
				fmt.Fprintf(w, "total debt: %s\n", snap.TotalDebt().StringFixed(2))
				fmt.Fprintf(w, "phase: %s\n", ph)
			})
		},
	}
}
