package cli

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/debtwise/debtwise/internal/optimize"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <funds>",
		Short: "Compute an avalanche payment allocation",
		Long: `Allocate disposable funds across accounts: contractual minimums
first, then everything remaining to the highest-rate balance, cascading
down. Minimums the funds cannot cover are reported explicitly.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			funds, err := decimal.NewFromString(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid funds", err)
			}

			a, err := setup(rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			alloc, err := a.service.PlanPayments(cmd.Context(), funds)
			if err != nil {
				return WrapExitError(ExitFailure, "plan payments", err)
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if err := f.Emit(alloc, func(w io.Writer) {
				renderAllocation(w, alloc)
			}); err != nil {
				return err
			}

			// A shortfall is a failure the caller must notice, not a
			// silent partial allocation.
			if !alloc.FullyFunded() {
				return NewExitError(ExitFailure, "available funds do not cover all contractual minimums")
			}
			return nil
		},
	}
}

// renderAllocation writes the text form of an avalanche allocation.
func renderAllocation(w io.Writer, alloc optimize.Allocation) {
	fmt.Fprintf(w, "funds: %s\n", alloc.Funds.StringFixed(2))
	for _, p := range alloc.Payments {
		fmt.Fprintf(w, "  %-16s min %s  extra %s  total %s\n",
			p.AccountID, p.Minimum.StringFixed(2), p.Extra.StringFixed(2), p.Total().StringFixed(2))
	}
	for _, um := range alloc.UnmetMinimums {
		fmt.Fprintf(w, "  UNMET MINIMUM %s: required %s, funded %s\n",
			um.AccountID, um.Required.StringFixed(2), um.Funded.StringFixed(2))
	}
	if alloc.Unallocated.Sign() > 0 {
		fmt.Fprintf(w, "  unallocated: %s\n", alloc.Unallocated.StringFixed(2))
	}
}
