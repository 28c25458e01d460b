package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/debtwise/debtwise/internal/command"
)

// NewOptimizeCommand creates the optimize command.
func NewOptimizeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Discover interest-arbitrage opportunities",
		Long: `Build a fresh snapshot from the event log, discover balance
transfers that reduce total interest cost, classify the financial
phase, and run an alert cycle over the results.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.service.RequestOptimization(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "optimize", err)
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(report, func(w io.Writer) {
				renderReport(w, report)
			})
		},
	}
}

// renderReport writes the text form of an optimization report.
func renderReport(w io.Writer, report *command.Report) {
	fmt.Fprintf(w, "total debt: %s\n", report.TotalDebt.StringFixed(2))
	fmt.Fprintf(w, "phase: %s\n", report.Phase)

	if len(report.Opportunities) == 0 {
		fmt.Fprintln(w, "no arbitrage opportunities above the significance threshold")
	} else {
		fmt.Fprintf(w, "opportunities (%d):\n", len(report.Opportunities))
		for _, opp := range report.Opportunities {
			fmt.Fprintf(w, "  %s -> %s  transfer %s  saves %s/mo (%s/yr)  risk %.2f\n",
				opp.From, opp.To,
				opp.Transfer.StringFixed(2),
				opp.MonthlySavings.StringFixed(2),
				opp.AnnualSavings.StringFixed(2),
				opp.Risk)
		}
	}

	if len(report.Alerts) > 0 {
		fmt.Fprintf(w, "alerts (%d):\n", len(report.Alerts))
		for _, al := range report.Alerts {
			fmt.Fprintf(w, "  [%s] %s: %s\n", al.Severity, al.Kind, al.Message)
		}
	}
}
