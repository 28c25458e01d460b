package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/debtwise/debtwise/internal/reconcile"
)

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <statements.yaml>",
		Short: "Reconcile the ledger against external statements",
		Long: `Reconcile projected balances against an external statement file.

The file is a YAML list of records:

  - account: visa-gold
    balance: 4211.87
    as_of: 2026-08-01T00:00:00Z

Drift beyond epsilon becomes one adjustment event per account plus an
alert. Ambiguous account references are reported for review, never
guessed. Re-running against a reconciled ledger is a no-op.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := loadStatements(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "load statements", err)
			}

			a, err := setup(rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			outcomes, err := a.service.RunReconciliation(cmd.Context(), records)

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if emitErr := f.Emit(outcomes, func(w io.Writer) {
				renderOutcomes(w, outcomes)
			}); emitErr != nil {
				return emitErr
			}

			if err != nil {
				return WrapExitError(ExitFailure, "reconciliation finished with errors", err)
			}
			return nil
		},
	}
}

// loadStatements reads the statement record list from a YAML file.
func loadStatements(path string) ([]reconcile.StatementRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read statements: %w", err)
	}
	var records []reconcile.StatementRecord
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse statements: %w", err)
	}
	return records, nil
}

// renderOutcomes writes the text form of reconciliation outcomes.
func renderOutcomes(w io.Writer, outcomes []reconcile.Outcome) {
	for _, o := range outcomes {
		switch o.Kind {
		case reconcile.OutcomeOK:
			fmt.Fprintf(w, "%s: ok\n", o.AccountID)
		case reconcile.OutcomeAdjusted:
			fmt.Fprintf(w, "%s: adjusted by %s (event %s)\n",
				o.AccountID, o.Drift.StringFixed(2), o.Adjustment.ID)
			if o.Alert != nil {
				fmt.Fprintf(w, "  [%s] %s\n", o.Alert.Severity, o.Alert.Message)
			}
		case reconcile.OutcomeNeedsReview:
			fmt.Fprintf(w, "%q: needs review, candidates:\n", o.Ref)
			for _, c := range o.Candidates {
				fmt.Fprintf(w, "  %s (%s) confidence %.2f\n", c.AccountID, c.Name, c.Confidence)
			}
		}
	}
}
