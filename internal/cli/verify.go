package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify checkpoints against a full replay",
		Long: `Verify every account's checkpoint against a full replay from
genesis. Divergence means derived state can no longer be trusted and is
reported as a failure; it is never repaired automatically.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.service.Projection().VerifyAll(cmd.Context()); err != nil {
				return WrapExitError(ExitFailure, "verification failed", err)
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(map[string]string{"result": "ok"}, func(w io.Writer) {
				fmt.Fprintln(w, "all checkpoints match full replay")
			})
		},
	}
}

// NewCheckpointCommand creates the checkpoint command.
func NewCheckpointCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint",
		Short: "Write fold checkpoints for all accounts",
		Long: `Write a fold checkpoint for every account so later snapshots can
fold checkpoint+suffix instead of replaying from genesis. Checkpoints
are an optimization only; 'debtwise verify' audits them.`,
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
			accounts, err := a.service.Accounts(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "list accounts", err)
			}
			written := 0
			for _, acct := range accounts {
				cp, err := a.service.Projection().WriteCheckpoint(ctx, acct.ID)
				if err != nil {
					return WrapExitError(ExitFailure, "write checkpoint for "+acct.ID, err)
				}
				if cp != nil {
					written++
				}
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(map[string]int{"written": written}, func(w io.Writer) {
				fmt.Fprintf(w, "%d checkpoint(s) written\n", written)
			})
		},
	}
}
