package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewBackupCommand creates the backup command.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <path>",
		Short: "Write a consistent backup of the event log",
		Long: `Write a frozen, consistent copy of the event log.

The event log is the sole unit of backup: the copy is a consistent
prefix with no mid-append captures, and replaying it reproduces the
snapshot at backup time exactly.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.BackupTo(cmd.Context(), args[0]); err != nil {
				return WrapExitError(ExitFailure, "backup", err)
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(map[string]string{"path": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "backup written to %s\n", args[0])
			})
		},
	}
}
