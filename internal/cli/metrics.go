package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// MetricsOptions holds flags for the metrics command.
type MetricsOptions struct {
	*RootOptions
	Addr string
}

// NewMetricsCommand creates the metrics command.
func NewMetricsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MetricsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve Prometheus metrics over HTTP",
		Long: `Serve the ledger core's Prometheus metrics on /metrics until
interrupted. Intended for long-running embeddings; one-shot commands do
not need it.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.close()

			addr := opts.Addr
			if addr == "" {
				addr = a.cfg.MetricsAddr
			}
			if addr == "" {
				return NewExitError(ExitCommandError, "no metrics address: pass --addr or set metrics_addr")
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", a.metrics.Handler())

			fmt.Fprintf(cmd.OutOrStdout(), "serving metrics on %s/metrics\n", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				return WrapExitError(ExitFailure, "metrics server", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address, e.g. :9137")

	return cmd
}
