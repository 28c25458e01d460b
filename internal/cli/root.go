package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/debtwise/debtwise/internal/alert"
	"github.com/debtwise/debtwise/internal/command"
	"github.com/debtwise/debtwise/internal/config"
	"github.com/debtwise/debtwise/internal/metrics"
	"github.com/debtwise/debtwise/internal/optimize"
	"github.com/debtwise/debtwise/internal/projection"
	"github.com/debtwise/debtwise/internal/reconcile"
	"github.com/debtwise/debtwise/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // optional config file path
	DBPath  string // overrides the configured database path
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the debtwise CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "debtwise",
		Short: "debtwise - event-sourced interest-arbitrage ledger",
		Long: "debtwise keeps an append-only ledger of credit account events and\n" +
			"derives balance projections, interest-arbitrage opportunities,\n" +
			"payment plans, and reconciliation adjustments from it.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "event log database path")

	cmd.AddCommand(NewAccountCommand(opts))
	cmd.AddCommand(NewRecordCommand(opts))
	cmd.AddCommand(NewUpdateBalanceCommand(opts))
	cmd.AddCommand(NewTransferCommand(opts))
	cmd.AddCommand(NewOptimizeCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewCheckpointCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))
	cmd.AddCommand(NewMetricsCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// app bundles everything a command needs at run time.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *store.Store
	service *command.Service
	metrics *metrics.Collector
}

// close releases the store handle.
func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

// setup loads configuration, opens the event log, and wires the
// engines. Callers must close() the returned app.
func setup(opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}

	level := cfg.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	collector := metrics.NewCollector()
	st, err := store.Open(cfg.DBPath,
		store.WithLogger(logger),
		store.WithMetrics(collector),
		store.WithMaxAttempts(cfg.MaxAttempts),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open event log", err)
	}

	thresholds := alert.DefaultThresholds()
	if cfg.RulesPath != "" {
		thresholds, err = alert.LoadThresholds(cfg.RulesPath)
		if err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, "load alert thresholds", err)
		}
	}

	builder := projection.NewBuilder(st,
		projection.WithCheckpoints(true),
		projection.WithLogger(logger),
		projection.WithMetrics(collector),
	)
	svc := command.New(st,
		command.WithProjection(builder),
		command.WithOptimizer(optimize.NewEngine(
			optimize.WithMinAnnualSavings(decimal.NewFromFloat(cfg.MinAnnualSavings)),
			optimize.WithLogger(logger),
			optimize.WithMetrics(collector),
		)),
		command.WithReconciler(reconcile.NewEngine(st,
			reconcile.WithEpsilon(decimal.NewFromFloat(cfg.Epsilon)),
			reconcile.WithWarnDrift(decimal.NewFromFloat(cfg.WarnDrift)),
			reconcile.WithMatcher(reconcile.NewMatcher(cfg.MatchConfidence)),
			reconcile.WithLogger(logger),
			reconcile.WithMetrics(collector),
		)),
		command.WithAlerts(alert.NewEngine(alert.DefaultRules(thresholds),
			alert.WithLogger(logger),
			alert.WithMetrics(collector),
		)),
		command.WithAnnualIncome(decimal.NewFromFloat(cfg.AnnualIncome)),
		command.WithLogger(logger),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		service: svc,
		metrics: collector,
	}, nil
}
