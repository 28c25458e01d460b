package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/debtwise/debtwise/internal/ledger"
)

// AccountOptions holds flags for the account add command.
type AccountOptions struct {
	*RootOptions
	Name        string
	Kind        string
	APR         float64
	CreditLimit string
	MinPayment  string
	PromoExpiry string
}

// NewAccountCommand creates the account command group.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage account metadata",
	}
	cmd.AddCommand(newAccountAddCommand(rootOpts))
	cmd.AddCommand(newAccountListCommand(rootOpts))
	return cmd
}

func newAccountAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AccountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <account-id>",
		Short: "Register or update an account",
		Long: `Register or update account metadata.

Balances are never set here: they are derived exclusively from the
event log. Use 'debtwise record' or 'debtwise update-balance' to move
a balance.

Example:
  debtwise account add visa-gold --name "Visa Gold" --kind revolving --apr 0.2999 --limit 12000 --min-payment 35`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountAdd(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "revolving", "account kind (revolving|heloc|installment)")
	cmd.Flags().Float64Var(&opts.APR, "apr", 0, "annual percentage rate as a fraction, e.g. 0.2999")
	cmd.Flags().StringVar(&opts.CreditLimit, "limit", "", "credit limit (omit for installment loans)")
	cmd.Flags().StringVar(&opts.MinPayment, "min-payment", "0", "contractual minimum payment")
	cmd.Flags().StringVar(&opts.PromoExpiry, "promo-expiry", "", "promotional rate expiry (YYYY-MM-DD)")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runAccountAdd(opts *AccountOptions, accountID string, cmd *cobra.Command) error {
	acct := ledger.Account{
		ID:   accountID,
		Name: opts.Name,
		Kind: ledger.AccountKind(opts.Kind),
		APR:  opts.APR,
	}

	if opts.CreditLimit != "" {
		limit, err := decimal.NewFromString(opts.CreditLimit)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --limit", err)
		}
		acct.CreditLimit = &limit
	}
	minPayment, err := decimal.NewFromString(opts.MinPayment)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --min-payment", err)
	}
	acct.MinPayment = minPayment
	if opts.PromoExpiry != "" {
		expiry, err := time.Parse("2006-01-02", opts.PromoExpiry)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --promo-expiry", err)
		}
		acct.PromoExpiry = &expiry
	}

	a, err := setup(opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.service.RegisterAccount(cmd.Context(), acct); err != nil {
		return WrapExitError(ExitCommandError, "register account", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Emit(acct, func(w io.Writer) {
		fmt.Fprintf(w, "account %s registered\n", acct.ID)
	})
}

func newAccountListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List registered accounts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			accounts, err := a.service.Accounts(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "list accounts", err)
			}

			f := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return f.Emit(accounts, func(w io.Writer) {
				for _, acct := range accounts {
					limit := "-"
					if acct.CreditLimit != nil {
						limit = acct.CreditLimit.StringFixed(2)
					}
					fmt.Fprintf(w, "%-16s %-12s apr=%.4f limit=%s min=%s  %s\n",
						acct.ID, acct.Kind, acct.APR, limit, acct.MinPayment.StringFixed(2), acct.Name)
				}
			})
		},
	}
}
