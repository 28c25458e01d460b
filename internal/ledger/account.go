package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind identifies the credit facility type.
type AccountKind string

const (
	// AccountRevolving is an unsecured revolving credit facility (credit card).
	AccountRevolving AccountKind = "revolving"
	// AccountHELOC is a home-equity line of credit.
	AccountHELOC AccountKind = "heloc"
	// AccountInstallment is a fixed-term installment loan.
	AccountInstallment AccountKind = "installment"
)

// ValidKinds lists the accepted account kinds.
var ValidKinds = []AccountKind{AccountRevolving, AccountHELOC, AccountInstallment}

// Account holds the metadata for a single credit facility.
//
// Balance is NOT a field here. Balances are derived exclusively by folding
// the event log (see the projection package); account metadata never carries
// state that could diverge from the log.
type Account struct {
	ID   string
	Name string
	Kind AccountKind

	// APR is the annual percentage rate as a fraction (0.2999 = 29.99%).
	APR float64

	// CreditLimit is nil for installment loans (no revolving capacity).
	CreditLimit *decimal.Decimal

	// MinPayment is the contractual minimum monthly payment.
	MinPayment decimal.Decimal

	// PromoExpiry is the end of a promotional rate period, if any.
	PromoExpiry *time.Time
}

// Revolving reports whether the account has drawable capacity.
func (a Account) Revolving() bool {
	return a.Kind == AccountRevolving || a.Kind == AccountHELOC
}

// Available returns the remaining capacity given the current balance.
// Returns zero for accounts without a credit limit or when over limit.
func (a Account) Available(balance decimal.Decimal) decimal.Decimal {
	if a.CreditLimit == nil {
		return decimal.Zero
	}
	avail := a.CreditLimit.Sub(balance)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

// Validate checks the account metadata before registration.
// Violations are rejected before anything touches the log.
func (a Account) Validate() error {
	if a.ID == "" {
		return NewValidationError("account id must not be empty", "")
	}
	if a.Name == "" {
		return NewValidationError("account name must not be empty", a.ID)
	}
	valid := false
	for _, k := range ValidKinds {
		if a.Kind == k {
			valid = true
			break
		}
	}
	if !valid {
		return NewValidationError("unknown account kind "+string(a.Kind), a.ID)
	}
	if a.APR < 0 || a.APR > 1 {
		return NewValidationError("apr must be a fraction in [0,1]", a.ID)
	}
	if a.CreditLimit != nil && a.CreditLimit.IsNegative() {
		return NewValidationError("credit limit must not be negative", a.ID)
	}
	if a.MinPayment.IsNegative() {
		return NewValidationError("minimum payment must not be negative", a.ID)
	}
	return nil
}

// PromoDaysRemaining returns the days until the promotional rate expires,
// or -1 when the account has no promotional period.
func (a Account) PromoDaysRemaining(now time.Time) float64 {
	if a.PromoExpiry == nil {
		return -1
	}
	d := a.PromoExpiry.Sub(now).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}
