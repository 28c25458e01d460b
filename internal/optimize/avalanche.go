package optimize

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/debtwise/debtwise/internal/ledger"
)

// AccountPayment is the allocation for one account, split into the
// contractual minimum portion and the avalanche extra.
type AccountPayment struct {
	AccountID string
	Minimum   decimal.Decimal
	Extra     decimal.Decimal
}

// Total returns the full payment for the account.
func (p AccountPayment) Total() decimal.Decimal {
	return p.Minimum.Add(p.Extra)
}

// UnmetMinimum reports a contractual minimum the available funds could
// not cover.
type UnmetMinimum struct {
	AccountID string
	Required  decimal.Decimal
	Funded    decimal.Decimal
}

// Allocation is the result of an avalanche run. When funds cannot cover
// every minimum, UnmetMinimums lists each shortfall explicitly; the
// caller is never left with a silent partial allocation.
type Allocation struct {
	Funds         decimal.Decimal
	Payments      []AccountPayment
	UnmetMinimums []UnmetMinimum

	// Unallocated is what remains after every balance is cleared.
	Unallocated decimal.Decimal
}

// FullyFunded reports whether every contractual minimum was covered.
func (a Allocation) FullyFunded() bool {
	return len(a.UnmetMinimums) == 0
}

// TotalAllocated sums all payments.
func (a Allocation) TotalAllocated() decimal.Decimal {
	total := decimal.Zero
	for _, p := range a.Payments {
		total = total.Add(p.Total())
	}
	return total
}

// Avalanche allocates funds across accounts with outstanding balances.
//
// Every account first receives its contractual minimum (capped by its
// balance). Remaining funds go entirely to the highest-rate account
// until its balance is cleared, then cascade to the next. Accounts are
// ordered by APR descending, ties by id for determinism.
func Avalanche(funds decimal.Decimal, accounts []ledger.Account, balances map[string]decimal.Decimal) Allocation {
	alloc := Allocation{Funds: funds}

	carrying := make([]ledger.Account, 0, len(accounts))
	for _, acct := range accounts {
		if balances[acct.ID].Sign() > 0 {
			carrying = append(carrying, acct)
		}
	}
	sort.Slice(carrying, func(i, j int) bool {
		if carrying[i].APR != carrying[j].APR {
			return carrying[i].APR > carrying[j].APR
		}
		return carrying[i].ID < carrying[j].ID
	})

	remaining := funds
	payments := make([]AccountPayment, len(carrying))

	// Pass 1: contractual minimums, in rate order. A shortfall is
	// reported per account, not silently spread around.
	for i, acct := range carrying {
		required := decimal.Min(acct.MinPayment, balances[acct.ID])
		funded := decimal.Min(required, remaining)
		if funded.IsNegative() {
			funded = decimal.Zero
		}
		remaining = remaining.Sub(funded)

		payments[i] = AccountPayment{AccountID: acct.ID, Minimum: funded}
		if funded.LessThan(required) {
			alloc.UnmetMinimums = append(alloc.UnmetMinimums, UnmetMinimum{
				AccountID: acct.ID,
				Required:  required,
				Funded:    funded,
			})
		}
	}

	// Pass 2: cascade the remainder, highest rate first.
	for i, acct := range carrying {
		if remaining.Sign() <= 0 {
			break
		}
		headroom := balances[acct.ID].Sub(payments[i].Minimum)
		if headroom.Sign() <= 0 {
			continue
		}
		extra := decimal.Min(remaining, headroom)
		payments[i].Extra = extra
		remaining = remaining.Sub(extra)
	}

	alloc.Payments = payments
	alloc.Unallocated = remaining
	return alloc
}
