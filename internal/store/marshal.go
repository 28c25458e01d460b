package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/debtwise/debtwise/internal/ledger"
)

// timeLayout is a fixed-width RFC 3339 form. Timestamps live in TEXT
// columns the queries compare lexicographically, so every encoded value
// must have the same precision.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// selectEventColumns is the canonical column list for event scans.
// Keep in sync with scanEvent.
const selectEventColumns = `
	SELECT id, account_id, seq, kind, amount, balance_before, balance_after, causation_id, at
`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanOneEvent scans a single event row.
func scanOneEvent(row rowScanner) (*ledger.Event, error) {
	var (
		ev                    ledger.Event
		kind                  string
		amount, before, after string
		at                    string
	)
	err := row.Scan(&ev.ID, &ev.AccountID, &ev.Seq, &kind, &amount, &before, &after, &ev.CausationID, &at)
	if err != nil {
		return nil, err
	}

	ev.Kind = ledger.EventKind(kind)
	if ev.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("decode amount %q: %w", amount, err)
	}
	if ev.BalanceBefore, err = decimal.NewFromString(before); err != nil {
		return nil, fmt.Errorf("decode balance_before %q: %w", before, err)
	}
	if ev.BalanceAfter, err = decimal.NewFromString(after); err != nil {
		return nil, fmt.Errorf("decode balance_after %q: %w", after, err)
	}
	if ev.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
		return nil, fmt.Errorf("decode timestamp %q: %w", at, err)
	}
	return &ev, nil
}

// scanAccount scans a single account row.
func scanAccount(row rowScanner) (*ledger.Account, error) {
	var (
		acct        ledger.Account
		kind        string
		creditLimit sql.NullString
		minPayment  string
		promoExpiry sql.NullString
	)
	err := row.Scan(&acct.ID, &acct.Name, &kind, &acct.APR, &creditLimit, &minPayment, &promoExpiry)
	if err != nil {
		return nil, err
	}

	acct.Kind = ledger.AccountKind(kind)
	if creditLimit.Valid {
		limit, err := decimal.NewFromString(creditLimit.String)
		if err != nil {
			return nil, fmt.Errorf("decode credit_limit %q: %w", creditLimit.String, err)
		}
		acct.CreditLimit = &limit
	}
	if acct.MinPayment, err = decimal.NewFromString(minPayment); err != nil {
		return nil, fmt.Errorf("decode min_payment %q: %w", minPayment, err)
	}
	if promoExpiry.Valid {
		t, err := time.Parse(time.RFC3339Nano, promoExpiry.String)
		if err != nil {
			return nil, fmt.Errorf("decode promo_expiry %q: %w", promoExpiry.String, err)
		}
		acct.PromoExpiry = &t
	}
	return &acct, nil
}

// encodeNullDecimal encodes an optional decimal as a nullable TEXT column.
func encodeNullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// encodeNullTime encodes an optional timestamp as a nullable TEXT column.
func encodeNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

// encodeNullString encodes "" as NULL so the partial unique index on
// idempotency keys only applies to supplied keys.
func encodeNullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
