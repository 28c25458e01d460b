package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validAccount() Account {
	limit := decimal.NewFromInt(12000)
	return Account{
		ID:          "visa",
		Name:        "Visa Gold",
		Kind:        AccountRevolving,
		APR:         0.2999,
		CreditLimit: &limit,
		MinPayment:  decimal.NewFromInt(35),
	}
}

func TestAccountValidate(t *testing.T) {
	if err := validAccount().Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Account)
	}{
		{"empty id", func(a *Account) { a.ID = "" }},
		{"empty name", func(a *Account) { a.Name = "" }},
		{"unknown kind", func(a *Account) { a.Kind = "mortgage" }},
		{"negative apr", func(a *Account) { a.APR = -0.1 }},
		{"apr above one", func(a *Account) { a.APR = 29.99 }},
		{"negative limit", func(a *Account) {
			neg := decimal.NewFromInt(-1)
			a.CreditLimit = &neg
		}},
		{"negative minimum", func(a *Account) { a.MinPayment = decimal.NewFromInt(-5) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct := validAccount()
			tt.mutate(&acct)
			err := acct.Validate()
			if err == nil {
				t.Fatal("Validate() accepted malformed metadata")
			}
			if !IsValidation(err) {
				t.Errorf("error code = %v, want VALIDATION", err)
			}
		})
	}
}

func TestAccountAvailable(t *testing.T) {
	acct := validAccount()

	avail := acct.Available(decimal.NewFromInt(2000))
	if !avail.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("Available = %s, want 10000", avail)
	}

	// Over limit clamps to zero.
	if !acct.Available(decimal.NewFromInt(13000)).IsZero() {
		t.Error("Available over limit should be zero")
	}

	acct.CreditLimit = nil
	if !acct.Available(decimal.Zero).IsZero() {
		t.Error("Available without a limit should be zero")
	}
}

func TestAccountPromoDaysRemaining(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	acct := validAccount()

	if d := acct.PromoDaysRemaining(now); d != -1 {
		t.Errorf("no promo period should report -1, got %v", d)
	}

	expiry := now.Add(48 * time.Hour)
	acct.PromoExpiry = &expiry
	if d := acct.PromoDaysRemaining(now); d != 2 {
		t.Errorf("PromoDaysRemaining = %v, want 2", d)
	}

	past := now.Add(-24 * time.Hour)
	acct.PromoExpiry = &past
	if d := acct.PromoDaysRemaining(now); d != 0 {
		t.Errorf("expired promo should report 0, got %v", d)
	}
}
