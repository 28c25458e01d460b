package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validEvent() Event {
	return Event{
		ID:            "ev-1",
		AccountID:     "visa",
		Seq:           1,
		Kind:          EventCharge,
		Amount:        decimal.NewFromFloat(100.50),
		BalanceBefore: decimal.Zero,
		BalanceAfter:  decimal.NewFromFloat(100.50),
		CausationID:   "command/abc",
		At:            time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestEventValidate_OK(t *testing.T) {
	if err := validEvent().Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}
}

func TestEventValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Event)
	}{
		{"empty id", func(e *Event) { e.ID = "" }},
		{"empty account", func(e *Event) { e.AccountID = "" }},
		{"unknown kind", func(e *Event) { e.Kind = "refund" }},
		{"broken arithmetic", func(e *Event) { e.BalanceAfter = decimal.NewFromInt(1) }},
		{"zero timestamp", func(e *Event) { e.At = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validEvent()
			tt.mutate(&ev)
			err := ev.Validate()
			if err == nil {
				t.Fatal("Validate() accepted a malformed event")
			}
			if !IsValidation(err) {
				t.Errorf("error code = %v, want VALIDATION", err)
			}
		})
	}
}

func TestEventFollowsTail(t *testing.T) {
	first := validEvent()

	second := validEvent()
	second.ID = "ev-2"
	second.Seq = 2
	second.BalanceBefore = first.BalanceAfter
	second.BalanceAfter = second.BalanceBefore.Add(second.Amount)

	if !first.FollowsTail(nil) {
		t.Error("first event from zero should follow empty tail")
	}
	if !second.FollowsTail(&first) {
		t.Error("chained event should follow tail")
	}

	broken := second
	broken.BalanceBefore = decimal.NewFromInt(999)
	if broken.FollowsTail(&first) {
		t.Error("mismatched balance_before should not follow tail")
	}

	nonZeroStart := validEvent()
	nonZeroStart.BalanceBefore = decimal.NewFromInt(5)
	nonZeroStart.BalanceAfter = nonZeroStart.BalanceBefore.Add(nonZeroStart.Amount)
	if nonZeroStart.FollowsTail(nil) {
		t.Error("first event must start from a zero balance")
	}
}

func TestExpectedBefore(t *testing.T) {
	if !ExpectedBefore(nil).IsZero() {
		t.Error("empty history should expect a zero starting balance")
	}
	ev := validEvent()
	if !ExpectedBefore(&ev).Equal(ev.BalanceAfter) {
		t.Error("expected balance should be the tail's balance_after")
	}
}
