package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind identifies the balance-changing operation an event records.
type EventKind string

const (
	EventCharge      EventKind = "charge"
	EventPayment     EventKind = "payment"
	EventTransferOut EventKind = "transfer_out"
	EventTransferIn  EventKind = "transfer_in"
	EventAdjustment  EventKind = "adjustment"
)

// ValidEventKinds lists the accepted event kinds.
var ValidEventKinds = []EventKind{
	EventCharge, EventPayment, EventTransferOut, EventTransferIn, EventAdjustment,
}

// Event is one immutable fact in an account's history.
//
// Events are never updated or deleted. Corrections are new adjustment
// events appended after the fact. Amount is signed: positive increases
// the debt balance, negative decreases it.
type Event struct {
	// ID is a UUIDv7, time-sortable across accounts.
	ID string

	// AccountID names the account this event belongs to.
	AccountID string

	// Seq is the per-account sequence number, strictly increasing from 1.
	// Ordering within an account is by Seq, never by wall clock.
	Seq int64

	Kind   EventKind
	Amount decimal.Decimal

	// BalanceBefore/BalanceAfter chain adjacent events together:
	// BalanceAfter of event n must equal BalanceBefore of event n+1.
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal

	// CausationID references the command or reconciliation action that
	// produced this event.
	CausationID string

	At time.Time
}

// Validate checks the event in isolation, before chain validation.
func (e Event) Validate() error {
	if e.ID == "" {
		return NewValidationError("event id must not be empty", e.AccountID)
	}
	if e.AccountID == "" {
		return NewValidationError("event account id must not be empty", "")
	}
	valid := false
	for _, k := range ValidEventKinds {
		if e.Kind == k {
			valid = true
			break
		}
	}
	if !valid {
		return NewValidationError("unknown event kind "+string(e.Kind), e.AccountID)
	}
	if !e.BalanceBefore.Add(e.Amount).Equal(e.BalanceAfter) {
		return NewValidationError("balance_after must equal balance_before + amount", e.AccountID)
	}
	if e.At.IsZero() {
		return NewValidationError("event timestamp must be set", e.AccountID)
	}
	return nil
}

// FollowsTail reports whether this event chains correctly onto tail.
// A nil tail means the account history is empty, in which case the event
// must start from a zero balance.
func (e Event) FollowsTail(tail *Event) bool {
	if tail == nil {
		return e.BalanceBefore.IsZero()
	}
	return e.BalanceBefore.Equal(tail.BalanceAfter)
}

// ExpectedBefore returns the balance a new event must start from given
// the current tail.
func ExpectedBefore(tail *Event) decimal.Decimal {
	if tail == nil {
		return decimal.Zero
	}
	return tail.BalanceAfter
}
