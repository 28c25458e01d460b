package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/debtwise/debtwise/internal/ledger"
)

func TestAppendFrom_ChainsBalances(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	putTestAccount(t, s, "visa")

	amounts := []int64{500, 250, -100}
	for i, amt := range amounts {
		ev, err := s.AppendFrom(ctx, "visa", "", chargeBuild(decimal.NewFromInt(amt)))
		if err != nil {
			t.Fatalf("AppendFrom #%d failed: %v", i+1, err)
		}
		if ev.Seq != int64(i+1) {
			t.Errorf("event #%d seq = %d, want %d", i+1, ev.Seq, i+1)
		}
		if ev.ID == "" {
			t.Errorf("event #%d has empty id", i+1)
		}
	}

	tail, err := s.Tail(ctx, "visa")
	if err != nil {
		t.Fatalf("Tail() failed: %v", err)
	}
	if want := decimal.NewFromInt(650); !tail.BalanceAfter.Equal(want) {
		t.Errorf("tail balance = %s, want %s", tail.BalanceAfter, want)
	}
}

func TestAppend_RejectsBrokenChain(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	putTestAccount(t, s, "visa")

	if _, err := s.AppendFrom(ctx, "visa", "", chargeBuild(decimal.NewFromInt(500))); err != nil {
		t.Fatalf("seed append failed: %v", err)
	}

	// BalanceBefore disagrees with the tail's BalanceAfter of 500.
	amt := decimal.NewFromInt(100)
	_, err := s.Append(ctx, ledger.Event{
		AccountID:     "visa",
		Kind:          ledger.EventCharge,
		Amount:        amt,
		BalanceBefore: decimal.NewFromInt(480),
		BalanceAfter:  decimal.NewFromInt(580),
		CausationID:   "test",
		At:            time.Now().UTC(),
	}, "")
	if !ledger.IsConsistency(err) {
		t.Fatalf("expected CONSISTENCY error, got %v", err)
	}

	// The rejected event must not have been persisted.
	events, err := s.Replay(ctx, "visa", nil)
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("event count after rejection = %d, want 1", len(events))
	}
}

func TestAppend_RejectsUnknownAccount(t *testing.T) {
	s := openTestStore(t)
	_, err := s.AppendFrom(context.Background(), "ghost", "", chargeBuild(decimal.NewFromInt(10)))
	if !ledger.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND error, got %v", err)
	}
}

func TestAppend_RejectsInvalidEvent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	putTestAccount(t, s, "visa")

	// after != before + amount.
	_, err := s.Append(ctx, ledger.Event{
		AccountID:     "visa",
		Kind:          ledger.EventCharge,
		Amount:        decimal.NewFromInt(100),
		BalanceBefore: decimal.Zero,
		BalanceAfter:  decimal.NewFromInt(99),
		CausationID:   "test",
		At:            time.Now().UTC(),
	}, "")
	if !ledger.IsValidation(err) {
		t.Fatalf("expected VALIDATION error, got %v", err)
	}
}

func TestAppend_IdempotencyKeyReturnsPrior(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	putTestAccount(t, s, "visa")

	first, err := s.AppendFrom(ctx, "visa", "cmd-1", chargeBuild(decimal.NewFromInt(500)))
	if err != nil {
		t.Fatalf("first append failed: %v", err)
	}
	second, err := s.AppendFrom(ctx, "visa", "cmd-1", chargeBuild(decimal.NewFromInt(500)))
	if err != nil {
		t.Fatalf("replayed append failed: %v", err)
	}
	if second.ID != first.ID || second.Seq != first.Seq {
		t.Errorf("replay returned (%s, %d), want prior event (%s, %d)",
			second.ID, second.Seq, first.ID, first.Seq)
	}

	events, err := s.Replay(ctx, "visa", nil)
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("event count = %d, want 1", len(events))
	}
}

func TestAppendFrom_ConcurrentSameAccount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	putTestAccount(t, s, "visa")

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.AppendFrom(ctx, "visa", fmt.Sprintf("key-%d", i),
				chargeBuild(decimal.NewFromInt(10)))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent append #%d failed: %v", i, err)
		}
	}

	events, err := s.Replay(ctx, "visa", nil)
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	if len(events) != n {
		t.Fatalf("event count = %d, want %d", len(events), n)
	}
	for i, ev := range events {
		if ev.Seq != int64(i+1) {
			t.Errorf("events[%d].Seq = %d, want %d", i, ev.Seq, i+1)
		}
		if i > 0 && !events[i-1].BalanceAfter.Equal(ev.BalanceBefore) {
			t.Errorf("chain break at seq %d: %s != %s",
				ev.Seq, events[i-1].BalanceAfter, ev.BalanceBefore)
		}
	}
	tail, err := s.Tail(ctx, "visa")
	if err != nil {
		t.Fatalf("Tail() failed: %v", err)
	}
	if want := decimal.NewFromInt(10 * n); !tail.BalanceAfter.Equal(want) {
		t.Errorf("final balance = %s, want %s", tail.BalanceAfter, want)
	}
}

func TestAppendFrom_IndependentAccounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	putTestAccount(t, s, "visa")
	putTestAccount(t, s, "amex")

	if _, err := s.AppendFrom(ctx, "visa", "", chargeBuild(decimal.NewFromInt(100))); err != nil {
		t.Fatalf("visa append failed: %v", err)
	}
	ev, err := s.AppendFrom(ctx, "amex", "", chargeBuild(decimal.NewFromInt(200)))
	if err != nil {
		t.Fatalf("amex append failed: %v", err)
	}
	if ev.Seq != 1 {
		t.Errorf("amex seq = %d, want 1 (sequences are per account)", ev.Seq)
	}
	if !ev.BalanceBefore.IsZero() {
		t.Errorf("amex balance_before = %s, want 0", ev.BalanceBefore)
	}
}
