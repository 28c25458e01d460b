package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCheckpoint_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	putTestAccount(t, s, "visa")

	cp := Checkpoint{
		AccountID: "visa",
		Seq:       42,
		Balance:   decimal.RequireFromString("1234.56"),
		At:        time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := s.PutCheckpoint(ctx, cp); err != nil {
		t.Fatalf("PutCheckpoint() failed: %v", err)
	}

	got, err := s.Checkpoint(ctx, "visa")
	if err != nil {
		t.Fatalf("Checkpoint() failed: %v", err)
	}
	if got == nil {
		t.Fatal("Checkpoint() returned nil")
	}
	if got.Seq != cp.Seq {
		t.Errorf("seq = %d, want %d", got.Seq, cp.Seq)
	}
	if !got.Balance.Equal(cp.Balance) {
		t.Errorf("balance = %s, want %s", got.Balance, cp.Balance)
	}
	if !got.At.Equal(cp.At) {
		t.Errorf("at = %s, want %s", got.At, cp.At)
	}
}

func TestCheckpoint_MissingIsNil(t *testing.T) {
	s := openTestStore(t)
	putTestAccount(t, s, "visa")

	got, err := s.Checkpoint(context.Background(), "visa")
	if err != nil {
		t.Fatalf("Checkpoint() failed: %v", err)
	}
	if got != nil {
		t.Errorf("checkpoint = %+v, want nil", got)
	}
}

func TestCheckpoint_Overwrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	putTestAccount(t, s, "visa")

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, seq := range []int64{1, 2} {
		err := s.PutCheckpoint(ctx, Checkpoint{
			AccountID: "visa",
			Seq:       seq,
			Balance:   decimal.NewFromInt(seq * 100),
			At:        at,
		})
		if err != nil {
			t.Fatalf("PutCheckpoint(seq=%d) failed: %v", seq, err)
		}
	}

	got, err := s.Checkpoint(ctx, "visa")
	if err != nil {
		t.Fatalf("Checkpoint() failed: %v", err)
	}
	if got.Seq != 2 {
		t.Errorf("seq = %d, want 2", got.Seq)
	}
}

func TestDropCheckpoint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	putTestAccount(t, s, "visa")

	err := s.PutCheckpoint(ctx, Checkpoint{
		AccountID: "visa",
		Seq:       1,
		Balance:   decimal.NewFromInt(100),
		At:        time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("PutCheckpoint() failed: %v", err)
	}
	if err := s.DropCheckpoint(ctx, "visa"); err != nil {
		t.Fatalf("DropCheckpoint() failed: %v", err)
	}
	got, err := s.Checkpoint(ctx, "visa")
	if err != nil {
		t.Fatalf("Checkpoint() failed: %v", err)
	}
	if got != nil {
		t.Errorf("checkpoint = %+v, want nil after drop", got)
	}
}
