package reconcile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debtwise/debtwise/internal/alert"
	"github.com/debtwise/debtwise/internal/ledger"
	"github.com/debtwise/debtwise/internal/store"
)

var statementTime = time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func putAccount(t *testing.T, s *store.Store, id, name string) {
	t.Helper()
	limit := decimal.NewFromInt(10000)
	err := s.PutAccount(context.Background(), ledger.Account{
		ID:          id,
		Name:        name,
		Kind:        ledger.AccountRevolving,
		APR:         0.2099,
		CreditLimit: &limit,
		MinPayment:  decimal.NewFromInt(25),
	})
	require.NoError(t, err)
}

func seedBalance(t *testing.T, s *store.Store, accountID string, balance string) {
	t.Helper()
	amt := decimal.RequireFromString(balance)
	_, err := s.AppendFrom(context.Background(), accountID, "", func(tail *ledger.Event) (ledger.Event, error) {
		before := ledger.ExpectedBefore(tail)
		return ledger.Event{
			Kind:          ledger.EventCharge,
			Amount:        amt,
			BalanceBefore: before,
			BalanceAfter:  before.Add(amt),
			CausationID:   "test",
			At:            statementTime.AddDate(0, 0, -1),
		}, nil
	})
	require.NoError(t, err)
}

func testEngine(s *store.Store, opts ...EngineOption) *Engine {
	base := []EngineOption{
		WithIDGenerator(ledger.NewFixedGenerator("r1", "r2", "r3")),
		WithClock(func() time.Time { return statementTime }),
	}
	return NewEngine(s, append(base, opts...)...)
}

func TestReconcile_DriftConverges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	putAccount(t, s, "visa", "Chase Sapphire Visa")
	seedBalance(t, s, "visa", "760.00")

	engine := testEngine(s)
	rec := StatementRecord{
		AccountRef: "visa",
		Balance:    decimal.RequireFromString("760.02"),
		AsOf:       statementTime,
	}

	outcome, err := engine.Reconcile(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdjusted, outcome.Kind)
	assert.Equal(t, "visa", outcome.AccountID)
	assert.Equal(t, "0.02", outcome.Drift.String())

	require.NotNil(t, outcome.Adjustment)
	adj := outcome.Adjustment
	assert.Equal(t, ledger.EventAdjustment, adj.Kind)
	assert.Equal(t, "0.02", adj.Amount.String())
	assert.Equal(t, "760.02", adj.BalanceAfter.String())
	assert.Equal(t, "reconcile/r1", adj.CausationID)

	require.NotNil(t, outcome.Alert)
	assert.Equal(t, "reconcile_drift", outcome.Alert.Kind)
	assert.Equal(t, alert.SeverityInfo, outcome.Alert.Severity, "small drift stays informational")

	// The log converged: a second run finds nothing to correct.
	again, err := engine.Reconcile(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, again.Kind)
	assert.Nil(t, again.Adjustment)

	events, err := s.Replay(ctx, "visa", nil)
	require.NoError(t, err)
	assert.Len(t, events, 2, "re-reconciliation must not append")
}

func TestReconcile_WithinEpsilonIsOK(t *testing.T) {
	s := openTestStore(t)
	putAccount(t, s, "visa", "Chase Sapphire Visa")
	seedBalance(t, s, "visa", "500.00")

	outcome, err := testEngine(s).Reconcile(context.Background(), StatementRecord{
		AccountRef: "visa",
		Balance:    decimal.RequireFromString("500.01"),
		AsOf:       statementTime,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, outcome.Kind)
	assert.Nil(t, outcome.Alert)
}

func TestReconcile_LargeDriftWarns(t *testing.T) {
	s := openTestStore(t)
	putAccount(t, s, "visa", "Chase Sapphire Visa")
	seedBalance(t, s, "visa", "500.00")

	outcome, err := testEngine(s).Reconcile(context.Background(), StatementRecord{
		AccountRef: "visa",
		Balance:    decimal.RequireFromString("425.00"),
		AsOf:       statementTime,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdjusted, outcome.Kind)
	assert.Equal(t, "-75", outcome.Drift.String())
	require.NotNil(t, outcome.Alert)
	assert.Equal(t, alert.SeverityWarning, outcome.Alert.Severity)
}

func TestReconcile_ResolvesByName(t *testing.T) {
	s := openTestStore(t)
	putAccount(t, s, "visa", "Chase Sapphire Visa")
	putAccount(t, s, "mortgage", "Wells Fargo Mortgage")
	seedBalance(t, s, "visa", "100.00")

	outcome, err := testEngine(s).Reconcile(context.Background(), StatementRecord{
		AccountRef: "chase sapphire visa",
		Balance:    decimal.RequireFromString("150.00"),
		AsOf:       statementTime,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAdjusted, outcome.Kind)
	assert.Equal(t, "visa", outcome.AccountID)
	assert.Equal(t, "chase sapphire visa", outcome.Ref)
}

func TestReconcile_AmbiguousNeedsReview(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	putAccount(t, s, "card1", "Chase Freedom Card")
	putAccount(t, s, "card2", "Chase Freedom Cart")

	outcome, err := testEngine(s).Reconcile(ctx, StatementRecord{
		AccountRef: "Chase Freedom Carx",
		Balance:    decimal.NewFromInt(100),
		AsOf:       statementTime,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNeedsReview, outcome.Kind)
	assert.Empty(t, outcome.AccountID)
	assert.Len(t, outcome.Candidates, 2)

	// Nothing may be committed for an unresolved reference.
	for _, id := range []string{"card1", "card2"} {
		events, err := s.Replay(ctx, id, nil)
		require.NoError(t, err)
		assert.Empty(t, events)
	}
}

func TestReconcile_UnknownReference(t *testing.T) {
	s := openTestStore(t)
	putAccount(t, s, "visa", "Chase Sapphire Visa")

	_, err := testEngine(s).Reconcile(context.Background(), StatementRecord{
		AccountRef: "zzzzqqqq",
		Balance:    decimal.NewFromInt(100),
		AsOf:       statementTime,
	})
	assert.True(t, ledger.IsNotFound(err), "got %v", err)
}

func TestReconcileAll_ContinuesPastFailures(t *testing.T) {
	s := openTestStore(t)
	putAccount(t, s, "visa", "Chase Sapphire Visa")
	seedBalance(t, s, "visa", "500.00")

	outcomes, err := testEngine(s).ReconcileAll(context.Background(), []StatementRecord{
		{AccountRef: "zzzzqqqq", Balance: decimal.NewFromInt(1), AsOf: statementTime},
		{AccountRef: "visa", Balance: decimal.RequireFromString("510.00"), AsOf: statementTime},
	})
	require.Error(t, err, "unknown reference must surface")
	require.Len(t, outcomes, 1, "the batch continues past the failure")
	assert.Equal(t, OutcomeAdjusted, outcomes[0].Kind)
}
