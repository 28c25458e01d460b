package command

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debtwise/debtwise/internal/ledger"
	"github.com/debtwise/debtwise/internal/phase"
	"github.com/debtwise/debtwise/internal/store"
)

var commandTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	base := []Option{
		WithIDGenerator(ledger.NewFixedGenerator("c1", "c2", "c3", "c4", "c5")),
		WithClock(func() time.Time { return commandTime }),
		WithAnnualIncome(decimal.NewFromInt(60000)),
	}
	return New(st, append(base, opts...)...)
}

func registerAccount(t *testing.T, svc *Service, id string, apr float64, limit int64) {
	t.Helper()
	l := decimal.NewFromInt(limit)
	err := svc.RegisterAccount(context.Background(), ledger.Account{
		ID:          id,
		Name:        "Account " + id,
		Kind:        ledger.AccountRevolving,
		APR:         apr,
		CreditLimit: &l,
		MinPayment:  decimal.NewFromInt(25),
	})
	require.NoError(t, err)
}

func TestRecordChargeAndPayment(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	registerAccount(t, svc, "visa", 0.2099, 10000)

	charge, err := svc.RecordCharge(ctx, "visa", decimal.NewFromInt(500), "")
	require.NoError(t, err)
	assert.Equal(t, ledger.EventCharge, charge.Kind)
	assert.Equal(t, "500", charge.BalanceAfter.String())
	assert.Equal(t, "command/c1", charge.CausationID)

	payment, err := svc.RecordPayment(ctx, "visa", decimal.NewFromInt(200), "")
	require.NoError(t, err)
	assert.Equal(t, ledger.EventPayment, payment.Kind)
	assert.Equal(t, "-200", payment.Amount.String(), "payments reduce debt")
	assert.Equal(t, "300", payment.BalanceAfter.String())
}

func TestRecordPayment_RejectsNonPositive(t *testing.T) {
	svc := newTestService(t)
	registerAccount(t, svc, "visa", 0.2099, 10000)

	for _, amount := range []int64{0, -50} {
		_, err := svc.RecordPayment(context.Background(), "visa", decimal.NewFromInt(amount), "")
		assert.True(t, ledger.IsValidation(err), "amount %d: got %v", amount, err)
	}
}

func TestRecordPayment_IdempotentRetry(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	registerAccount(t, svc, "visa", 0.2099, 10000)

	first, err := svc.RecordPayment(ctx, "visa", decimal.NewFromInt(100), "pay-2026-06")
	require.NoError(t, err)
	retry, err := svc.RecordPayment(ctx, "visa", decimal.NewFromInt(100), "pay-2026-06")
	require.NoError(t, err)
	assert.Equal(t, first.ID, retry.ID)

	events, err := svc.Store().Replay(ctx, "visa", nil)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestUpdateBalance(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	registerAccount(t, svc, "visa", 0.2099, 10000)

	ev, err := svc.UpdateBalance(ctx, "visa", decimal.RequireFromString("850.25"), "")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, ledger.EventAdjustment, ev.Kind)
	assert.Equal(t, "850.25", ev.Amount.String())
	assert.Equal(t, "850.25", ev.BalanceAfter.String())

	// Converging to the current balance commits nothing.
	noop, err := svc.UpdateBalance(ctx, "visa", decimal.RequireFromString("850.25"), "")
	require.NoError(t, err)
	assert.Nil(t, noop)

	events, err := svc.Store().Replay(ctx, "visa", nil)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestExecuteTransfer(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	registerAccount(t, svc, "visa", 0.2499, 10000)
	registerAccount(t, svc, "heloc", 0.04, 20000)

	_, err := svc.RecordCharge(ctx, "visa", decimal.NewFromInt(5000), "")
	require.NoError(t, err)

	out, in, err := svc.ExecuteTransfer(ctx, "visa", "heloc", decimal.NewFromInt(3000), "xfer-1")
	require.NoError(t, err)
	require.NotNil(t, out)
	require.NotNil(t, in)

	assert.Equal(t, ledger.EventTransferOut, out.Kind)
	assert.Equal(t, "-3000", out.Amount.String())
	assert.Equal(t, "2000", out.BalanceAfter.String())
	assert.Equal(t, ledger.EventTransferIn, in.Kind)
	assert.Equal(t, "3000", in.BalanceAfter.String())
	assert.Equal(t, out.CausationID, in.CausationID, "legs share one causation id")

	// Retrying the same transfer key replays both legs.
	out2, in2, err := svc.ExecuteTransfer(ctx, "visa", "heloc", decimal.NewFromInt(3000), "xfer-1")
	require.NoError(t, err)
	assert.Equal(t, out.ID, out2.ID)
	assert.Equal(t, in.ID, in2.ID)
}

func TestExecuteTransfer_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	registerAccount(t, svc, "visa", 0.2499, 10000)

	_, _, err := svc.ExecuteTransfer(ctx, "visa", "visa", decimal.NewFromInt(100), "k1")
	assert.True(t, ledger.IsValidation(err), "same-account transfer: got %v", err)

	_, _, err = svc.ExecuteTransfer(ctx, "visa", "heloc", decimal.Zero, "k2")
	assert.True(t, ledger.IsValidation(err), "zero amount: got %v", err)

	// The legs commit separately; without a key a retry after a
	// half-completed transfer would debit the source twice.
	_, _, err = svc.ExecuteTransfer(ctx, "visa", "heloc", decimal.NewFromInt(100), "")
	assert.True(t, ledger.IsValidation(err), "missing idempotency key: got %v", err)
}

func TestExecuteTransfer_RetryAfterFailedInLeg(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	registerAccount(t, svc, "visa", 0.2499, 10000)
	// Destination is never registered, so the in-leg fails after the
	// out-leg committed.
	_, err := svc.RecordCharge(ctx, "visa", decimal.NewFromInt(5000), "")
	require.NoError(t, err)

	out, in, err := svc.ExecuteTransfer(ctx, "visa", "heloc", decimal.NewFromInt(1000), "xfer-1")
	require.Error(t, err)
	require.NotNil(t, out)
	assert.Nil(t, in)

	registerAccount(t, svc, "heloc", 0.04, 20000)

	// Retrying under the same key replays the committed out-leg and
	// commits only the missing in-leg.
	out2, in2, err := svc.ExecuteTransfer(ctx, "visa", "heloc", decimal.NewFromInt(1000), "xfer-1")
	require.NoError(t, err)
	assert.Equal(t, out.ID, out2.ID)
	require.NotNil(t, in2)

	events, err := svc.Store().Replay(ctx, "visa", nil)
	require.NoError(t, err)
	assert.Len(t, events, 2, "charge plus a single out-leg")
	assert.Equal(t, "4000", events[1].BalanceAfter.String())
}

func TestRequestOptimization(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	registerAccount(t, svc, "visa", 0.2499, 10000)
	registerAccount(t, svc, "heloc", 0.04, 20000)

	_, err := svc.RecordCharge(ctx, "visa", decimal.RequireFromString("8331.82"), "")
	require.NoError(t, err)

	report, err := svc.RequestOptimization(ctx)
	require.NoError(t, err)
	assert.Equal(t, "8331.82", report.TotalDebt.String())
	require.NotEmpty(t, report.Opportunities)
	assert.Equal(t, "visa", report.Opportunities[0].From)
	assert.Equal(t, "heloc", report.Opportunities[0].To)
	assert.Equal(t, "1748.85", report.Opportunities[0].AnnualSavings.StringFixed(2))
	// A notable opportunity and the high visa utilization both alert.
	assert.NotEmpty(t, report.Alerts)
}

func TestClassify(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	registerAccount(t, svc, "visa", 0.2499, 10000)

	ph, err := svc.Classify(ctx)
	require.NoError(t, err)
	assert.Equal(t, phase.Growth, ph, "no debt is GROWTH")

	// 9000 on a 10000 limit crosses the utilization boundary.
	_, err = svc.RecordCharge(ctx, "visa", decimal.NewFromInt(9000), "")
	require.NoError(t, err)
	ph, err = svc.Classify(ctx)
	require.NoError(t, err)
	assert.Equal(t, phase.Crisis, ph)
}

func TestPlanPayments(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	registerAccount(t, svc, "high", 0.25, 10000)
	registerAccount(t, svc, "low", 0.10, 10000)

	_, err := svc.RecordCharge(ctx, "high", decimal.NewFromInt(3000), "")
	require.NoError(t, err)
	_, err = svc.RecordCharge(ctx, "low", decimal.NewFromInt(2000), "")
	require.NoError(t, err)

	alloc, err := svc.PlanPayments(ctx, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.True(t, alloc.FullyFunded())
	assert.Equal(t, "500", alloc.TotalAllocated().String())

	_, err = svc.PlanPayments(ctx, decimal.NewFromInt(-1))
	assert.True(t, ledger.IsValidation(err), "negative funds: got %v", err)
}

func TestQueryHistory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	registerAccount(t, svc, "visa", 0.2099, 10000)

	_, err := svc.RecordCharge(ctx, "visa", decimal.NewFromInt(100), "")
	require.NoError(t, err)

	events, err := svc.QueryHistory(ctx, "visa",
		commandTime.Add(-time.Hour), commandTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, events, 1)

	// An empty window returns nothing.
	events, err = svc.QueryHistory(ctx, "visa",
		commandTime.AddDate(0, 0, 1), commandTime.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = svc.QueryHistory(ctx, "ghost", commandTime, commandTime)
	assert.True(t, ledger.IsNotFound(err), "got %v", err)
}
