// Package command is the boundary the external CLI/API layer talks to.
//
// Each call commits exactly one event (a transfer commits one per leg)
// or returns a rejected/no-op result. Commands carrying a
// caller-supplied idempotency key are safe to retry: a replayed key
// returns the originally committed event.
package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/debtwise/debtwise/internal/alert"
	"github.com/debtwise/debtwise/internal/ledger"
	"github.com/debtwise/debtwise/internal/optimize"
	"github.com/debtwise/debtwise/internal/phase"
	"github.com/debtwise/debtwise/internal/projection"
	"github.com/debtwise/debtwise/internal/reconcile"
	"github.com/debtwise/debtwise/internal/store"
)

// Service owns the store handle and the derived engines. Nothing here
// is a singleton; callers construct a Service per store and pass it
// around explicitly.
type Service struct {
	store      *store.Store
	projection *projection.Builder
	optimizer  *optimize.Engine
	reconciler *reconcile.Engine
	alerts     *alert.Engine

	income decimal.Decimal
	ids    ledger.IDGenerator
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithProjection overrides the projection builder.
func WithProjection(b *projection.Builder) Option {
	return func(s *Service) { s.projection = b }
}

// WithOptimizer overrides the optimization engine.
func WithOptimizer(e *optimize.Engine) Option {
	return func(s *Service) { s.optimizer = e }
}

// WithReconciler overrides the reconciliation engine.
func WithReconciler(e *reconcile.Engine) Option {
	return func(s *Service) { s.reconciler = e }
}

// WithAlerts overrides the alert engine.
func WithAlerts(e *alert.Engine) Option {
	return func(s *Service) { s.alerts = e }
}

// WithAnnualIncome sets the income the phase classifier uses.
func WithAnnualIncome(income decimal.Decimal) Option {
	return func(s *Service) { s.income = income }
}

// WithIDGenerator overrides causation id generation.
func WithIDGenerator(g ledger.IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// WithClock overrides the time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service over the store with default engines.
func New(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		ids:    ledger.UUIDv7Generator{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.projection == nil {
		s.projection = projection.NewBuilder(st, projection.WithCheckpoints(true))
	}
	if s.optimizer == nil {
		s.optimizer = optimize.NewEngine()
	}
	if s.reconciler == nil {
		s.reconciler = reconcile.NewEngine(st)
	}
	if s.alerts == nil {
		s.alerts = alert.NewEngine(alert.DefaultRules(alert.DefaultThresholds()))
	}
	return s
}

// Store exposes the underlying store handle for maintenance commands.
func (s *Service) Store() *store.Store { return s.store }

// Projection exposes the projection builder.
func (s *Service) Projection() *projection.Builder { return s.projection }

// RegisterAccount validates and stores account metadata.
func (s *Service) RegisterAccount(ctx context.Context, acct ledger.Account) error {
	return s.store.PutAccount(ctx, acct)
}

// Accounts lists registered accounts.
func (s *Service) Accounts(ctx context.Context) ([]ledger.Account, error) {
	return s.store.Accounts(ctx)
}

// RecordPayment commits a payment event, reducing the account balance.
func (s *Service) RecordPayment(ctx context.Context, accountID string, amount decimal.Decimal, idemKey string) (*ledger.Event, error) {
	if amount.Sign() <= 0 {
		return nil, ledger.NewValidationError("payment amount must be positive", accountID)
	}
	return s.appendSigned(ctx, accountID, ledger.EventPayment, amount.Neg(), idemKey)
}

// RecordCharge commits a charge event, increasing the account balance.
func (s *Service) RecordCharge(ctx context.Context, accountID string, amount decimal.Decimal, idemKey string) (*ledger.Event, error) {
	if amount.Sign() <= 0 {
		return nil, ledger.NewValidationError("charge amount must be positive", accountID)
	}
	return s.appendSigned(ctx, accountID, ledger.EventCharge, amount, idemKey)
}

// UpdateBalance converges an account to a target balance by committing
// the signed difference as an adjustment. Returns (nil, nil) when the
// account is already at the target (no-op result).
func (s *Service) UpdateBalance(ctx context.Context, accountID string, target decimal.Decimal, idemKey string) (*ledger.Event, error) {
	causation := "command/" + s.ids.NewID()
	now := s.now()

	ev, err := s.store.AppendFrom(ctx, accountID, idemKey, func(tail *ledger.Event) (ledger.Event, error) {
		current := ledger.ExpectedBefore(tail)
		delta := target.Sub(current)
		if delta.IsZero() {
			return ledger.Event{}, errNoOp
		}
		return ledger.Event{
			Kind:          ledger.EventAdjustment,
			Amount:        delta,
			BalanceBefore: current,
			BalanceAfter:  target,
			CausationID:   causation,
			At:            now,
		}, nil
	})
	if errors.Is(err, errNoOp) {
		return nil, nil
	}
	return ev, err
}

// ExecuteTransfer moves a balance between accounts as two linked
// events sharing one causation id: transfer-out on the source (debt
// decreases) and transfer-in on the destination (debt increases).
//
// The legs commit in separate transactions, so an idempotency key is
// mandatory: when the in-leg fails after the out-leg committed, only a
// retry under the same key replays the out-leg instead of re-debiting
// the source.
func (s *Service) ExecuteTransfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, idemKey string) (*ledger.Event, *ledger.Event, error) {
	if amount.Sign() <= 0 {
		return nil, nil, ledger.NewValidationError("transfer amount must be positive", fromID)
	}
	if fromID == toID {
		return nil, nil, ledger.NewValidationError("transfer source and destination must differ", fromID)
	}
	if idemKey == "" {
		return nil, nil, ledger.NewValidationError("transfer requires an idempotency key", fromID)
	}

	causation := "command/" + s.ids.NewID()
	now := s.now()
	outKey, inKey := idemKey+"/out", idemKey+"/in"

	out, err := s.store.AppendFrom(ctx, fromID, outKey, signedBuild(ledger.EventTransferOut, amount.Neg(), causation, now))
	if err != nil {
		return nil, nil, err
	}
	in, err := s.store.AppendFrom(ctx, toID, inKey, signedBuild(ledger.EventTransferIn, amount, causation, now))
	if err != nil {
		return out, nil, err
	}
	return out, in, nil
}

// Report is the optimization output for one request: the current
// position, its classification, discovered opportunities, and the
// alerts raised over them.
type Report struct {
	TakenAt       time.Time
	TotalDebt     decimal.Decimal
	Phase         phase.Phase
	Opportunities []optimize.Opportunity
	Alerts        []alert.Alert
}

// RequestOptimization builds a fresh snapshot, discovers arbitrage
// opportunities, classifies the phase, and runs an alert cycle.
func (s *Service) RequestOptimization(ctx context.Context) (*Report, error) {
	snap, err := s.projection.Snapshot(ctx, nil)
	if err != nil {
		return nil, err
	}
	accounts, err := s.store.Accounts(ctx)
	if err != nil {
		return nil, err
	}

	opportunities := s.optimizer.Opportunities(snap, accounts)
	ph := s.classify(snap, accounts)
	now := s.now()

	alerts := s.alerts.Evaluate(alert.Input{
		Snapshot:      snap,
		Accounts:      accounts,
		Opportunities: opportunities,
		Phase:         ph,
		Now:           now,
	})

	return &Report{
		TakenAt:       now,
		TotalDebt:     snap.TotalDebt(),
		Phase:         ph,
		Opportunities: opportunities,
		Alerts:        alerts,
	}, nil
}

// PlanPayments computes an avalanche allocation of funds over the
// current balances.
func (s *Service) PlanPayments(ctx context.Context, funds decimal.Decimal) (optimize.Allocation, error) {
	if funds.Sign() < 0 {
		return optimize.Allocation{}, ledger.NewValidationError("payment funds must not be negative", "")
	}
	snap, err := s.projection.Snapshot(ctx, nil)
	if err != nil {
		return optimize.Allocation{}, err
	}
	accounts, err := s.store.Accounts(ctx)
	if err != nil {
		return optimize.Allocation{}, err
	}

	balances := make(map[string]decimal.Decimal, len(accounts))
	for _, acct := range accounts {
		balances[acct.ID] = snap.Balance(acct.ID)
	}
	return optimize.Avalanche(funds, accounts, balances), nil
}

// RunReconciliation reconciles a batch of external statement records.
func (s *Service) RunReconciliation(ctx context.Context, recs []reconcile.StatementRecord) ([]reconcile.Outcome, error) {
	return s.reconciler.ReconcileAll(ctx, recs)
}

// QueryHistory returns an account's events within [from, to].
func (s *Service) QueryHistory(ctx context.Context, accountID string, from, to time.Time) ([]ledger.Event, error) {
	if _, err := s.store.Account(ctx, accountID); err != nil {
		return nil, err
	}
	return s.store.ReplayRange(ctx, accountID, from, to)
}

// Classify runs the phase classifier over a fresh snapshot.
func (s *Service) Classify(ctx context.Context) (phase.Phase, error) {
	snap, err := s.projection.Snapshot(ctx, nil)
	if err != nil {
		return "", err
	}
	accounts, err := s.store.Accounts(ctx)
	if err != nil {
		return "", err
	}
	return s.classify(snap, accounts), nil
}

func (s *Service) classify(snap *projection.Snapshot, accounts []ledger.Account) phase.Phase {
	creditUsed := decimal.Zero
	creditAvailable := decimal.Zero
	for _, acct := range accounts {
		if acct.CreditLimit == nil {
			continue
		}
		creditUsed = creditUsed.Add(snap.Balance(acct.ID))
		creditAvailable = creditAvailable.Add(*acct.CreditLimit)
	}
	return phase.Classify(snap.TotalDebt(), s.income, creditUsed, creditAvailable)
}

// errNoOp aborts an append when the command resolves to no change.
// Never escapes UpdateBalance.
var errNoOp = errors.New("command is a no-op")

// signedBuild returns a BuildFunc for a fixed-amount event.
func signedBuild(kind ledger.EventKind, amount decimal.Decimal, causation string, at time.Time) store.BuildFunc {
	return func(tail *ledger.Event) (ledger.Event, error) {
		before := ledger.ExpectedBefore(tail)
		return ledger.Event{
			Kind:          kind,
			Amount:        amount,
			BalanceBefore: before,
			BalanceAfter:  before.Add(amount),
			CausationID:   causation,
			At:            at,
		}, nil
	}
}

// appendSigned commits a fixed-amount event with a fresh causation id.
func (s *Service) appendSigned(ctx context.Context, accountID string, kind ledger.EventKind, amount decimal.Decimal, idemKey string) (*ledger.Event, error) {
	causation := "command/" + s.ids.NewID()
	return s.store.AppendFrom(ctx, accountID, idemKey, signedBuild(kind, amount, causation, s.now()))
}
