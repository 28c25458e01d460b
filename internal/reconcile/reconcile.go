// Package reconcile compares projected balances against externally
// supplied statements and converges drift through adjustment events.
//
// Reconciliation never mutates history: a detected drift becomes one
// new adjustment event whose causation references the reconciliation
// action. Re-running against an already-reconciled account is a no-op.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/debtwise/debtwise/internal/alert"
	"github.com/debtwise/debtwise/internal/ledger"
	"github.com/debtwise/debtwise/internal/metrics"
	"github.com/debtwise/debtwise/internal/store"
)

// StatementRecord is one external statement line: an account reference,
// the balance the institution reports, and its as-of timestamp.
type StatementRecord struct {
	AccountRef string          `yaml:"account"`
	Balance    decimal.Decimal `yaml:"balance"`
	AsOf       time.Time       `yaml:"as_of"`
}

// OutcomeKind labels a reconciliation result.
type OutcomeKind string

const (
	// OutcomeOK means the projection already matched within epsilon.
	OutcomeOK OutcomeKind = "ok"
	// OutcomeAdjusted means one correcting adjustment was committed.
	OutcomeAdjusted OutcomeKind = "adjusted"
	// OutcomeNeedsReview means the account reference was ambiguous and
	// nothing was committed.
	OutcomeNeedsReview OutcomeKind = "needs_review"
)

// Outcome is the result of reconciling one statement record.
type Outcome struct {
	Kind       OutcomeKind
	AccountID  string
	Ref        string
	Drift      decimal.Decimal
	Adjustment *ledger.Event
	Alert      *alert.Alert
	Candidates []Candidate
}

// Engine reconciles statement records against the event log.
type Engine struct {
	store     *store.Store
	matcher   *Matcher
	ids       ledger.IDGenerator
	epsilon   decimal.Decimal
	warnDrift decimal.Decimal
	now       func() time.Time
	logger    *slog.Logger
	metrics   *metrics.Collector
}

// EngineOption configures a reconciliation Engine.
type EngineOption func(*Engine)

// WithEpsilon sets the tolerated drift (default 0.01 currency units).
func WithEpsilon(eps decimal.Decimal) EngineOption {
	return func(e *Engine) { e.epsilon = eps }
}

// WithWarnDrift sets the drift magnitude at which the raised alert
// escalates from INFO to WARNING (default 50 currency units).
func WithWarnDrift(d decimal.Decimal) EngineOption {
	return func(e *Engine) { e.warnDrift = d }
}

// WithMatcher replaces the account reference matcher.
func WithMatcher(m *Matcher) EngineOption {
	return func(e *Engine) { e.matcher = m }
}

// WithIDGenerator overrides causation id generation.
func WithIDGenerator(g ledger.IDGenerator) EngineOption {
	return func(e *Engine) { e.ids = g }
}

// WithClock overrides the time source for deterministic tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Collector) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a reconciliation engine with the default epsilon
// (0.01), warn threshold (50), and match confidence (0.85).
func NewEngine(st *store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     st,
		matcher:   NewMatcher(0.85),
		ids:       ledger.UUIDv7Generator{},
		epsilon:   decimal.NewFromFloat(0.01),
		warnDrift: decimal.NewFromInt(50),
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// errWithinEpsilon aborts the append path when no drift needs
// correcting. Never escapes Reconcile.
var errWithinEpsilon = errors.New("projection within epsilon of statement")

// Reconcile converges one statement record.
//
// Drift is measured against the projected balance at the log tail, read
// inside the append transaction, so a race with a concurrent writer
// re-validates rather than overwrites. The drift magnitude decides the
// alert severity: INFO below the warn threshold, WARNING at or above.
//
// Unresolvable references surface as NOT_FOUND errors; ambiguous ones
// produce a NeedsReview outcome and commit nothing.
func (e *Engine) Reconcile(ctx context.Context, rec StatementRecord) (Outcome, error) {
	accounts, err := e.store.Accounts(ctx)
	if err != nil {
		return Outcome{}, err
	}

	accountID, confidence, candidates := e.matcher.Resolve(rec.AccountRef, accounts)
	if accountID == "" {
		if len(candidates) == 0 {
			e.metrics.ReconcileOutcome("not_found")
			return Outcome{}, ledger.NewNotFoundError(rec.AccountRef)
		}
		e.metrics.ReconcileOutcome(string(OutcomeNeedsReview))
		e.logger.InfoContext(ctx, "statement reference ambiguous",
			slog.String("ref", rec.AccountRef),
			slog.Int("candidates", len(candidates)))
		return Outcome{
			Kind:       OutcomeNeedsReview,
			Ref:        rec.AccountRef,
			Candidates: candidates,
		}, nil
	}

	now := e.now()
	causation := "reconcile/" + e.ids.NewID()

	var drift decimal.Decimal
	adjustment, err := e.store.AppendFrom(ctx, accountID, "", func(tail *ledger.Event) (ledger.Event, error) {
		projected := ledger.ExpectedBefore(tail)
		drift = rec.Balance.Sub(projected)
		if drift.Abs().LessThanOrEqual(e.epsilon) {
			return ledger.Event{}, errWithinEpsilon
		}
		return ledger.Event{
			Kind:          ledger.EventAdjustment,
			Amount:        drift,
			BalanceBefore: projected,
			BalanceAfter:  rec.Balance,
			CausationID:   causation,
			At:            now,
		}, nil
	})
	if errors.Is(err, errWithinEpsilon) {
		e.metrics.ReconcileOutcome(string(OutcomeOK))
		return Outcome{Kind: OutcomeOK, AccountID: accountID, Ref: rec.AccountRef}, nil
	}
	if err != nil {
		return Outcome{}, err
	}

	severity := alert.SeverityInfo
	if drift.Abs().GreaterThanOrEqual(e.warnDrift) {
		severity = alert.SeverityWarning
	}
	a := &alert.Alert{
		Kind:     "reconcile_drift",
		Severity: severity,
		Subject:  accountID,
		Message:  driftMessage(accountID, drift, rec),
		At:       now,
	}

	e.metrics.ReconcileOutcome(string(OutcomeAdjusted))
	e.logger.InfoContext(ctx, "drift reconciled",
		slog.String("account_id", accountID),
		slog.String("drift", drift.String()),
		slog.Float64("match_confidence", confidence),
		slog.String("causation_id", causation))

	return Outcome{
		Kind:       OutcomeAdjusted,
		AccountID:  accountID,
		Ref:        rec.AccountRef,
		Drift:      drift,
		Adjustment: adjustment,
		Alert:      a,
	}, nil
}

// ReconcileAll processes a batch of statement records. Per-record
// failures do not stop the batch; they are joined into the returned
// error alongside the outcomes that did complete.
func (e *Engine) ReconcileAll(ctx context.Context, recs []StatementRecord) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(recs))
	var errs []error
	for _, rec := range recs {
		outcome, err := e.Reconcile(ctx, rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, errors.Join(errs...)
}

func driftMessage(accountID string, drift decimal.Decimal, rec StatementRecord) string {
	direction := "above"
	if drift.Sign() < 0 {
		direction = "below"
	}
	return "statement for " + accountID + " is " + drift.Abs().StringFixed(2) +
		" " + direction + " the projected balance (as of " + rec.AsOf.Format("2006-01-02") + ")"
}
