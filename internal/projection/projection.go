// Package projection folds the event log into point-in-time snapshots.
//
// Snapshots are derived, disposable state: they are always reproducible
// from the log alone, and a fold either completes or fails as a whole.
// Partial snapshots are never exposed.
package projection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/debtwise/debtwise/internal/ledger"
	"github.com/debtwise/debtwise/internal/metrics"
	"github.com/debtwise/debtwise/internal/store"
)

// Snapshot is an immutable view of all account balances at a point in
// time. A nil AsOf means the log tail at build time.
type Snapshot struct {
	AsOf     *time.Time
	TakenAt  time.Time
	balances map[string]decimal.Decimal
	lastSeq  map[string]int64
}

// SnapshotFrom builds a snapshot over fixed balances, for evaluating
// strategies against hypothetical state without a backing log.
func SnapshotFrom(balances map[string]decimal.Decimal) *Snapshot {
	snap := &Snapshot{
		TakenAt:  time.Now().UTC(),
		balances: make(map[string]decimal.Decimal, len(balances)),
		lastSeq:  make(map[string]int64, len(balances)),
	}
	for id, b := range balances {
		snap.balances[id] = b
	}
	return snap
}

// Balance returns the balance for an account, zero if unknown.
func (s *Snapshot) Balance(accountID string) decimal.Decimal {
	return s.balances[accountID]
}

// LastSeq returns the sequence number of the last folded event for an
// account, zero if the account had no events.
func (s *Snapshot) LastSeq(accountID string) int64 {
	return s.lastSeq[accountID]
}

// AccountIDs returns the ids covered by the snapshot.
func (s *Snapshot) AccountIDs() []string {
	ids := make([]string, 0, len(s.balances))
	for id := range s.balances {
		ids = append(ids, id)
	}
	return ids
}

// TotalDebt sums all balances.
func (s *Snapshot) TotalDebt() decimal.Decimal {
	total := decimal.Zero
	for _, b := range s.balances {
		total = total.Add(b)
	}
	return total
}

// Builder computes snapshots from the event store.
type Builder struct {
	store          *store.Store
	logger         *slog.Logger
	metrics        *metrics.Collector
	useCheckpoints bool
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Collector) BuilderOption {
	return func(b *Builder) { b.metrics = m }
}

// WithCheckpoints enables checkpoint+suffix folds for tail snapshots.
func WithCheckpoints(enabled bool) BuilderOption {
	return func(b *Builder) { b.useCheckpoints = enabled }
}

// NewBuilder creates a Builder over the given store.
func NewBuilder(st *store.Store, opts ...BuilderOption) *Builder {
	b := &Builder{store: st, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Snapshot folds all accounts up to asOf (nil = tail) and returns an
// immutable snapshot. Any fold error aborts the whole call.
func (b *Builder) Snapshot(ctx context.Context, asOf *time.Time) (*Snapshot, error) {
	started := time.Now()

	accounts, err := b.store.Accounts(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		AsOf:     asOf,
		TakenAt:  started,
		balances: make(map[string]decimal.Decimal, len(accounts)),
		lastSeq:  make(map[string]int64, len(accounts)),
	}
	for _, acct := range accounts {
		balance, lastSeq, err := b.foldAccount(ctx, acct.ID, asOf)
		if err != nil {
			return nil, err
		}
		snap.balances[acct.ID] = balance
		snap.lastSeq[acct.ID] = lastSeq
	}

	b.metrics.ObserveFold(time.Since(started).Seconds())
	return snap, nil
}

// Balance folds a single account up to asOf (nil = tail).
func (b *Builder) Balance(ctx context.Context, accountID string, asOf *time.Time) (decimal.Decimal, error) {
	if _, err := b.store.Account(ctx, accountID); err != nil {
		return decimal.Zero, err
	}
	balance, _, err := b.foldAccount(ctx, accountID, asOf)
	return balance, err
}

// foldAccount computes one account's balance. Tail folds may start from
// a checkpoint; as-of folds always replay from genesis because the
// checkpoint may lie beyond the requested horizon.
func (b *Builder) foldAccount(ctx context.Context, accountID string, asOf *time.Time) (decimal.Decimal, int64, error) {
	if b.useCheckpoints && asOf == nil {
		cp, err := b.store.Checkpoint(ctx, accountID)
		if err != nil {
			return decimal.Zero, 0, err
		}
		if cp != nil {
			suffix, err := b.store.ReplayAfter(ctx, accountID, cp.Seq, nil)
			if err != nil {
				return decimal.Zero, 0, err
			}
			return foldChain(accountID, cp.Balance, cp.Seq, suffix)
		}
	}

	events, err := b.store.Replay(ctx, accountID, asOf)
	if err != nil {
		return decimal.Zero, 0, err
	}
	return foldChain(accountID, decimal.Zero, 0, events)
}

// foldChain applies events to a starting balance, enforcing the chain
// invariant as it goes. A mismatch in a committed log is a fatal
// internal-consistency bug, not a recoverable condition.
func foldChain(accountID string, start decimal.Decimal, startSeq int64, events []ledger.Event) (decimal.Decimal, int64, error) {
	balance := start
	seq := startSeq
	for _, ev := range events {
		if !ev.BalanceBefore.Equal(balance) {
			return decimal.Zero, 0, &ledger.Error{
				Code:      ledger.CodeConsistency,
				Message:   fmt.Sprintf("committed log violates chain invariant at seq %d", ev.Seq),
				AccountID: accountID,
				Details: map[string]string{
					"expected_before": balance.String(),
					"got_before":      ev.BalanceBefore.String(),
				},
			}
		}
		if ev.Seq <= seq {
			return decimal.Zero, 0, &ledger.Error{
				Code:      ledger.CodeConsistency,
				Message:   fmt.Sprintf("non-increasing sequence %d after %d", ev.Seq, seq),
				AccountID: accountID,
			}
		}
		balance = ev.BalanceAfter
		seq = ev.Seq
	}
	return balance, seq, nil
}

// WriteCheckpoint records the current tail fold position for an account.
// The checkpoint is computed by full replay so it is correct by
// construction at write time.
func (b *Builder) WriteCheckpoint(ctx context.Context, accountID string) (*store.Checkpoint, error) {
	events, err := b.store.Replay(ctx, accountID, nil)
	if err != nil {
		return nil, err
	}
	balance, seq, err := foldChain(accountID, decimal.Zero, 0, events)
	if err != nil {
		return nil, err
	}
	if seq == 0 {
		// Nothing to memoize for an empty history.
		return nil, nil
	}

	cp := store.Checkpoint{
		AccountID: accountID,
		Seq:       seq,
		Balance:   balance,
		At:        time.Now().UTC(),
	}
	if err := b.store.PutCheckpoint(ctx, cp); err != nil {
		return nil, err
	}
	b.logger.DebugContext(ctx, "checkpoint written",
		slog.String("account_id", accountID),
		slog.Int64("seq", seq))
	return &cp, nil
}

// VerifyCheckpoint compares the checkpointed fold against a full replay
// from genesis. Divergence is returned as a fatal consistency error;
// callers must not auto-repair it.
func (b *Builder) VerifyCheckpoint(ctx context.Context, accountID string) error {
	cp, err := b.store.Checkpoint(ctx, accountID)
	if err != nil {
		return err
	}
	if cp == nil {
		return nil
	}

	events, err := b.store.Replay(ctx, accountID, nil)
	if err != nil {
		return err
	}

	balance := decimal.Zero
	for _, ev := range events {
		if ev.Seq > cp.Seq {
			break
		}
		balance = ev.BalanceAfter
	}
	if !balance.Equal(cp.Balance) {
		return &ledger.Error{
			Code:      ledger.CodeConsistency,
			Message:   "checkpoint diverges from full replay",
			AccountID: accountID,
			Details: map[string]string{
				"checkpoint_balance": cp.Balance.String(),
				"replay_balance":     balance.String(),
				"checkpoint_seq":     fmt.Sprintf("%d", cp.Seq),
			},
		}
	}
	return nil
}

// VerifyAll verifies every account's checkpoint. The first divergence
// aborts the sweep; a broken checkpoint means derived state can no
// longer be trusted anywhere.
func (b *Builder) VerifyAll(ctx context.Context) error {
	accounts, err := b.store.Accounts(ctx)
	if err != nil {
		return err
	}
	for _, acct := range accounts {
		if err := b.VerifyCheckpoint(ctx, acct.ID); err != nil {
			return err
		}
	}
	return nil
}
