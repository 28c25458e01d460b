package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/debtwise/debtwise/internal/ledger"
)

// PutAccount registers or updates account metadata.
// Metadata carries no balance; balances live only in the event log.
func (s *Store) PutAccount(ctx context.Context, acct ledger.Account) error {
	if err := acct.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, kind, apr, credit_limit, min_payment, promo_expiry)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			apr = excluded.apr,
			credit_limit = excluded.credit_limit,
			min_payment = excluded.min_payment,
			promo_expiry = excluded.promo_expiry
	`,
		acct.ID,
		acct.Name,
		string(acct.Kind),
		acct.APR,
		encodeNullDecimal(acct.CreditLimit),
		acct.MinPayment.String(),
		encodeNullTime(acct.PromoExpiry),
	)
	if err != nil {
		return ledger.NewPersistenceError("put account", err)
	}
	return nil
}

// BuildFunc constructs the event to append given the current tail.
// It runs under the account lock inside the append transaction, so the
// tail it sees cannot change before the commit.
type BuildFunc func(tail *ledger.Event) (ledger.Event, error)

// Append commits a fully formed event to the log.
//
// The append is atomic all-or-nothing: if balance_before does not match
// the current tail's balance_after the log is left unchanged and a
// CONSISTENCY error is returned.
//
// An idempotency key, when non-empty, makes the append at-most-once: a
// second call with the same key returns the previously committed event
// without writing anything.
func (s *Store) Append(ctx context.Context, ev ledger.Event, idemKey string) (*ledger.Event, error) {
	return s.appendLocked(ctx, ev.AccountID, idemKey, func(tail *ledger.Event) (ledger.Event, error) {
		if !ev.FollowsTail(tail) {
			return ledger.Event{}, ledger.NewConsistencyError(
				ev.AccountID,
				ledger.ExpectedBefore(tail).String(),
				ev.BalanceBefore.String(),
			)
		}
		return ev, nil
	})
}

// AppendFrom builds and commits an event from the current tail.
//
// Unlike Append, the caller does not supply balance_before: build
// receives the tail observed inside the transaction and derives the
// event from it, which makes read-then-append callers (reconciliation,
// commands) race-free by construction.
func (s *Store) AppendFrom(ctx context.Context, accountID, idemKey string, build BuildFunc) (*ledger.Event, error) {
	return s.appendLocked(ctx, accountID, idemKey, build)
}

// appendLocked serializes the append under the per-account lock and
// retries transient storage failures with backoff.
func (s *Store) appendLocked(ctx context.Context, accountID, idemKey string, build BuildFunc) (*ledger.Event, error) {
	if accountID == "" {
		return nil, ledger.NewValidationError("account id must not be empty", "")
	}

	lock := s.locks.get(accountID)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		ev, err := s.appendOnce(ctx, accountID, idemKey, build)
		if err == nil {
			return ev, nil
		}
		if !retryable(err) {
			if code, ok := ledgerCode(err); ok {
				s.metrics.AppendRejected(string(code))
			}
			return nil, err
		}

		lastErr = err
		s.metrics.AppendRetried()
		s.logger.WarnContext(ctx, "append retrying",
			slog.String("account_id", accountID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}

	s.metrics.AppendRejected(string(ledger.CodeConflict))
	conflict := ledger.NewConflictError(accountID, s.maxAttempts)
	conflict.Err = lastErr
	return nil, conflict
}

// appendOnce runs a single append transaction.
func (s *Store) appendOnce(ctx context.Context, accountID, idemKey string, build BuildFunc) (*ledger.Event, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, ledger.NewPersistenceError("begin append tx", err)
	}
	defer tx.Rollback() // No-op if committed

	// Unknown accounts are rejected before the log is touched.
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE id = ?`, accountID).Scan(&exists)
	if err != nil {
		return nil, ledger.NewPersistenceError("check account", err)
	}
	if exists == 0 {
		return nil, ledger.NewNotFoundError(accountID)
	}

	// Idempotent command boundary: a replayed key returns the original
	// committed event without writing.
	if idemKey != "" {
		prior, err := scanOneEvent(tx.QueryRowContext(ctx, selectEventColumns+`
			FROM events WHERE idempotency_key = ?
		`, idemKey))
		if err == nil {
			if commitErr := tx.Commit(); commitErr != nil {
				return nil, ledger.NewPersistenceError("commit idempotent read", commitErr)
			}
			return prior, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.NewPersistenceError("check idempotency key", err)
		}
	}

	tail, err := s.tailInTx(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}

	ev, err := build(tail)
	if err != nil {
		return nil, err
	}
	ev.AccountID = accountID
	if ev.ID == "" {
		ev.ID = s.ids.NewID()
	}
	ev.Seq = 1
	if tail != nil {
		ev.Seq = tail.Seq + 1
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if !ev.FollowsTail(tail) {
		return nil, ledger.NewConsistencyError(
			accountID,
			ledger.ExpectedBefore(tail).String(),
			ev.BalanceBefore.String(),
		)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events
		(id, account_id, seq, kind, amount, balance_before, balance_after, causation_id, idempotency_key, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID,
		ev.AccountID,
		ev.Seq,
		string(ev.Kind),
		ev.Amount.String(),
		ev.BalanceBefore.String(),
		ev.BalanceAfter.String(),
		ev.CausationID,
		encodeNullString(idemKey),
		ev.At.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, classifyInsertErr(ev.AccountID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, ledger.NewPersistenceError("commit append", err)
	}

	s.metrics.EventAppended(string(ev.Kind))
	s.logger.DebugContext(ctx, "event appended",
		slog.String("account_id", ev.AccountID),
		slog.String("event_id", ev.ID),
		slog.Int64("seq", ev.Seq),
		slog.String("kind", string(ev.Kind)))
	return &ev, nil
}

// classifyInsertErr maps SQLite constraint violations onto the ledger
// error taxonomy. A UNIQUE(account_id, seq) hit means another writer
// committed between our tail read and insert (cross-process race).
func classifyInsertErr(accountID string, err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		if serr.Code == sqlite3.ErrConstraint {
			if strings.Contains(serr.Error(), "events.account_id") {
				c := ledger.NewConflictError(accountID, 1)
				c.Err = err
				return c
			}
		}
	}
	return ledger.NewPersistenceError("insert event", err)
}

// retryable reports whether an append error is worth another attempt.
func retryable(err error) bool {
	if ledger.IsConflict(err) {
		return true
	}
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked
	}
	if ledger.IsPersistence(err) {
		return errors.As(errors.Unwrap(err), &serr) &&
			(serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked)
	}
	return false
}

// backoff returns the sleep before retry attempt n (1-based).
func backoff(attempt int) time.Duration {
	d := time.Duration(attempt*attempt) * 10 * time.Millisecond
	if d > 500*time.Millisecond {
		d = 500 * time.Millisecond
	}
	return d
}

// ledgerCode extracts the ledger error code when err carries one.
// Sentinel aborts from build funcs pass through without a code.
func ledgerCode(err error) (ledger.ErrorCode, bool) {
	var le *ledger.Error
	if errors.As(err, &le) {
		return le.Code, true
	}
	return "", false
}
