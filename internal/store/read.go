package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/debtwise/debtwise/internal/ledger"
)

// Replay returns an account's events in sequence order, optionally
// bounded by a timestamp (inclusive). A nil upTo replays to the tail.
//
// Replay is a pure read: identical log contents produce identical
// results no matter when or how often it runs. Ordering is ORDER BY seq
// ASC, which is total per account by the UNIQUE(account_id, seq)
// constraint.
//
// Returns an empty slice (not nil) when the account has no events.
func (s *Store) Replay(ctx context.Context, accountID string, upTo *time.Time) ([]ledger.Event, error) {
	query := selectEventColumns + `
		FROM events
		WHERE account_id = ?
	`
	args := []any{accountID}
	if upTo != nil {
		query += ` AND at <= ?`
		args = append(args, upTo.UTC().Format(timeLayout))
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.NewPersistenceError("query replay", err)
	}
	defer rows.Close()

	events := []ledger.Event{}
	for rows.Next() {
		ev, err := scanOneEvent(rows)
		if err != nil {
			return nil, ledger.NewPersistenceError("scan event", err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.NewPersistenceError("iterate events", err)
	}
	return events, nil
}

// ReplayRange returns an account's events within [from, to] in sequence
// order. Zero bounds are open.
func (s *Store) ReplayRange(ctx context.Context, accountID string, from, to time.Time) ([]ledger.Event, error) {
	query := selectEventColumns + `
		FROM events
		WHERE account_id = ?
	`
	args := []any{accountID}
	if !from.IsZero() {
		query += ` AND at >= ?`
		args = append(args, from.UTC().Format(timeLayout))
	}
	if !to.IsZero() {
		query += ` AND at <= ?`
		args = append(args, to.UTC().Format(timeLayout))
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.NewPersistenceError("query history", err)
	}
	defer rows.Close()

	events := []ledger.Event{}
	for rows.Next() {
		ev, err := scanOneEvent(rows)
		if err != nil {
			return nil, ledger.NewPersistenceError("scan event", err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.NewPersistenceError("iterate events", err)
	}
	return events, nil
}

// ReplayAfter returns an account's events with seq > afterSeq, in
// sequence order. Used for checkpoint+suffix folds.
func (s *Store) ReplayAfter(ctx context.Context, accountID string, afterSeq int64, upTo *time.Time) ([]ledger.Event, error) {
	query := selectEventColumns + `
		FROM events
		WHERE account_id = ? AND seq > ?
	`
	args := []any{accountID, afterSeq}
	if upTo != nil {
		query += ` AND at <= ?`
		args = append(args, upTo.UTC().Format(timeLayout))
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.NewPersistenceError("query replay suffix", err)
	}
	defer rows.Close()

	events := []ledger.Event{}
	for rows.Next() {
		ev, err := scanOneEvent(rows)
		if err != nil {
			return nil, ledger.NewPersistenceError("scan event", err)
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.NewPersistenceError("iterate events", err)
	}
	return events, nil
}

// Tail returns the latest event for an account, or nil when the account
// has no history yet.
func (s *Store) Tail(ctx context.Context, accountID string) (*ledger.Event, error) {
	ev, err := scanOneEvent(s.db.QueryRowContext(ctx, selectEventColumns+`
		FROM events
		WHERE account_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ledger.NewPersistenceError("query tail", err)
	}
	return ev, nil
}

// tailInTx reads the tail inside an append transaction.
func (s *Store) tailInTx(ctx context.Context, tx *sql.Tx, accountID string) (*ledger.Event, error) {
	ev, err := scanOneEvent(tx.QueryRowContext(ctx, selectEventColumns+`
		FROM events
		WHERE account_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ledger.NewPersistenceError("query tail", err)
	}
	return ev, nil
}

// Account returns the metadata for one account.
func (s *Store) Account(ctx context.Context, accountID string) (*ledger.Account, error) {
	acct, err := scanAccount(s.db.QueryRowContext(ctx, `
		SELECT id, name, kind, apr, credit_limit, min_payment, promo_expiry
		FROM accounts
		WHERE id = ?
	`, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.NewNotFoundError(accountID)
	}
	if err != nil {
		return nil, ledger.NewPersistenceError("query account", err)
	}
	return acct, nil
}

// Accounts returns all registered accounts ordered by id.
func (s *Store) Accounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, apr, credit_limit, min_payment, promo_expiry
		FROM accounts
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, ledger.NewPersistenceError("query accounts", err)
	}
	defer rows.Close()

	accounts := []ledger.Account{}
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, ledger.NewPersistenceError("scan account", err)
		}
		accounts = append(accounts, *acct)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.NewPersistenceError("iterate accounts", err)
	}
	return accounts, nil
}
