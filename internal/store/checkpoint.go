package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/debtwise/debtwise/internal/ledger"
)

// Checkpoint memoizes the fold position at a point in an account's
// history. Checkpoints are an optimization only: they must always be
// reproducible by a full replay, and never act as a source of truth.
type Checkpoint struct {
	AccountID string
	Seq       int64
	Balance   decimal.Decimal
	At        time.Time
}

// Checkpoint returns the stored checkpoint for an account, or nil.
func (s *Store) Checkpoint(ctx context.Context, accountID string) (*Checkpoint, error) {
	var (
		cp      Checkpoint
		balance string
		at      string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT account_id, seq, balance, at
		FROM checkpoints
		WHERE account_id = ?
	`, accountID).Scan(&cp.AccountID, &cp.Seq, &balance, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, ledger.NewPersistenceError("query checkpoint", err)
	}

	if cp.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, ledger.NewPersistenceError("decode checkpoint balance", err)
	}
	if cp.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
		return nil, ledger.NewPersistenceError("decode checkpoint timestamp", err)
	}
	return &cp, nil
}

// PutCheckpoint stores or replaces the checkpoint for an account.
func (s *Store) PutCheckpoint(ctx context.Context, cp Checkpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (account_id, seq, balance, at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			seq = excluded.seq,
			balance = excluded.balance,
			at = excluded.at
	`,
		cp.AccountID,
		cp.Seq,
		cp.Balance.String(),
		cp.At.UTC().Format(timeLayout),
	)
	if err != nil {
		return ledger.NewPersistenceError("put checkpoint", err)
	}
	return nil
}

// DropCheckpoint removes an account's checkpoint. The next fold falls
// back to a full replay from genesis.
func (s *Store) DropCheckpoint(ctx context.Context, accountID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE account_id = ?`, accountID)
	if err != nil {
		return ledger.NewPersistenceError("drop checkpoint", err)
	}
	return nil
}
