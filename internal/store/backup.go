package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/debtwise/debtwise/internal/ledger"
)

// BackupTo writes a frozen, consistent copy of the database to path.
//
// VACUUM INTO runs inside a read transaction, so the copy is a
// consistent prefix of the log with no mid-append captures. The event
// log is the sole unit of backup: restoring the copy and replaying it
// reproduces the snapshot at backup time exactly.
//
// Dropped checkpoints in the copy are harmless; they are rebuilt from
// replay on first use.
func (s *Store) BackupTo(ctx context.Context, path string) error {
	if path == "" {
		return ledger.NewValidationError("backup path must not be empty", "")
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO %s", quoteSQLString(path))); err != nil {
		return ledger.NewPersistenceError("vacuum into backup", err)
	}

	s.logger.InfoContext(ctx, "backup written", slog.String("path", path))
	return nil
}

// quoteSQLString quotes a string literal for SQLite (VACUUM INTO does
// not accept bound parameters).
func quoteSQLString(s string) string {
	out := make([]rune, 0, len(s)+2)
	out = append(out, '\'')
	for _, r := range s {
		if r == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, r)
	}
	out = append(out, '\'')
	return string(out)
}
