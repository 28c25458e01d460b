package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBackupTo_RestoredCopyMatches(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	putTestAccount(t, s, "visa")
	for i := 0; i < 3; i++ {
		if _, err := s.AppendFrom(ctx, "visa", "", chargeBuild(decimal.NewFromInt(100))); err != nil {
			t.Fatalf("seed append failed: %v", err)
		}
	}

	backupPath := filepath.Join(t.TempDir(), "backup.db")
	if err := s.BackupTo(ctx, backupPath); err != nil {
		t.Fatalf("BackupTo() failed: %v", err)
	}

	restored, err := Open(backupPath)
	if err != nil {
		t.Fatalf("Open(backup) failed: %v", err)
	}
	defer restored.Close()

	orig, err := s.Replay(ctx, "visa", nil)
	if err != nil {
		t.Fatalf("Replay(original) failed: %v", err)
	}
	copied, err := restored.Replay(ctx, "visa", nil)
	if err != nil {
		t.Fatalf("Replay(backup) failed: %v", err)
	}
	if len(copied) != len(orig) {
		t.Fatalf("backup event count = %d, want %d", len(copied), len(orig))
	}
	for i := range orig {
		if copied[i].ID != orig[i].ID || !copied[i].BalanceAfter.Equal(orig[i].BalanceAfter) {
			t.Errorf("backup event %d differs from original", i)
		}
	}
}

func TestBackupTo_RejectsExistingFile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "backup.db")
	if err := s.BackupTo(ctx, path); err != nil {
		t.Fatalf("first BackupTo() failed: %v", err)
	}
	if err := s.BackupTo(ctx, path); err == nil {
		t.Error("second BackupTo() to same path succeeded, want error")
	}
}
